package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/ledhttpd/internal/config"
	"github.com/muurk/ledhttpd/internal/etag"
	"github.com/muurk/ledhttpd/internal/mdns"
	"github.com/muurk/ledhttpd/internal/nvs"
	"github.com/muurk/ledhttpd/internal/ui"
	"github.com/muurk/ledhttpd/internal/version"
)

// Command flags
var (
	fingerprintBinary string
	scanTimeout       time.Duration
	configForce       bool
	eraseYes          bool
)

func init() {
	fingerprintCmd.Flags().StringVar(&fingerprintBinary, "binary", "", "Executable to fingerprint (default: this binary)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", mdns.DefaultScanTimeout, "How long to browse")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	nvsEraseCmd.Flags().BoolVar(&eraseYes, "yes", false, "Skip the confirmation prompt")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	nvsCmd.AddCommand(nvsEraseCmd)
}

// fingerprintCmd prints the validator the web server sends as ETag
var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the build fingerprint used as ETag",
	Long: `Print the quoted hex fingerprint derived from the SHA-256 of the
executable. The web server sends it as the ETag of the index page, so it
changes exactly when a different build is deployed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fp, err := etag.FromSource(&version.Identity{Path: fingerprintBinary})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), fp)
		return nil
	},
}

// scanCmd browses for other ledhttpd devices
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for ledhttpd devices on the network",
	Long: `Browse mDNS for _http._tcp services published by ledhttpd and list
them with their address, version and fingerprint.`,
	Example: `  # Scan for 5 seconds (default)
  ledhttpd scan

  # Longer scan for busy networks
  ledhttpd scan --timeout 15s`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scanning for ledhttpd devices (timeout: %s)...\n\n", scanTimeout)

	scanner := mdns.NewScanner()
	scanner.Timeout = scanTimeout

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	instances, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(instances) == 0 {
		fmt.Fprintln(out, "No devices found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Ensure the device was started without --no-mdns")
		fmt.Fprintln(out, "  - Multicast must be allowed between this host and the device")
		fmt.Fprintln(out, "  - Try increasing --timeout")
		return nil
	}

	fmt.Fprintf(out, "Found %d device(s):\n\n", len(instances))
	for i, inst := range instances {
		fmt.Fprintf(out, "%d. %s\n", i+1, inst.Name)
		fmt.Fprintf(out, "   URL:     %s\n", inst.BaseURL())
		fmt.Fprintf(out, "   Host:    %s\n", inst.Hostname)
		if v := inst.Version(); v != "" {
			fmt.Fprintf(out, "   Version: %s\n", v)
		}
		if tag := inst.GetMetadata("etag"); tag != "" {
			fmt.Fprintf(out, "   ETag:    %s\n", tag)
		}
		fmt.Fprintln(out)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var nvsCmd = &cobra.Command{
	Use:   "nvs",
	Short: "Manage the key storage partition",
}

var nvsEraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the key storage partition",
	Long: `Erase the key storage partition. The boot counter starts again from
one on the next run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path, err := cfg.StoragePath()
		if err != nil {
			return err
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			printer.PrintWarning("Nothing to erase", []ui.Param{{Key: "Partition", Value: path}})
			return nil
		}

		if !eraseYes {
			ok := ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Erase key storage", []string{
				"Partition: " + path,
				"The boot counter is reset",
			})
			if !ok {
				return errors.New("aborted")
			}
		}

		if err := nvs.Erase(path); err != nil {
			return err
		}
		printer.PrintSuccess("Key storage erased", []ui.Param{{Key: "Partition", Value: path}})
		return nil
	},
}

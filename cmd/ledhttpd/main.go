// Ledhttpd brings up a simulated LED web device: it configures the LED pin,
// opens key storage, associates the station radio, advertises itself over
// mDNS and serves a small web page for switching the LED.
//
// Every stage is rolled back in reverse order if a later one fails, and the
// whole device is torn down the same way on SIGINT or SIGTERM.
//
// Usage:
//
//	ledhttpd run [flags]
//
// See 'ledhttpd --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/ledhttpd/internal/config"
	"github.com/muurk/ledhttpd/internal/logging"
	"github.com/muurk/ledhttpd/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ledhttpd",
	Short: "LED web device with staged bring-up",
	Long: `A host-side LED web device.

ledhttpd brings up its peripherals in a fixed order (LED pin, key storage,
station radio, association, mDNS, web server) and rolls every completed
stage back in reverse order if a later stage fails.

Configuration is read from ` + "`$XDG_CONFIG_HOME/ledhttpd/config.yaml`" + `;
run 'ledhttpd config init' to create it. The WiFi password is taken from
` + config.PasswordEnvVar + ` or prompted for on a terminal.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/ledhttpd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stagesCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(nvsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ledhttpd %s\n", version.Full())
	},
}

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// loadConfig reads the config file and applies the environment. The file's
// log level applies when --log-level and the environment leave it unset.
func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" && cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

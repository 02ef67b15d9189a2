package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/ledhttpd/internal/bringup"
	"github.com/muurk/ledhttpd/internal/config"
	"github.com/muurk/ledhttpd/internal/device"
	"github.com/muurk/ledhttpd/internal/logging"
	"github.com/muurk/ledhttpd/internal/metrics"
	"github.com/muurk/ledhttpd/internal/ui"
)

// Run command flags
var (
	runSSID       string
	runPort       int
	runListen     string
	runNoMDNS     bool
	runTimeout    time.Duration
	runRejectAuth bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bring the device up and serve until interrupted",
	Long: `Run the bring-up sequence and serve the LED web page.

If any stage fails, every stage that already completed is rolled back in
reverse order and the failure is reported with troubleshooting hints.
On SIGINT or SIGTERM the running device is torn down the same way.`,
	Example: `  # Bring up with the saved configuration
  ledhttpd run

  # Serve on port 8000 without mDNS
  ledhttpd run --port 8000 --no-mdns

  # Simulate a wrong WiFi password to watch the rollback
  ledhttpd run --reject-auth --association-timeout 2s`,
	RunE: runDevice,
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Print the bring-up plan",
	Long: `Print the stages 'ledhttpd run' would execute with the current
configuration, in order.`,
	RunE: runStages,
}

func init() {
	runCmd.Flags().StringVar(&runSSID, "ssid", "", "WiFi SSID (overrides config)")
	runCmd.Flags().IntVar(&runPort, "port", 0, "HTTP port (overrides config)")
	runCmd.Flags().StringVar(&runListen, "listen", "", "Bind host for the web server (default: the acquired address)")
	runCmd.Flags().BoolVar(&runNoMDNS, "no-mdns", false, "Skip the mDNS advertisement")
	runCmd.Flags().DurationVar(&runTimeout, "association-timeout", 0, "How long to wait for an address (overrides config)")
	runCmd.Flags().BoolVar(&runRejectAuth, "reject-auth", false, "Simulate an access point that rejects the password")
}

// applyRunFlags overrides config values with the flags the user set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ssid") {
		cfg.WiFi.SSID = runSSID
	}
	if flags.Changed("port") {
		cfg.HTTP.Port = runPort
	}
	if flags.Changed("no-mdns") {
		cfg.MDNS.Enabled = !runNoMDNS
	}
	if flags.Changed("association-timeout") {
		cfg.WiFi.AssociationTimeout = runTimeout
	}
	if flags.Changed("reject-auth") {
		cfg.Simulation.RejectAuth = runRejectAuth
	}
}

func runDevice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := cfg.PromptPassword(os.Stdin, cmd.OutOrStdout()); err != nil {
		return err
	}

	var runner *ui.BootRunner
	opts := []device.Option{
		device.WithMetrics(metrics.New()),
		device.WithObserver(func(ev bringup.Event) { runner.Observe(ev) }),
	}
	if runListen != "" {
		opts = append(opts, device.WithListenHost(runListen))
	}

	dev, err := device.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer dev.Close()

	runner = ui.NewBootRunner(ui.BootRunnerConfig{
		Title:   "Device bring-up",
		Command: "ledhttpd " + cmd.Name(),
		Params: []ui.Param{
			{Key: "SSID", Value: cfg.WiFi.SSID},
			{Key: "Port", Value: strconv.Itoa(cfg.HTTP.Port)},
			{Key: "LED pin", Value: strconv.Itoa(cfg.LED.Pin)},
		},
		Stages: dev.StageNames(),
		Output: cmd.OutOrStdout(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Start()
	if err := dev.Start(ctx); err != nil {
		runner.Finish(err, nil)
		return fmt.Errorf("bring-up failed at stage %q", bringup.FailedStage(err))
	}

	details := []ui.Param{
		{Key: "URL", Value: dev.URL()},
		{Key: "Address", Value: dev.Address().String()},
		{Key: "Boot count", Value: strconv.FormatUint(uint64(dev.BootCount()), 10)},
		{Key: "ETag", Value: dev.Fingerprint().String()},
	}
	if cfg.MDNS.Enabled {
		details = append(details, ui.Param{Key: "mDNS", Value: cfg.MDNS.Hostname + ".local"})
	}
	runner.Finish(nil, details)

	<-ctx.Done()
	logging.Info("Shutting down", zap.Error(ctx.Err()))
	fmt.Fprintln(cmd.OutOrStdout())
	dev.Shutdown()
	return nil
}

func runStages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dev, err := device.New(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	header := ui.NewHeader("Bring-up plan", "ledhttpd stages", []ui.Param{
		{Key: "Config", Value: path},
		{Key: "Stages", Value: strconv.Itoa(len(dev.StageNames()))},
	})
	plan := ui.NewProgress(dev.StageNames())

	return ui.RenderOnce(cmd.OutOrStdout(), header.Render()+"\n\n"+plan.Render()+"\n")
}

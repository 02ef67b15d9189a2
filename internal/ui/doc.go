// Package ui renders the ledhttpd terminal output.
//
// Components follow a "run once and exit" pattern: they render polished
// output with Lipgloss but never wait for input, with the single exception of
// Confirm.
//
//   - Header: banner naming the command and its parameters
//   - Progress: bar plus a line per bring-up stage
//   - Result: success, failure or warning box
//
// BootRunner ties them to a bring-up run. Its Observe method is a
// bringup.Observer, so the stage list updates as the orchestrator reports
// events:
//
//	runner := ui.NewBootRunner(ui.BootRunnerConfig{
//	    Title:  "Device bring-up",
//	    Stages: names,
//	})
//	runner.Start()
//	orch := bringup.New(bringup.WithObserver(runner.Observe))
//	err := orch.Run(ctx, stages)
//	runner.Finish(err, details)
//
// # Logging Integration
//
// Zap logging stays silent unless LEDHTTPD_LOG_LEVEL is set, so the curated
// output is not interleaved with log lines.
package ui

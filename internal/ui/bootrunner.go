package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muurk/ledhttpd/internal/bringup"
)

// BootRunnerConfig configures a BootRunner
type BootRunnerConfig struct {
	Title   string   // Header title, e.g. "Device bring-up"
	Command string   // Command line shown in the header
	Params  []Param  // Header parameters
	Stages  []string // Stage names in run order
	Output  io.Writer
	Width   int // zero means the terminal width
}

// BootRunner prints the progress of a bring-up run. Observe is safe to pass
// as a bringup.Observer.
type BootRunner struct {
	cfg      BootRunnerConfig
	mu       sync.Mutex
	progress *Progress
	printer  *Printer
	started  time.Time
	unwound  int
}

// NewBootRunner creates a runner for the given stage list
func NewBootRunner(cfg BootRunnerConfig) *BootRunner {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	r := &BootRunner{
		cfg:      cfg,
		progress: NewProgress(cfg.Stages),
		printer:  NewPrinter(cfg.Output),
	}
	if cfg.Width > 0 {
		r.printer.width = cfg.Width
		r.progress.SetWidth(cfg.Width)
	}
	return r
}

// Start prints the header
func (r *BootRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = time.Now()
	r.printer.PrintHeader(r.cfg.Title, r.cfg.Command, r.cfg.Params)
}

// Observe updates the stage list from an orchestrator event and prints the
// affected line.
func (r *BootRunner) Observe(ev bringup.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := ev.Index + 1
	switch ev.Type {
	case bringup.EventStarted:
		r.progress.Update(n, StepRunning, "")
	case bringup.EventCompleted:
		r.progress.Update(n, StepComplete, formatElapsed(ev.Elapsed))
		r.printStep(n)
	case bringup.EventFailed:
		r.progress.Update(n, StepFailed, bringup.Classify(ev.Err).String())
		r.printStep(n)
	case bringup.EventUnwound:
		for i := 1; i < n; i++ {
			r.progress.Update(i, StepUndone, "released")
		}
		r.unwound = ev.Cleanups
		r.printer.Println(StepNoteStyle.Render(fmt.Sprintf("  %s rolled back %d resource(s)", MarkerUndone, ev.Cleanups)))
	case bringup.EventShutdown:
		r.printer.Println(StepNoteStyle.Render(fmt.Sprintf("  released %d resource(s) in %s", ev.Cleanups, formatElapsed(ev.Elapsed))))
	}
}

func (r *BootRunner) printStep(n int) {
	if n < 1 || n > len(r.progress.Steps) {
		return
	}
	r.printer.Println(r.progress.RenderStep(r.progress.Steps[n-1]))
}

// Finish prints the bar and the result box. A nil err prints success with
// details; otherwise a failure box carries the troubleshooting hint for the
// failure kind.
func (r *BootRunner) Finish(err error, details []Param) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printer.Newline()
	r.printer.Println(r.progress.RenderBar())
	r.printer.Newline()

	if err == nil {
		details = append(details, Param{Key: "Elapsed", Value: formatElapsed(time.Since(r.started))})
		r.printer.PrintSuccess(r.cfg.Title, details)
		return
	}

	title := r.cfg.Title
	if stage := bringup.FailedStage(err); stage != "" {
		title = fmt.Sprintf("%s (stage %s)", r.cfg.Title, stage)
	}
	r.printer.PrintError(title, err, bringup.TroubleshootingHint(bringup.Classify(err)))
}

// Steps returns a copy of the current stage lines
func (r *BootRunner) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Step, len(r.progress.Steps))
	copy(out, r.progress.Steps)
	return out
}

func formatElapsed(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

package bringup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ledhttpd/internal/closer"
	"github.com/muurk/ledhttpd/internal/logging"
)

// Observer receives stage events. It is called synchronously from Run.
type Observer func(Event)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLedger makes the orchestrator record cleanups in l instead of a fresh
// ledger.
func WithLedger(l *closer.Ledger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.ledger = l
		}
	}
}

// WithObserver adds an observer. Observers run in the order they were added.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// Orchestrator runs a bring-up sequence once.
type Orchestrator struct {
	ledger    *closer.Ledger
	observers []Observer

	mu      sync.Mutex
	state   State
	current string
}

// New creates an orchestrator in StateNotStarted.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range opts {
		opt(o)
	}
	if o.ledger == nil {
		o.ledger = closer.New()
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentStage returns the name of the stage being run or unwound, or "".
func (o *Orchestrator) CurrentStage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Ledger returns the ledger holding the recorded cleanups.
func (o *Orchestrator) Ledger() *closer.Ledger {
	return o.ledger
}

// Run executes stages in order. It returns nil when every stage succeeded, or
// a *StageError after rolling back the stages that had completed.
func (o *Orchestrator) Run(ctx context.Context, stages []Stage) error {
	for i, st := range stages {
		if st.Action == nil {
			return fmt.Errorf("stage %d (%q) has no action: %w", i, st.Name, ErrInvalidArgument)
		}
	}

	o.mu.Lock()
	if o.state != StateNotStarted {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is %s: %w", state, ErrAlreadyStarted)
	}
	o.state = StateRunning
	o.mu.Unlock()

	logging.Info("Bring-up starting", zap.Int("stages", len(stages)))
	start := time.Now()

	for i, st := range stages {
		if err := o.runStage(ctx, i, len(stages), st); err != nil {
			return err
		}
	}

	o.mu.Lock()
	o.state = StateSucceeded
	o.current = ""
	o.mu.Unlock()

	logging.Info("Bring-up complete",
		zap.Int("stages", len(stages)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (o *Orchestrator) runStage(ctx context.Context, i, total int, st Stage) error {
	o.mu.Lock()
	o.current = st.Name
	o.mu.Unlock()

	// A canceled context fails the stage that was about to start.
	if err := ctx.Err(); err != nil {
		return o.fail(i, total, st.Name, err, 0)
	}

	o.emit(Event{Type: EventStarted, Stage: st.Name, Index: i, Total: total})
	logging.LogStage(st.Name, "started", 0)

	began := time.Now()
	if err := runAction(ctx, st.Action); err != nil {
		return o.fail(i, total, st.Name, err, time.Since(began))
	}

	if st.Cleanup != nil {
		if err := o.ledger.RegisterNamed(st.Name, st.Cleanup); err != nil {
			// The effect cannot be tracked, so undo it now.
			_ = closer.NewGuard(st.Name, st.Cleanup).Release()
			return o.fail(i, total, st.Name, err, time.Since(began))
		}
	}

	elapsed := time.Since(began)
	logging.LogStage(st.Name, "completed", elapsed)
	o.emit(Event{Type: EventCompleted, Stage: st.Name, Index: i, Total: total, Elapsed: elapsed})
	return nil
}

// runAction calls fn, turning a panic into an ErrActionPanic error.
func runAction(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()
	return fn(ctx)
}

func (o *Orchestrator) fail(i, total int, name string, cause error, elapsed time.Duration) error {
	stageErr := &StageError{
		Stage: name,
		Index: i,
		Kind:  Classify(cause),
		Cause: cause,
	}

	o.setState(StateFailed)
	logging.Error("Bring-up stage failed",
		zap.String("stage", name),
		zap.Int("index", i),
		zap.String("kind", stageErr.Kind.String()),
		zap.Error(cause),
	)
	o.emit(Event{Type: EventFailed, Stage: name, Index: i, Total: total, Elapsed: elapsed, Err: stageErr})

	o.setState(StateUnwinding)
	pending := o.ledger.Len()
	began := time.Now()
	o.ledger.Drain()
	logging.Info("Bring-up unwound",
		zap.Int("cleanups", pending),
		zap.Duration("elapsed", time.Since(began)),
	)
	o.emit(Event{
		Type:     EventUnwound,
		Stage:    name,
		Index:    i,
		Total:    total,
		Elapsed:  time.Since(began),
		Err:      stageErr,
		Cleanups: pending,
	})

	o.mu.Lock()
	o.state = StateAborted
	o.current = ""
	o.mu.Unlock()

	return stageErr
}

// Shutdown drains the ledger after a successful run. It is a no-op in any
// other state and may be called more than once.
func (o *Orchestrator) Shutdown() {
	if o.State() != StateSucceeded {
		return
	}
	pending := o.ledger.Len()
	logging.Info("Shutting down", zap.Int("cleanups", pending))
	began := time.Now()
	o.ledger.Drain()
	o.emit(Event{Type: EventShutdown, Elapsed: time.Since(began), Cleanups: pending})
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) emit(ev Event) {
	for _, fn := range o.observers {
		fn(ev)
	}
}

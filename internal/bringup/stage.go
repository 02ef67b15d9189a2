package bringup

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/ledhttpd/internal/closer"
)

// Stage is one step of the bring-up sequence.
type Stage struct {
	// Name identifies the stage in logs, events and errors.
	Name string

	// Action performs the initialization. It must not register its own
	// cleanup; the orchestrator records Cleanup after Action succeeds.
	Action func(ctx context.Context) error

	// Cleanup undoes Action. Optional.
	Cleanup closer.CleanupFunc
}

// State is the lifecycle state of an Orchestrator.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateSucceeded
	StateFailed
	StateUnwinding
	StateAborted
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateUnwinding:
		return "unwinding"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventType describes what happened to a stage.
type EventType int

const (
	// EventStarted is emitted before a stage's Action runs.
	EventStarted EventType = iota
	// EventCompleted is emitted once the Action succeeded and its cleanup is recorded.
	EventCompleted
	// EventFailed is emitted when a stage fails.
	EventFailed
	// EventUnwound is emitted after earlier stages were rolled back.
	EventUnwound
	// EventShutdown is emitted when Shutdown drains a successful run.
	EventShutdown
)

// String returns the event type name
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventUnwound:
		return "unwound"
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is delivered to observers as the run progresses.
type Event struct {
	Type    EventType
	Stage   string
	Index   int
	Total   int
	Elapsed time.Duration
	Err     error

	// Cleanups is the number of ledger entries run, for EventUnwound and
	// EventShutdown.
	Cleanups int
}

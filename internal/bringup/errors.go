package bringup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/muurk/ledhttpd/internal/closer"
	"github.com/muurk/ledhttpd/internal/netstack"
	"github.com/muurk/ledhttpd/internal/netwait"
	"github.com/muurk/ledhttpd/internal/nvs"
	"github.com/muurk/ledhttpd/internal/peripheral"
)

var (
	// ErrAlreadyStarted is returned by Run on an orchestrator that already ran.
	ErrAlreadyStarted = errors.New("bring-up already started")

	// ErrInvalidArgument is returned when a stage list is malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrActionPanic wraps the value recovered from a panicking stage action.
	ErrActionPanic = errors.New("stage action panicked")
)

// Kind is the category of a stage failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPeripheral
	KindStorage
	KindNetwork
	KindTimeout
	KindAllocation
	KindCanceled
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindPeripheral:
		return "Peripheral Error"
	case KindStorage:
		return "Storage Error"
	case KindNetwork:
		return "Network Error"
	case KindTimeout:
		return "Timeout"
	case KindAllocation:
		return "Allocation Error"
	case KindCanceled:
		return "Canceled"
	case KindUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// StageError reports which stage failed and why.
type StageError struct {
	Stage string // Name of the failing stage
	Index int    // Position of the failing stage in the run
	Kind  Kind   // Category derived from Cause
	Cause error  // Underlying error
}

// Error implements the error interface
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q: %s: %v", e.Stage, e.Kind, e.Cause)
}

// Unwrap returns the underlying error for error chain inspection
func (e *StageError) Unwrap() error {
	return e.Cause
}

// Classify maps an error onto a Kind by inspecting its chain.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, closer.ErrAllocationFailed):
		return KindAllocation
	case errors.Is(err, netwait.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, peripheral.ErrPeripheral):
		return KindPeripheral
	case errors.Is(err, nvs.ErrStorage):
		return KindStorage
	case errors.Is(err, netstack.ErrNetwork):
		return KindNetwork
	default:
		return KindUnknown
	}
}

func kindOf(err error) (Kind, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Kind, true
	}
	return KindUnknown, false
}

// IsTimeout checks if err is a stage failure caused by a timeout
func IsTimeout(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTimeout
}

// IsNetworkError checks if err is a stage failure in the network stack,
// including association timeouts
func IsNetworkError(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == KindNetwork || k == KindTimeout)
}

// IsStorageError checks if err is a stage failure in key storage
func IsStorageError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindStorage
}

// IsPeripheralError checks if err is a stage failure in a peripheral
func IsPeripheralError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPeripheral
}

// FailedStage returns the name of the failing stage, or "" if err is not a
// stage failure.
func FailedStage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

// TroubleshootingHint returns operator-facing advice for a failure kind
func TroubleshootingHint(kind Kind) string {
	switch kind {
	case KindPeripheral:
		return strings.Join([]string{
			"A peripheral could not be configured.",
			"Troubleshooting:",
			"  • Check that the LED pin exists on this board",
			"  • Verify no other stage claims the same pin",
		}, "\n")

	case KindStorage:
		return strings.Join([]string{
			"Key storage could not be opened.",
			"Troubleshooting:",
			"  • Check that the storage path is writable",
			"  • Erase the storage file if it was written by a newer build",
		}, "\n")

	case KindNetwork:
		return strings.Join([]string{
			"The network stack failed to come up.",
			"Troubleshooting:",
			"  • Verify the WiFi SSID and password in your configuration",
			"  • Check that the HTTP port is not already in use",
			"  • Restart to retry; bring-up does not retry on its own",
		}, "\n")

	case KindTimeout:
		return strings.Join([]string{
			"No address was acquired in time.",
			"Troubleshooting:",
			"  • Move closer to the access point",
			"  • Check that the access point hands out addresses",
			"  • Increase the association timeout",
		}, "\n")

	case KindAllocation:
		return "The cleanup ledger is full. Raise its capacity or reduce the number of stages."

	case KindCanceled:
		return "Bring-up was interrupted before it finished."

	default:
		return "An error occurred. Please check the error message for details."
	}
}

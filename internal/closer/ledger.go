package closer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/ledhttpd/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrInvalidArgument is returned for a nil cleanup or a nil/destroyed ledger.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAllocationFailed is returned when the ledger cannot hold another entry.
	ErrAllocationFailed = errors.New("allocation failed")
)

// CleanupFunc releases one resource. It must be idempotent.
type CleanupFunc func() error

type entry struct {
	name string
	fn   CleanupFunc
}

// Ledger is a LIFO registry of cleanup actions.
type Ledger struct {
	mu        sync.Mutex
	entries   []entry
	capacity  int
	destroyed bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCapacity bounds the number of pending cleanups. Zero means unbounded.
func WithCapacity(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.capacity = n
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	if l.capacity > 0 {
		l.entries = make([]entry, 0, l.capacity)
	}
	return l
}

// Register appends an unnamed cleanup action.
func (l *Ledger) Register(fn CleanupFunc) error {
	return l.RegisterNamed("", fn)
}

// RegisterNamed appends a cleanup action. The name is only used for logging.
// On error the ledger is left unchanged.
func (l *Ledger) RegisterNamed(name string, fn CleanupFunc) error {
	if l == nil || fn == nil {
		return ErrInvalidArgument
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.destroyed {
		return fmt.Errorf("ledger destroyed: %w", ErrInvalidArgument)
	}
	if l.capacity > 0 && len(l.entries) >= l.capacity {
		return fmt.Errorf("ledger full (%d entries): %w", l.capacity, ErrAllocationFailed)
	}

	if name == "" {
		name = fmt.Sprintf("cleanup-%d", len(l.entries))
	}
	l.entries = append(l.entries, entry{name: name, fn: fn})

	logging.Debug("Cleanup registered",
		zap.String("cleanup", name),
		zap.Int("pending", len(l.entries)),
	)
	return nil
}

// Len returns the number of pending cleanups.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Names returns the pending cleanup names in the order they would run.
func (l *Ledger) Names() []string {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		names = append(names, l.entries[i].name)
	}
	return names
}

// Drain runs every pending cleanup exactly once, newest first. Each entry is
// removed before it runs, so a cleanup that registers new work or drains
// again cannot run twice. Failures are logged and skipped.
func (l *Ledger) Drain() {
	if l == nil {
		return
	}

	var errs []error
	ran := 0
	for {
		e, ok := l.pop()
		if !ok {
			break
		}
		ran++
		err := run(e)
		logging.LogCleanup(e.name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
		}
	}

	if ran == 0 {
		return
	}
	if err := errors.Join(errs...); err != nil {
		logging.Warn("Ledger drained with failures",
			zap.Int("cleanups", ran),
			zap.Int("failed", len(errs)),
			zap.Error(err),
		)
		return
	}
	logging.Debug("Ledger drained", zap.Int("cleanups", ran))
}

// Destroy drains the ledger and releases its storage. It is safe to call more
// than once.
func (l *Ledger) Destroy() {
	if l == nil {
		return
	}
	l.Drain()

	l.mu.Lock()
	l.entries = nil
	l.destroyed = true
	l.mu.Unlock()
}

func (l *Ledger) pop() (entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if n == 0 {
		return entry{}, false
	}
	e := l.entries[n-1]
	l.entries[n-1] = entry{}
	l.entries = l.entries[:n-1]
	return e, true
}

// run invokes a cleanup, converting a panic into an error.
func run(e entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.fn()
}

package closer

import (
	"sync"

	"github.com/muurk/ledhttpd/internal/logging"
)

// Guard owns one acquired resource until it is either released or promoted
// into a Ledger. Release is meant to be deferred right after acquisition.
type Guard struct {
	mu    sync.Mutex
	name  string
	fn    CleanupFunc
	armed bool
}

// NewGuard arms a guard for the given cleanup.
func NewGuard(name string, fn CleanupFunc) *Guard {
	return &Guard{
		name:  name,
		fn:    fn,
		armed: fn != nil,
	}
}

// Armed reports whether Release would still run the cleanup.
func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.armed
}

// Release runs the cleanup if the guard is still armed. It runs at most once.
func (g *Guard) Release() error {
	g.mu.Lock()
	if !g.armed {
		g.mu.Unlock()
		return nil
	}
	g.armed = false
	e := entry{name: g.name, fn: g.fn}
	g.mu.Unlock()

	err := run(e)
	logging.LogCleanup(g.name, err)
	return err
}

// Promote hands the cleanup to the ledger. After a successful promotion
// Release is a no-op; on failure the guard stays armed so the deferred
// Release still frees the resource.
func (g *Guard) Promote(l *Ledger) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed {
		return ErrInvalidArgument
	}
	if err := l.RegisterNamed(g.name, g.fn); err != nil {
		return err
	}
	g.armed = false
	return nil
}

// Disarm drops the cleanup without running it. Use it when another owner,
// such as a stage cleanup, has taken over the resource.
func (g *Guard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = false
}

// Package netwait bridges the asynchronous "address acquired" notification
// of the network stack into a bounded, cancellable wait.
//
// A Bridge supports exactly one outstanding waiter. The waiter is published
// into a single mutex-protected slot before the connect action starts, and
// the notification path only ever performs a non-blocking send to whatever
// waiter it finds there, so a callback running on the network goroutine
// never blocks and a callback arriving after the wait has ended is a no-op.
package netwait

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/ledhttpd/internal/logging"
	"github.com/muurk/ledhttpd/internal/netstack"
	"go.uber.org/zap"
)

// DefaultTimeout bounds the wait for an address.
const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout is returned when no address arrives within the timeout.
	ErrTimeout = errors.New("timed out waiting for address")

	// ErrBusy is returned when another waiter is already registered.
	ErrBusy = errors.New("another waiter is registered")

	// ErrInvalidArgument is returned for an empty owner or nil connect action.
	ErrInvalidArgument = errors.New("invalid argument")
)

// EventSource is the part of the network stack the bridge subscribes to.
type EventSource interface {
	Subscribe(kind netstack.EventKind, h netstack.Handler) (netstack.Subscription, error)
	Unsubscribe(sub netstack.Subscription) error
}

// Result names the outcome of one wait, for observers.
type Result string

const (
	ResultAcquired Result = "acquired"
	ResultTimeout  Result = "timeout"
	ResultCanceled Result = "canceled"
	ResultFailed   Result = "failed"
)

// Observer is told how every wait ended.
type Observer func(result Result, elapsed time.Duration)

type waiter struct {
	owner netstack.Owner
	ch    chan netip.Addr
}

// Bridge converts the address event into a blocking wait.
type Bridge struct {
	source   EventSource
	timeout  time.Duration
	observer Observer

	mu   sync.Mutex
	slot *waiter
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithObserver installs an observer for wait outcomes.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observer = o
	}
}

// New creates a bridge over source.
func New(source EventSource, opts ...Option) *Bridge {
	b := &Bridge{
		source:  source,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Timeout returns the configured wait bound.
func (b *Bridge) Timeout() time.Duration {
	return b.timeout
}

// Waiting reports whether a waiter is currently published.
func (b *Bridge) Waiting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slot != nil
}

// Await subscribes to the address event, publishes a waiter for owner, runs
// connect and blocks until the address for owner arrives, the timeout fires
// or ctx is done. The waiter is cleared and the subscription removed exactly
// once on every path.
func (b *Bridge) Await(ctx context.Context, owner netstack.Owner, connect func() error) (addr netip.Addr, err error) {
	if owner == "" || connect == nil {
		return netip.Addr{}, ErrInvalidArgument
	}

	start := time.Now()
	defer func() {
		if b.observer != nil {
			b.observer(resultOf(err), time.Since(start))
		}
	}()

	sub, err := b.source.Subscribe(netstack.EventAddressAcquired, b.Notify)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("subscribe to address events: %w", err)
	}

	w := &waiter{owner: owner, ch: make(chan netip.Addr, 1)}
	if err := b.publish(w); err != nil {
		b.unsubscribe(sub)
		return netip.Addr{}, err
	}
	defer func() {
		b.clear(w)
		b.unsubscribe(sub)
	}()

	if err := connect(); err != nil {
		return netip.Addr{}, fmt.Errorf("connect: %w", err)
	}

	logging.Info("Waiting for IP address...",
		zap.String("owner", string(owner)),
		zap.Duration("timeout", b.timeout),
	)

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case addr = <-w.ch:
		logging.Info("Address acquired",
			zap.String("owner", string(owner)),
			zap.Stringer("address", addr),
			zap.Duration("elapsed", time.Since(start)),
		)
		return addr, nil
	case <-timer.C:
		logging.Warn("No IP received within the timeout period",
			zap.String("owner", string(owner)),
			zap.Duration("timeout", b.timeout),
		)
		return netip.Addr{}, ErrTimeout
	case <-ctx.Done():
		return netip.Addr{}, ctx.Err()
	}
}

// Notify is the network stack callback. It never blocks: it delivers the
// address to the published waiter if the event belongs to that waiter's
// interface and drops it otherwise.
func (b *Bridge) Notify(ev netstack.Event) {
	if ev.Kind != netstack.EventAddressAcquired {
		return
	}

	b.mu.Lock()
	w := b.slot
	b.mu.Unlock()

	if w == nil {
		logging.Debug("Address event with no waiter",
			zap.String("owner", string(ev.Owner)),
		)
		return
	}
	if ev.Owner != w.owner {
		logging.Warn("Got address event for unknown interface",
			zap.String("owner", string(ev.Owner)),
			zap.String("expected", string(w.owner)),
		)
		return
	}

	select {
	case w.ch <- ev.Address:
	default:
	}
}

func (b *Bridge) publish(w *waiter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.slot != nil {
		return ErrBusy
	}
	b.slot = w
	return nil
}

func (b *Bridge) clear(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.slot == w {
		b.slot = nil
	}
}

func (b *Bridge) unsubscribe(sub netstack.Subscription) {
	if err := b.source.Unsubscribe(sub); err != nil {
		logging.Warn("Failed to unsubscribe from address events", zap.Error(err))
	}
}

func resultOf(err error) Result {
	switch {
	case err == nil:
		return ResultAcquired
	case errors.Is(err, ErrTimeout):
		return ResultTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ResultCanceled
	default:
		return ResultFailed
	}
}

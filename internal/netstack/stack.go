package netstack

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrNetwork classifies every failure reported by this package.
	ErrNetwork = errors.New("network error")

	// ErrNotInitialized is returned when the driver is used before Init.
	ErrNotInitialized = fmt.Errorf("driver not initialized: %w", ErrNetwork)

	// ErrNotStarted is returned by Connect before Start.
	ErrNotStarted = fmt.Errorf("station not started: %w", ErrNetwork)

	// ErrNoInterface is returned when no station interface exists.
	ErrNoInterface = fmt.Errorf("no station interface: %w", ErrNetwork)

	// ErrInvalidCredentials is returned for an empty SSID or oversized fields.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrNetwork)

	// ErrNotSubscribed is returned when unsubscribing an unknown subscription.
	ErrNotSubscribed = fmt.Errorf("not subscribed: %w", ErrNetwork)
)

// EventKind identifies a network event.
type EventKind int

const (
	// EventAddressAcquired is emitted once per successful association.
	EventAddressAcquired EventKind = iota + 1
	// EventDisconnected is emitted when an association is dropped.
	EventDisconnected
)

// String returns the event kind name
func (k EventKind) String() string {
	switch k {
	case EventAddressAcquired:
		return "address_acquired"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Owner identifies the network interface an event belongs to.
type Owner string

// Event is delivered to subscribed handlers.
type Event struct {
	Kind    EventKind
	Owner   Owner
	Address netip.Addr
}

// Handler receives events. It may run on a network goroutine and must not block.
type Handler func(Event)

// Subscription identifies a registered handler.
type Subscription struct {
	id   uint64
	kind EventKind
}

// Kind returns the subscribed event kind.
func (s Subscription) Kind() EventKind {
	return s.kind
}

// Credentials identify the access point to associate with.
type Credentials struct {
	SSID     string
	Password string
}

// Validate checks the limits of the 802.11 fields.
func (c Credentials) Validate() error {
	if c.SSID == "" {
		return fmt.Errorf("empty SSID: %w", ErrInvalidCredentials)
	}
	if len(c.SSID) > 32 {
		return fmt.Errorf("SSID longer than 32 bytes: %w", ErrInvalidCredentials)
	}
	if len(c.Password) > 64 {
		return fmt.Errorf("password longer than 64 bytes: %w", ErrInvalidCredentials)
	}
	return nil
}

// Stack is the network stack interface bring-up needs.
type Stack interface {
	Start() error
	Stop() error
	Connect(creds Credentials) error
	Disconnect() error
	Subscribe(kind EventKind, h Handler) (Subscription, error)
	Unsubscribe(sub Subscription) error
	// MaxTxPower returns the transmit power in units of 0.25 dBm.
	MaxTxPower() (int8, error)
}

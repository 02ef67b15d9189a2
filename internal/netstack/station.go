package netstack

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/ledhttpd/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultAssociationDelay is how long the simulated association takes.
	DefaultAssociationDelay = 200 * time.Millisecond

	// DefaultTxPower is 20 dBm in 0.25 dBm units.
	DefaultTxPower int8 = 80

	// DefaultInterfaceName is the owner name of the station interface.
	DefaultInterfaceName Owner = "sta0"
)

// StationConfig configures the simulated station.
type StationConfig struct {
	// Address is handed out on association (default 127.0.0.1).
	Address netip.Addr

	// AssociationDelay is the time between Connect and the address event.
	AssociationDelay time.Duration

	// TxPower is reported by MaxTxPower.
	TxPower int8

	// InterfaceName names the station interface (default "sta0").
	InterfaceName Owner

	// RejectAuth simulates a wrong password: Connect succeeds but no
	// address is ever acquired.
	RejectAuth bool
}

// Station is a simulated station radio implementing Stack.
type Station struct {
	cfg StationConfig

	mu          sync.Mutex
	initialized bool
	started     bool
	handlers    bool
	iface       Owner
	connected   bool
	cancelAssoc chan struct{}
	nextID      uint64
	subs        map[uint64]subscriber
	wg          sync.WaitGroup
}

type subscriber struct {
	kind EventKind
	fn   Handler
}

// NewStation creates a station with the given configuration.
func NewStation(cfg StationConfig) *Station {
	if !cfg.Address.IsValid() {
		cfg.Address = netip.MustParseAddr("127.0.0.1")
	}
	if cfg.AssociationDelay <= 0 {
		cfg.AssociationDelay = DefaultAssociationDelay
	}
	if cfg.TxPower == 0 {
		cfg.TxPower = DefaultTxPower
	}
	if cfg.InterfaceName == "" {
		cfg.InterfaceName = DefaultInterfaceName
	}
	return &Station{
		cfg:  cfg,
		subs: make(map[uint64]subscriber),
	}
}

// Init initializes the driver and its event loop.
func (s *Station) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return fmt.Errorf("driver already initialized: %w", ErrNetwork)
	}
	s.initialized = true
	return nil
}

// Deinit releases the driver. It is idempotent.
func (s *Station) Deinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	return nil
}

// CreateInterface creates the station interface and returns its owner identity.
func (s *Station) CreateInterface() (Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return "", ErrNotInitialized
	}
	if s.iface != "" {
		return "", fmt.Errorf("interface %s already exists: %w", s.iface, ErrNetwork)
	}
	s.iface = s.cfg.InterfaceName
	return s.iface, nil
}

// DestroyInterface destroys the station interface. Destroying a missing
// interface is a no-op.
func (s *Station) DestroyInterface() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.iface = ""
	return nil
}

// Interface returns the current interface owner, or "" if none exists.
func (s *Station) Interface() Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iface
}

// SetDefaultHandlers attaches the driver to the interface.
func (s *Station) SetDefaultHandlers() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.iface == "" {
		return ErrNoInterface
	}
	s.handlers = true
	return nil
}

// ClearDefaultHandlers detaches the driver from the interface. It is a no-op
// once the interface handle is gone, so it only ever takes effect once.
func (s *Station) ClearDefaultHandlers() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.iface == "" {
		return nil
	}
	s.handlers = false
	return nil
}

// Start implements Stack.
func (s *Station) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if !s.handlers {
		return fmt.Errorf("default handlers not set: %w", ErrNetwork)
	}
	s.started = true
	return nil
}

// Stop implements Stack. It cancels any pending association.
func (s *Station) Stop() error {
	s.mu.Lock()
	s.started = false
	s.connected = false
	s.cancelLocked()
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// Connect implements Stack. The address event is emitted asynchronously.
func (s *Station) Connect(creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	if s.iface == "" {
		return ErrNoInterface
	}

	s.cancelLocked()
	cancel := make(chan struct{})
	s.cancelAssoc = cancel
	s.connected = true

	owner := s.iface
	logging.Info("Associating",
		zap.String("ssid", creds.SSID),
		zap.String("interface", string(owner)),
	)

	if s.cfg.RejectAuth {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(s.cfg.AssociationDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
			s.Emit(Event{Kind: EventAddressAcquired, Owner: owner, Address: s.cfg.Address})
		case <-cancel:
		}
	}()
	return nil
}

// Disconnect implements Stack. Disconnecting while idle is a no-op.
func (s *Station) Disconnect() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = false
	s.cancelLocked()
	owner := s.iface
	s.mu.Unlock()

	s.Emit(Event{Kind: EventDisconnected, Owner: owner})
	return nil
}

// Subscribe implements Stack.
func (s *Station) Subscribe(kind EventKind, h Handler) (Subscription, error) {
	if h == nil {
		return Subscription{}, fmt.Errorf("nil handler: %w", ErrNetwork)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.subs[s.nextID] = subscriber{kind: kind, fn: h}
	return Subscription{id: s.nextID, kind: kind}, nil
}

// Unsubscribe implements Stack.
func (s *Station) Unsubscribe(sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.id]; !ok {
		return ErrNotSubscribed
	}
	delete(s.subs, sub.id)
	return nil
}

// Subscribers returns the number of handlers registered for kind.
func (s *Station) Subscribers(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, sub := range s.subs {
		if sub.kind == kind {
			n++
		}
	}
	return n
}

// MaxTxPower implements Stack.
func (s *Station) MaxTxPower() (int8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return 0, ErrNotStarted
	}
	return s.cfg.TxPower, nil
}

// Emit delivers an event to every handler subscribed to its kind, outside
// the station lock.
func (s *Station) Emit(ev Event) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.kind == ev.Kind {
			handlers = append(handlers, sub.fn)
		}
	}
	s.mu.Unlock()

	logging.Debug("Network event",
		zap.Stringer("kind", ev.Kind),
		zap.String("owner", string(ev.Owner)),
		zap.Int("handlers", len(handlers)),
	)

	for _, h := range handlers {
		h(ev)
	}
}

func (s *Station) cancelLocked() {
	if s.cancelAssoc != nil {
		close(s.cancelAssoc)
		s.cancelAssoc = nil
	}
}

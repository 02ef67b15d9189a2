package device

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/muurk/ledhttpd/internal/bringup"
	"github.com/muurk/ledhttpd/internal/closer"
	"github.com/muurk/ledhttpd/internal/config"
	"github.com/muurk/ledhttpd/internal/etag"
	"github.com/muurk/ledhttpd/internal/logging"
	"github.com/muurk/ledhttpd/internal/mdns"
	"github.com/muurk/ledhttpd/internal/metrics"
	"github.com/muurk/ledhttpd/internal/netstack"
	"github.com/muurk/ledhttpd/internal/netwait"
	"github.com/muurk/ledhttpd/internal/nvs"
	"github.com/muurk/ledhttpd/internal/peripheral"
	"github.com/muurk/ledhttpd/internal/server"
	"github.com/muurk/ledhttpd/internal/version"
	"go.uber.org/zap"
)

// Stage names, in bring-up order.
const (
	StageFingerprint = "fingerprint"
	StageGPIO        = "gpio"
	StageNVS         = "nvs"
	StageWiFiInit    = "wifi-init"
	StageWiFiConnect = "wifi-connect"
	StageMDNS        = "mdns"
	StageWebServer   = "webserver"
)

// BootCountKey is the storage key of the persistent boot counter.
const BootCountKey = "boot_count"

// DefaultPinCount is the size of the simulated pin bank.
const DefaultPinCount = 22

// StopTimeout bounds the web server shutdown during teardown.
const StopTimeout = 5 * time.Second

// PinBank is the GPIO the device drives. peripheral.Bank implements it.
type PinBank interface {
	peripheral.Pins
	Reset(mask uint64) error
}

// Option configures a Device.
type Option func(*Device)

// WithPins replaces the simulated pin bank.
func WithPins(p PinBank) Option {
	return func(d *Device) {
		if p != nil {
			d.pins = p
		}
	}
}

// WithStation replaces the simulated radio.
func WithStation(st *netstack.Station) Option {
	return func(d *Device) {
		if st != nil {
			d.station = st
		}
	}
}

// WithIdentity replaces the build identity used for the fingerprint.
func WithIdentity(src etag.Source) Option {
	return func(d *Device) {
		if src != nil {
			d.identity = src
		}
	}
}

// WithAdvertiser replaces the mDNS registration function.
func WithAdvertiser(a mdns.Advertiser) Option {
	return func(d *Device) {
		if a != nil {
			d.advertise = a
		}
	}
}

// WithMetrics records stage, association and HTTP metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Device) {
		d.metrics = m
	}
}

// WithObserver adds a bring-up event observer, e.g. a terminal runner.
func WithObserver(fn bringup.Observer) Option {
	return func(d *Device) {
		if fn != nil {
			d.observers = append(d.observers, fn)
		}
	}
}

// WithLedger records cleanups in l instead of a fresh ledger.
func WithLedger(l *closer.Ledger) Option {
	return func(d *Device) {
		d.ledger = l
	}
}

// WithListenHost overrides the web server bind host. By default the server
// binds the address acquired during association.
func WithListenHost(host string) Option {
	return func(d *Device) {
		d.listenHost = &host
	}
}

// Device owns the collaborators and the state produced by bring-up.
type Device struct {
	cfg        *config.Config
	pins       PinBank
	station    *netstack.Station
	identity   etag.Source
	advertise  mdns.Advertiser
	metrics    *metrics.Metrics
	observers  []bringup.Observer
	ledger     *closer.Ledger
	listenHost *string

	orch    *bringup.Orchestrator
	fpCache *etag.Cache
	radio   *closer.Ledger // nested rollback of the radio init chain
	hub     *server.Hub

	mu          sync.Mutex
	fingerprint etag.Fingerprint
	led         *peripheral.LED
	store       *nvs.Store
	bootCount   uint32
	address     netip.Addr
	adv         mdns.Advertisement
	srv         *server.Server
}

// New creates a device from cfg. The configuration is validated; nothing is
// touched until Start.
func New(cfg *config.Config, opts ...Option) (*Device, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Device{
		cfg:       cfg,
		pins:      peripheral.NewBank(DefaultPinCount),
		identity:  &version.Identity{},
		advertise: mdns.Advertise,
		radio:     closer.New(),
		hub:       server.NewHub(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.station == nil {
		st, err := stationFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		d.station = st
	}

	orchOpts := []bringup.Option{bringup.WithLedger(d.ledger)}
	if d.metrics != nil {
		orchOpts = append(orchOpts, bringup.WithObserver(d.metrics.ObserveStage))
	}
	for _, fn := range d.observers {
		orchOpts = append(orchOpts, bringup.WithObserver(fn))
	}
	d.orch = bringup.New(orchOpts...)
	d.fpCache = etag.NewCache(d.identity)
	return d, nil
}

func stationFromConfig(cfg *config.Config) (*netstack.Station, error) {
	addr, err := netip.ParseAddr(cfg.Simulation.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: simulation address %q: %v", config.ErrInvalidConfig, cfg.Simulation.Address, err)
	}
	return netstack.NewStation(netstack.StationConfig{
		Address:          addr,
		AssociationDelay: cfg.Simulation.AssociationDelay,
		TxPower:          int8(cfg.Simulation.TxPower),
		RejectAuth:       cfg.Simulation.RejectAuth,
	}), nil
}

// Stages returns the bring-up sequence for the current configuration.
func (d *Device) Stages() []bringup.Stage {
	stages := []bringup.Stage{
		{Name: StageFingerprint, Action: d.loadFingerprint},
		{Name: StageGPIO, Action: d.configureGPIO, Cleanup: d.releaseGPIO},
		{Name: StageNVS, Action: d.openStorage, Cleanup: d.closeStorage},
		{Name: StageWiFiInit, Action: d.initRadio, Cleanup: d.deinitRadio},
		{Name: StageWiFiConnect, Action: d.associate, Cleanup: d.station.Disconnect},
	}
	if d.cfg.MDNS.Enabled {
		stages = append(stages, bringup.Stage{Name: StageMDNS, Action: d.startMDNS, Cleanup: d.stopMDNS})
	}
	return append(stages, bringup.Stage{Name: StageWebServer, Action: d.startServer, Cleanup: d.stopServer})
}

// StageNames returns the names of Stages in order.
func (d *Device) StageNames() []string {
	stages := d.Stages()
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = st.Name
	}
	return names
}

// Start runs the bring-up. On failure everything acquired so far has
// already been released and the returned error is a *bringup.StageError.
func (d *Device) Start(ctx context.Context) error {
	err := d.orch.Run(ctx, d.Stages())
	if err != nil {
		logging.Error("Bring-up failed",
			zap.String("stage", bringup.FailedStage(err)),
			zap.Error(err),
		)
		return err
	}
	logging.Info("Bring-up complete",
		zap.String("url", d.URL()),
		zap.Uint32("boot_count", d.BootCount()),
	)
	return nil
}

// Shutdown releases everything a successful Start acquired, in reverse
// order. It is a no-op unless Start succeeded.
func (d *Device) Shutdown() {
	d.orch.Shutdown()
}

// Close releases the ledger. Call it once the device will not be used again,
// after a failed Start or after Shutdown.
func (d *Device) Close() {
	d.orch.Ledger().Destroy()
	d.radio.Destroy()
}

// State returns the orchestrator state.
func (d *Device) State() bringup.State {
	return d.orch.State()
}

// Fingerprint returns the validator computed by the fingerprint stage.
func (d *Device) Fingerprint() etag.Fingerprint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fingerprint
}

// BootCount returns the boot counter after this boot's increment.
func (d *Device) BootCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bootCount
}

// Address returns the address acquired during association.
func (d *Device) Address() netip.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// URL returns the web server base URL, or "" while it is not running.
func (d *Device) URL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.srv == nil || d.srv.Addr() == nil {
		return ""
	}
	return "http://" + d.srv.Addr().String() + "/"
}

// LED returns the indicator once the gpio stage has run.
func (d *Device) LED() *peripheral.LED {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.led
}

func (d *Device) loadFingerprint(context.Context) error {
	fp, err := d.fpCache.Load()
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.fingerprint = fp
	d.mu.Unlock()
	logging.Info("Build fingerprint", zap.String("etag", fp.String()))
	return nil
}

func (d *Device) configureGPIO(context.Context) error {
	pin := d.cfg.LED.Pin
	mask := peripheral.PinMask(pin)
	if err := d.pins.ConfigureOutput(mask); err != nil {
		return fmt.Errorf("configure pin %d: %w", pin, err)
	}

	reset := closer.NewGuard("gpio-reset", func() error { return d.pins.Reset(mask) })
	defer reset.Release()

	led := peripheral.NewLED(d.pins, pin)
	if err := led.Off(); err != nil {
		return fmt.Errorf("switch LED off: %w", err)
	}
	led.OnChange(func(on bool) {
		d.hub.PublishLED(on)
		d.metrics.SetLED(on)
	})

	d.mu.Lock()
	d.led = led
	d.mu.Unlock()

	// the stage cleanup owns the pin from here
	reset.Disarm()
	return nil
}

func (d *Device) releaseGPIO() error {
	d.mu.Lock()
	led := d.led
	d.led = nil
	d.mu.Unlock()

	var errs []error
	if led != nil {
		errs = append(errs, led.Off())
	}
	errs = append(errs, d.pins.Reset(peripheral.PinMask(d.cfg.LED.Pin)))
	return errors.Join(errs...)
}

func (d *Device) openStorage(context.Context) error {
	path, err := d.cfg.StoragePath()
	if err != nil {
		return fmt.Errorf("%w: %v", nvs.ErrStorage, err)
	}
	store, err := nvs.Init(path)
	if err != nil {
		return err
	}

	release := closer.NewGuard("nvs-close", store.Close)
	defer release.Release()

	count, err := store.IncrementUint32(BootCountKey)
	if err != nil {
		return fmt.Errorf("increment %s: %w", BootCountKey, err)
	}

	d.mu.Lock()
	d.store = store
	d.bootCount = count
	d.mu.Unlock()

	d.metrics.SetBootCount(count)
	logging.Info("Boot counter", zap.Uint32("count", count), zap.String("path", path))

	release.Disarm()
	return nil
}

func (d *Device) closeStorage() error {
	d.mu.Lock()
	store := d.store
	d.store = nil
	d.mu.Unlock()

	if store == nil {
		return nil
	}
	return store.Close()
}

// initRadio runs the station init chain. Each step is guarded so a failure
// part way rolls back only the steps taken; on success the guards move into
// the radio ledger, which the stage cleanup drains.
func (d *Device) initRadio(context.Context) error {
	st := d.station

	if err := st.Init(); err != nil {
		return fmt.Errorf("init driver: %w", err)
	}
	deinit := closer.NewGuard("wifi-deinit", st.Deinit)
	defer deinit.Release()

	owner, err := st.CreateInterface()
	if err != nil {
		return fmt.Errorf("create interface: %w", err)
	}
	destroy := closer.NewGuard("wifi-destroy-interface", st.DestroyInterface)
	defer destroy.Release()

	if err := st.SetDefaultHandlers(); err != nil {
		return fmt.Errorf("set default handlers: %w", err)
	}
	handlers := closer.NewGuard("wifi-clear-handlers", st.ClearDefaultHandlers)
	defer handlers.Release()

	if err := st.Start(); err != nil {
		return fmt.Errorf("start station: %w", err)
	}
	stop := closer.NewGuard("wifi-stop", st.Stop)
	defer stop.Release()

	pwr, err := st.MaxTxPower()
	if err != nil {
		return fmt.Errorf("read tx power: %w", err)
	}
	logging.Info("Station started",
		zap.String("interface", string(owner)),
		zap.Float64("max_tx_power_dbm", float64(pwr)*0.25),
	)

	guards := []*closer.Guard{deinit, destroy, handlers, stop}
	for i, g := range guards {
		if err := g.Promote(d.radio); err != nil {
			for j := len(guards) - 1; j >= i; j-- {
				_ = guards[j].Release()
			}
			d.radio.Drain()
			return fmt.Errorf("track radio cleanup: %w", err)
		}
	}
	return nil
}

func (d *Device) deinitRadio() error {
	d.radio.Drain()
	return nil
}

// associate connects and waits for an address. A connect that was started
// but never produced an address is disconnected before returning.
func (d *Device) associate(ctx context.Context) error {
	creds := netstack.Credentials{
		SSID:     d.cfg.WiFi.SSID,
		Password: d.cfg.WiFi.Password,
	}
	bridge := newBridge(d.station, d.cfg.WiFi.AssociationTimeout, d.metrics)

	disconnect := closer.NewGuard("wifi-disconnect-partial", d.station.Disconnect)
	defer disconnect.Release()

	addr, err := bridge.Await(ctx, d.station.Interface(), func() error {
		return d.station.Connect(creds)
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.address = addr
	d.mu.Unlock()
	logging.Info("Station associated", zap.String("ssid", creds.SSID), zap.String("address", addr.String()))

	// Disconnect is now the stage cleanup.
	disconnect.Disarm()
	return nil
}

func (d *Device) startMDNS(context.Context) error {
	cfg := mdns.Config{
		Hostname:  d.cfg.MDNS.Hostname,
		Instance:  d.cfg.MDNS.Instance,
		Port:      d.cfg.HTTP.Port,
		Addresses: []string{d.Address().String()},
		Text:      []string{"etag=" + string(d.Fingerprint())},
	}
	adv, err := d.advertise(cfg)
	if err != nil {
		return fmt.Errorf("advertise %s.%s: %w: %w", cfg.Hostname, mdns.ServiceDomain, netstack.ErrNetwork, err)
	}

	d.mu.Lock()
	d.adv = adv
	d.mu.Unlock()
	return nil
}

func (d *Device) stopMDNS() error {
	d.mu.Lock()
	adv := d.adv
	d.adv = nil
	d.mu.Unlock()

	if adv != nil {
		adv.Shutdown()
	}
	return nil
}

func (d *Device) startServer(context.Context) error {
	page, err := server.IndexPage()
	if err != nil {
		return err
	}

	router := server.NewRouter(server.DefaultMaxRouteHandlers, d.metrics)
	handlers := &server.Handlers{
		LED:         d.LED(),
		Fingerprint: d.Fingerprint(),
		Page:        page,
		Events:      d.hub,
		Metrics:     d.metrics.Handler(),
	}
	if err := handlers.Register(router); err != nil {
		return err
	}

	host := d.Address().String()
	if d.listenHost != nil {
		host = *d.listenHost
	}
	cfg := server.DefaultConfig()
	cfg.Host = host
	cfg.Port = d.cfg.HTTP.Port
	cfg.MaxOpenSockets = d.cfg.HTTP.MaxOpenSockets

	srv := server.New(cfg, router)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start web server: %w: %w", netstack.ErrNetwork, err)
	}

	d.mu.Lock()
	d.srv = srv
	d.mu.Unlock()
	return nil
}

func (d *Device) stopServer() error {
	d.mu.Lock()
	srv := d.srv
	d.srv = nil
	d.mu.Unlock()

	// hijacked websocket connections are not tracked by http.Server
	hubErr := d.hub.Close()
	if srv == nil {
		return hubErr
	}

	ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()
	return errors.Join(hubErr, srv.Stop(ctx))
}

func newBridge(st *netstack.Station, timeout time.Duration, m *metrics.Metrics) *netwait.Bridge {
	opts := []netwait.Option{netwait.WithTimeout(timeout)}
	if m != nil {
		opts = append(opts, netwait.WithObserver(m.ObserveAssociation))
	}
	return netwait.New(st, opts...)
}

package mdns

import (
	"errors"
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/ledhttpd/internal/logging"
	"github.com/muurk/ledhttpd/internal/version"
)

const (
	// ServiceType is the advertised service type
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultHostname is the advertised host name (without ".local")
	DefaultHostname = "ledhttpd"

	// DefaultInstance is the advertised instance name
	DefaultInstance = "ESP32 with mDNS"

	// FirmwareTag marks services published by ledhttpd
	FirmwareTag = "ledhttpd"
)

// ErrInvalidConfig is returned by Advertise for an incomplete configuration.
var ErrInvalidConfig = errors.New("invalid mDNS configuration")

// ErrAdvertise is returned by Advertise when the responder cannot start.
var ErrAdvertise = errors.New("failed to register mDNS service")

// Config describes what to advertise.
type Config struct {
	Hostname  string
	Instance  string
	Port      int
	Addresses []string // addresses the hostname resolves to
	Text      []string // extra TXT records, "key=value"
}

// TXT returns the TXT records published for cfg.
func (c Config) TXT() []string {
	txt := []string{
		"fw=" + FirmwareTag,
		"ver=" + version.Version,
		"path=/",
	}
	return append(txt, c.Text...)
}

// Validate checks that the configuration can be published.
func (c Config) Validate() error {
	switch {
	case c.Hostname == "":
		return fmt.Errorf("%w: hostname is empty", ErrInvalidConfig)
	case strings.ContainsAny(c.Hostname, ". "):
		return fmt.Errorf("%w: hostname %q must be a single label", ErrInvalidConfig, c.Hostname)
	case c.Instance == "":
		return fmt.Errorf("%w: instance name is empty", ErrInvalidConfig)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case len(c.Addresses) == 0:
		return fmt.Errorf("%w: no addresses", ErrInvalidConfig)
	}
	return nil
}

// Advertisement is a running mDNS responder.
type Advertisement interface {
	Shutdown()
}

// Advertiser starts an advertisement. Advertise is the production
// implementation; tests substitute their own.
type Advertiser func(cfg Config) (Advertisement, error)

// Advertise publishes cfg on every multicast-capable interface.
func Advertise(cfg Config) (Advertisement, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	server, err := zeroconf.RegisterProxy(
		cfg.Instance,
		ServiceType,
		ServiceDomain,
		cfg.Port,
		cfg.Hostname,
		cfg.Addresses,
		cfg.TXT(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdvertise, err)
	}

	logging.Info("mDNS service advertised",
		zap.String("hostname", cfg.Hostname+"."+ServiceDomain),
		zap.String("instance", cfg.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", cfg.Port),
		zap.Strings("addresses", cfg.Addresses),
	)
	return server, nil
}

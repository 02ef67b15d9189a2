package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentVersion is the configuration file format version.
const CurrentVersion = 1

// PasswordEnvVar supplies the WiFi password.
const PasswordEnvVar = "LEDHTTPD_WIFI_PASSWORD"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the entire configuration file.
type Config struct {
	Version    int        `yaml:"version"`
	WiFi       WiFi       `yaml:"wifi"`
	HTTP       HTTP       `yaml:"http"`
	MDNS       MDNS       `yaml:"mdns"`
	LED        LED        `yaml:"led"`
	Storage    Storage    `yaml:"storage"`
	Simulation Simulation `yaml:"simulation"`
	LogLevel   string     `yaml:"log_level,omitempty"` // debug, info, warn, error; empty is silent
}

// WiFi holds the station settings.
type WiFi struct {
	SSID               string        `yaml:"ssid"`
	Password           string        `yaml:"-"` // never persisted
	AssociationTimeout time.Duration `yaml:"association_timeout"`
}

// HTTP holds the web server settings.
type HTTP struct {
	Port           int `yaml:"port"`
	MaxOpenSockets int `yaml:"max_open_sockets"`
}

// MDNS holds the advertisement settings.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	Instance string `yaml:"instance"`
}

// LED holds the indicator settings.
type LED struct {
	Pin int `yaml:"pin"`
}

// Storage holds the key storage settings.
type Storage struct {
	Path string `yaml:"path"` // empty means nvs.yaml next to the config file
}

// Simulation tunes the in-process radio.
type Simulation struct {
	AssociationDelay time.Duration `yaml:"association_delay"`
	Address          string        `yaml:"address"`
	TxPower          int           `yaml:"tx_power"` // quarter dBm
	RejectAuth       bool          `yaml:"reject_auth,omitempty"`
}

// Default returns the configuration the firmware ships with.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		WiFi: WiFi{
			SSID:               "ledhttpd",
			AssociationTimeout: 10 * time.Second,
		},
		HTTP: HTTP{
			Port:           8080,
			MaxOpenSockets: 4,
		},
		MDNS: MDNS{
			Enabled:  true,
			Hostname: "ledhttpd",
			Instance: "ESP32 with mDNS",
		},
		LED: LED{
			Pin: 8,
		},
		Simulation: Simulation{
			AssociationDelay: 200 * time.Millisecond,
			Address:          "127.0.0.1",
			TxPower:          80,
		},
	}
}

// ApplyEnv fills values that only come from the environment.
func (c *Config) ApplyEnv() {
	if pw, ok := os.LookupEnv(PasswordEnvVar); ok {
		c.WiFi.Password = pw
	}
}

// StoragePath resolves the key storage path.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nvs.yaml"), nil
}

// Validate checks the configuration for values bring-up cannot use.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Version != CurrentVersion {
		add("unsupported config version %d (expected %d)", c.Version, CurrentVersion)
	}
	if n := len(c.WiFi.SSID); n == 0 || n > 32 {
		add("wifi.ssid must be 1-32 bytes, got %d", n)
	}
	if len(c.WiFi.Password) > 64 {
		add("wifi password must be at most 64 bytes")
	}
	if c.WiFi.AssociationTimeout <= 0 {
		add("wifi.association_timeout must be positive")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		add("http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.MaxOpenSockets < 1 {
		add("http.max_open_sockets must be at least 1")
	}
	if c.MDNS.Enabled && (c.MDNS.Hostname == "" || c.MDNS.Instance == "") {
		add("mdns.hostname and mdns.instance are required when mdns is enabled")
	}
	if c.LED.Pin < 0 || c.LED.Pin > 63 {
		add("led.pin %d out of range 0-63", c.LED.Pin)
	}
	if c.Simulation.AssociationDelay < 0 {
		add("simulation.association_delay must not be negative")
	}
	if c.Simulation.TxPower < -128 || c.Simulation.TxPower > 127 {
		add("simulation.tx_power %d out of range", c.Simulation.TxPower)
	}

	return errors.Join(errs...)
}

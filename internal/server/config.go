package server

import "time"

const (
	// DefaultPort is the HTTP port when none is configured.
	DefaultPort = 80

	// DefaultMaxOpenSockets bounds concurrently open client connections.
	DefaultMaxOpenSockets = 4

	// DefaultMaxRouteHandlers bounds the number of registered routes.
	DefaultMaxRouteHandlers = 8

	// DefaultTimeout applies to both receiving a request and sending a response.
	DefaultTimeout = 10 * time.Second
)

// Config holds the server configuration
type Config struct {
	Host           string
	Port           int // 0 picks a free port
	MaxOpenSockets int
	RecvTimeout    time.Duration
	SendTimeout    time.Duration
	KeepAlive      bool
}

// DefaultConfig returns the configuration of the device firmware.
func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		MaxOpenSockets: DefaultMaxOpenSockets,
		RecvTimeout:    DefaultTimeout,
		SendTimeout:    DefaultTimeout,
		KeepAlive:      true,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxOpenSockets <= 0 {
		c.MaxOpenSockets = DefaultMaxOpenSockets
	}
	if c.RecvTimeout <= 0 {
		c.RecvTimeout = DefaultTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultTimeout
	}
}

package mdns

import (
	"fmt"
	"time"
)

// Instance is a ledhttpd device found on the network
type Instance struct {
	// Name is the advertised instance name (e.g., "ESP32 with mDNS")
	Name string

	// Hostname is the mDNS hostname (e.g., "ledhttpd.local.")
	Hostname string

	// IP is the address, IPv4 preferred
	IP string

	// Port is the HTTP port
	Port int

	// Metadata contains the TXT records
	Metadata map[string]string

	// DiscoveredAt is when the instance was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the instance
func (i *Instance) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", i.Name, i.Hostname, i.IP, i.Port)
}

// BaseURL returns the HTTP base URL for the instance
func (i *Instance) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", i.IP, i.Port)
}

// Version returns the advertised firmware version, or "" if absent
func (i *Instance) Version() string {
	return i.GetMetadata("ver")
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}

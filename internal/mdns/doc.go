// Package mdns advertises the device over multicast DNS and finds other
// ledhttpd instances on the local network.
//
// The device publishes an "_http._tcp" service under its configured hostname
// and instance name once it has an address. The service carries TXT records
// identifying the firmware ("fw=ledhttpd") and its version, which is what the
// Scanner filters on.
//
// # Usage Example
//
//	adv, err := mdns.Advertise(mdns.Config{
//	    Hostname:  "ledhttpd",
//	    Instance:  "ESP32 with mDNS",
//	    Port:      80,
//	    Addresses: []string{"192.168.4.16"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	instances, err := mdns.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package mdns

// Package config provides the ledhttpd configuration file.
//
// The configuration is a YAML file holding the station credentials' SSID,
// the HTTP and mDNS settings, the LED pin, the key storage path and the
// parameters of the simulated radio. Command-line flags override it.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/ledhttpd/config.yaml or $HOME/.config/ledhttpd/config.yaml
//   - macOS: $HOME/.config/ledhttpd/config.yaml
//   - Windows: %LOCALAPPDATA%\ledhttpd\config.yaml
//
// # Security
//
// The WiFi password is NEVER written to the file. It is read from
// LEDHTTPD_WIFI_PASSWORD or prompted on the terminal when needed.
//
// # Usage Example
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.ApplyEnv()
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

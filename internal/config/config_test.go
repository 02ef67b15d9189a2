package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		configDir, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/tmp/xdg", "ledhttpd"), configDir)
		return
	}

	configDir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Contains(t, configDir, "ledhttpd")
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(configPath))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.LED.Pin)
	assert.Equal(t, 4, cfg.HTTP.MaxOpenSockets)
	assert.Equal(t, 10*time.Second, cfg.WiFi.AssociationTimeout)
	assert.Equal(t, "ESP32 with mDNS", cfg.MDNS.Instance)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().HTTP.Port, cfg.HTTP.Port, "missing file should yield defaults")
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`version: 1
wifi:
  ssid: workshop
  association_timeout: 3s
led:
  pin: 2
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "workshop", cfg.WiFi.SSID)
	assert.Equal(t, 3*time.Second, cfg.WiFi.AssociationTimeout)
	assert.Equal(t, 2, cfg.LED.Pin)
	assert.Equal(t, 4, cfg.HTTP.MaxOpenSockets, "unset keys keep their defaults")
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("wifi: [unterminated"), 0o600))
	_, err := Load(bad)
	assert.Error(t, err, "malformed YAML should fail")

	future := filepath.Join(dir, "future.yaml")
	require.NoError(t, os.WriteFile(future, []byte("version: 2\n"), 0o600))
	_, err = Load(future)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.WiFi.SSID = "garage"
	cfg.WiFi.Password = "hunter22"
	cfg.HTTP.Port = 9090
	cfg.Simulation.RejectAuth = true

	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter22", "password must never be written to the config file")
	assert.True(t, strings.HasPrefix(string(raw), "# ledhttpd configuration file"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "garage", loaded.WiFi.SSID)
	assert.Equal(t, 9090, loaded.HTTP.Port)
	assert.True(t, loaded.Simulation.RejectAuth)
	assert.Empty(t, loaded.WiFi.Password, "password should not be loaded from file")
	assert.Equal(t, 10*time.Second, loaded.WiFi.AssociationTimeout)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(PasswordEnvVar, "from-env")
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "from-env", cfg.WiFi.Password)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"version", func(c *Config) { c.Version = 0 }},
		{"empty ssid", func(c *Config) { c.WiFi.SSID = "" }},
		{"long ssid", func(c *Config) { c.WiFi.SSID = strings.Repeat("s", 33) }},
		{"long password", func(c *Config) { c.WiFi.Password = strings.Repeat("p", 65) }},
		{"timeout", func(c *Config) { c.WiFi.AssociationTimeout = 0 }},
		{"port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"sockets", func(c *Config) { c.HTTP.MaxOpenSockets = 0 }},
		{"mdns hostname", func(c *Config) { c.MDNS.Hostname = "" }},
		{"pin", func(c *Config) { c.LED.Pin = 64 }},
		{"delay", func(c *Config) { c.Simulation.AssociationDelay = -time.Second }},
		{"tx power", func(c *Config) { c.Simulation.TxPower = 200 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := Default()
	cfg.MDNS.Enabled = false
	cfg.MDNS.Hostname = ""
	assert.NoError(t, cfg.Validate(), "mdns fields are optional when disabled")
}

func TestStoragePath(t *testing.T) {
	cfg := Default()
	cfg.Storage.Path = "/var/lib/ledhttpd/nvs.yaml"
	p, err := cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ledhttpd/nvs.yaml", p)

	cfg.Storage.Path = ""
	p, err = cfg.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "nvs.yaml", filepath.Base(p))
}

func BenchmarkGetConfigDir(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = GetConfigDir()
	}
}

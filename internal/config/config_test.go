package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/probe"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "22,80,443,8080,445", cfg.Scanning.ServicePorts)
	assert.False(t, cfg.Scanning.HiddenHostDiscovery)
	assert.Empty(t, cfg.Scanning.HiddenHostPorts)
	assert.Equal(t, probe.EngineConnect, cfg.Probe.Engine)
	assert.Equal(t, 10*time.Second, cfg.Probe.MonitorInterval)
	assert.Equal(t, HistoryMemory, cfg.History.Backend)
	assert.False(t, cfg.UsesDatabase())
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAPIAddress())
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "valid yaml config",
			file: "config.yaml",
			content: `
api:
  listen_addr: 0.0.0.0
  port: 9090
scanning:
  service_ports: "22, 3389"
  hidden_host_discovery: true
  hidden_host_ports: "7,9"
probe:
  engine: nmap
  monitor_interval: 30s
  dial_timeout: 250ms
history:
  backend: postgres
database:
  host: db.internal
  database: netscope
  username: netscope
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0:9090", cfg.GetAPIAddress())
				assert.Equal(t, "22, 3389", cfg.Scanning.ServicePorts)
				assert.True(t, cfg.Scanning.HiddenHostDiscovery)
				assert.Equal(t, probe.EngineNmap, cfg.Probe.Engine)
				assert.Equal(t, 30*time.Second, cfg.Probe.MonitorInterval)
				assert.Equal(t, 250*time.Millisecond, cfg.Probe.DialTimeout)
				assert.Equal(t, 100, cfg.Probe.Concurrency, "unset keys keep defaults")
				assert.True(t, cfg.UsesDatabase())
				assert.Equal(t, 5432, cfg.Database.Port)
			},
		},
		{
			name:    "valid json config",
			file:    "config.json",
			content: `{"api": {"port": 7000}, "logging": {"level": "debug", "format": "json"}}`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7000, cfg.API.Port)
				assert.EqualValues(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name:    "invalid yaml",
			file:    "config.yaml",
			content: "api: [unclosed",
			wantErr: true,
		},
		{
			name:    "postgres history without database",
			file:    "config.yaml",
			content: "history:\n  backend: postgres\n",
			wantErr: true,
		},
		{
			name:    "unknown history backend",
			file:    "config.yaml",
			content: "history:\n  backend: redis\n",
			wantErr: true,
		},
		{
			name:    "bad probe engine",
			file:    "config.yaml",
			content: "probe:\n  engine: syn\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.content))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.API.Port = 8181
	cfg.Probe.MonitorInterval = 45 * time.Second
	cfg.Scanning.HiddenHostPorts = "7"

	path := filepath.Join(t.TempDir(), "nested", "netscope.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   errors.ErrorCode
	}{
		{"api port", func(c *Config) { c.API.Port = 0 }, errors.CodeValidation},
		{"api listen addr", func(c *Config) { c.API.ListenAddr = "" }, errors.CodeConfiguration},
		{"tls cert", func(c *Config) { c.API.TLS.Enabled = true }, errors.CodeConfiguration},
		{"command timeout", func(c *Config) { c.Daemon.CommandTimeout = 0 }, errors.CodeValidation},
		{"sync interval", func(c *Config) { c.Monitoring.SyncInterval = -time.Second }, errors.CodeValidation},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, errors.CodeValidation},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, errors.CodeValidation},
		{"probe", func(c *Config) { c.Probe.Concurrency = 0 }, errors.CodeConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}

	t.Run("disabled api skips api checks", func(t *testing.T) {
		cfg := Default()
		cfg.API.Enabled = false
		cfg.API.Port = 0
		assert.NoError(t, cfg.Validate())
	})
}

// Package config loads and validates the netscope daemon configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/netscope/internal/db"
	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/probe"
	"github.com/anstrom/netscope/internal/settings"
)

// History backends.
const (
	HistoryMemory   = "memory"
	HistoryPostgres = "postgres"
)

// Config represents the complete daemon configuration
type Config struct {
	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Scan settings defaults. Port lists are comma-separated text.
	Scanning settings.Raw `yaml:"scanning" json:"scanning"`

	// Probe backend tuning
	Probe probe.Config `yaml:"probe" json:"probe"`

	// Monitoring lifecycle
	Monitoring MonitoringConfig `yaml:"monitoring" json:"monitoring"`

	// Scan history storage
	History HistoryConfig `yaml:"history" json:"history"`

	// Database configuration, used by the postgres history backend
	Database db.Config `yaml:"database" json:"database"`
}

// DaemonConfig holds daemon-specific settings
type DaemonConfig struct {
	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Upper bound for a single backend command
	CommandTimeout time.Duration `yaml:"command_timeout" json:"command_timeout"`

	// How often system metrics are refreshed
	MetricsInterval time.Duration `yaml:"metrics_interval" json:"metrics_interval"`

	// Optional PID file, removed on shutdown
	PIDFile string `yaml:"pid_file" json:"pid_file"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Port       int    `yaml:"port" json:"port"`

	TLS  TLSConfig  `yaml:"tls" json:"tls"`
	CORS CORSConfig `yaml:"cors" json:"cors"`

	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Maximum request body size in bytes
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`
}

// TLSConfig holds TLS settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// MonitoringConfig controls how the daemon keeps its monitoring state in
// step with the backend.
type MonitoringConfig struct {
	// Query the backend once at start-up
	SyncOnStart bool `yaml:"sync_on_start" json:"sync_on_start"`

	// Re-query periodically (0 disables)
	SyncInterval time.Duration `yaml:"sync_interval" json:"sync_interval"`
}

// HistoryConfig selects where recent scan ranges are kept.
type HistoryConfig struct {
	Backend string `yaml:"backend" json:"backend"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			ShutdownTimeout: 30 * time.Second,
			CommandTimeout:  30 * time.Second,
			MetricsInterval: 15 * time.Second,
		},
		Logging: logging.DefaultConfig(),
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
			},
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxRequestSize: 1024 * 1024, // 1MB
		},
		Scanning: settings.Raw{
			ServicePorts:        settings.DefaultServicePortsString,
			HiddenHostDiscovery: false,
			HiddenHostPorts:     "",
		},
		Probe: probe.DefaultConfig(),
		Monitoring: MonitoringConfig{
			SyncOnStart:  true,
			SyncInterval: 0,
		},
		History:  HistoryConfig{Backend: HistoryMemory},
		Database: db.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// yaml.v3 also reads JSON documents.
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Daemon.CommandTimeout <= 0 {
		return errors.ErrConfigInvalid("daemon.command_timeout", c.Daemon.CommandTimeout)
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return errors.ErrConfigInvalid("api.port", c.API.Port)
		}
		if c.API.ListenAddr == "" {
			return errors.ErrConfigMissing("api.listen_addr")
		}
	}
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			return errors.ErrConfigMissing("api.tls.cert_file")
		}
		if c.API.TLS.KeyFile == "" {
			return errors.ErrConfigMissing("api.tls.key_file")
		}
	}

	if err := c.Probe.Validate(); err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "invalid probe configuration", err)
	}

	if c.Monitoring.SyncInterval < 0 {
		return errors.ErrConfigInvalid("monitoring.sync_interval", c.Monitoring.SyncInterval)
	}

	switch c.History.Backend {
	case HistoryMemory:
	case HistoryPostgres:
		if c.Database.Host == "" {
			return errors.ErrConfigMissing("database.host")
		}
		if c.Database.Database == "" {
			return errors.ErrConfigMissing("database.database")
		}
		if c.Database.Username == "" {
			return errors.ErrConfigMissing("database.username")
		}
	default:
		return errors.ErrConfigInvalid("history.backend", c.History.Backend)
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.ErrConfigInvalid("logging.level", c.Logging.Level)
	}
	if c.Logging.Format != logging.FormatText && c.Logging.Format != logging.FormatJSON {
		return errors.ErrConfigInvalid("logging.format", c.Logging.Format)
	}

	return nil
}

// UsesDatabase reports whether the configuration needs a PostgreSQL connection.
func (c *Config) UsesDatabase() bool {
	return c.History.Backend == HistoryPostgres
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

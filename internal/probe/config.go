// Package probe is the built-in discovery and monitoring backend. It sweeps
// an address range with TCP connects or nmap, enriches each live host with
// a hostname, MAC address and device type, and polls liveness on a cron
// schedule while monitoring is active.
package probe

import (
	"fmt"
	"time"
)

// Engine names accepted in Config.Engine.
const (
	EngineConnect = "connect"
	EngineNmap    = "nmap"
)

// Config holds probe tuning.
type Config struct {
	Engine          string        `yaml:"engine" json:"engine"`
	Concurrency     int           `yaml:"concurrency" json:"concurrency"`
	DialTimeout     time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	LivenessPorts   []int         `yaml:"liveness_ports" json:"liveness_ports"`
	LivenessTimeout time.Duration `yaml:"liveness_timeout" json:"liveness_timeout"`
	MonitorInterval time.Duration `yaml:"monitor_interval" json:"monitor_interval"`

	ResolveHostnames bool          `yaml:"resolve_hostnames" json:"resolve_hostnames"`
	DNSServer        string        `yaml:"dns_server" json:"dns_server"`
	DNSTimeout       time.Duration `yaml:"dns_timeout" json:"dns_timeout"`
	LookupMAC        bool          `yaml:"lookup_mac" json:"lookup_mac"`
	ARPTablePath     string        `yaml:"arp_table_path" json:"arp_table_path"`

	// SNMP system group lookups, off by default.
	SNMPEnabled   bool          `yaml:"snmp_enabled" json:"snmp_enabled"`
	SNMPCommunity string        `yaml:"snmp_community" json:"snmp_community"`
	SNMPPort      uint16        `yaml:"snmp_port" json:"snmp_port"`
	SNMPTimeout   time.Duration `yaml:"snmp_timeout" json:"snmp_timeout"`
	SNMPRetries   int           `yaml:"snmp_retries" json:"snmp_retries"`

	// Nmap engine only.
	NmapOSDetection bool   `yaml:"nmap_os_detection" json:"nmap_os_detection"`
	NmapBinaryPath  string `yaml:"nmap_binary_path" json:"nmap_binary_path"`
}

// DefaultConfig returns the probe defaults.
func DefaultConfig() Config {
	return Config{
		Engine:           EngineConnect,
		Concurrency:      100,
		DialTimeout:      500 * time.Millisecond,
		LivenessPorts:    []int{80, 443, 22, 8080},
		LivenessTimeout:  time.Second,
		MonitorInterval:  10 * time.Second,
		ResolveHostnames: true,
		DNSTimeout:       2 * time.Second,
		LookupMAC:        true,
		ARPTablePath:     "/proc/net/arp",
		SNMPCommunity:    "public",
		SNMPPort:         161,
		SNMPTimeout:      time.Second,
		SNMPRetries:      1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Engine != EngineConnect && c.Engine != EngineNmap {
		return fmt.Errorf("unknown probe engine %q", c.Engine)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("probe concurrency must be positive")
	}
	if c.DialTimeout <= 0 || c.LivenessTimeout <= 0 {
		return fmt.Errorf("probe timeouts must be positive")
	}
	if c.MonitorInterval < time.Second {
		return fmt.Errorf("monitor interval must be at least 1s")
	}
	if len(c.LivenessPorts) == 0 {
		return fmt.Errorf("at least one liveness port is required")
	}
	for _, p := range c.LivenessPorts {
		if p < 1 || p > 65535 {
			return fmt.Errorf("liveness port %d out of range", p)
		}
	}
	if c.SNMPEnabled {
		if c.SNMPCommunity == "" {
			return fmt.Errorf("SNMP community is required when SNMP is enabled")
		}
		if c.SNMPPort == 0 {
			return fmt.Errorf("SNMP port must be positive")
		}
		if c.SNMPTimeout <= 0 || c.SNMPRetries < 0 {
			return fmt.Errorf("SNMP timeout must be positive and retries non-negative")
		}
	}
	return nil
}

// Package settings provides the read-only scan settings snapshot taken each
// time a scan or monitoring session is requested.
package settings

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Viper keys read by ViperProvider.
const (
	KeyServicePorts        = "scanning.service_ports"
	KeyHiddenHostDiscovery = "scanning.hidden_host_discovery"
	KeyHiddenHostPorts     = "scanning.hidden_host_ports"

	portRule = "min=1,max=65535"
)

// DefaultServicePorts is used whenever the configured service port list
// yields no valid ports.
var DefaultServicePorts = []int{22, 80, 443, 8080, 445}

// DefaultServicePortsString is DefaultServicePorts in settings form.
const DefaultServicePortsString = "22,80,443,8080,445"

// Snapshot is the settings view handed to a single scan or monitoring request.
type Snapshot struct {
	ServicePorts               []int `json:"service_ports"`
	HiddenHostDiscoveryEnabled bool  `json:"hidden_host_discovery"`
	HiddenHostPorts            []int `json:"hidden_host_ports"`
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.ServicePorts = slices.Clone(s.ServicePorts)
	s.HiddenHostPorts = slices.Clone(s.HiddenHostPorts)
	return s
}

// Raw holds settings as they are stored: port lists are comma-separated text.
type Raw struct {
	ServicePorts        string `mapstructure:"service_ports" yaml:"service_ports" json:"service_ports"`
	HiddenHostDiscovery bool   `mapstructure:"hidden_host_discovery" yaml:"hidden_host_discovery" json:"hidden_host_discovery"`
	HiddenHostPorts     string `mapstructure:"hidden_host_ports" yaml:"hidden_host_ports" json:"hidden_host_ports"`
}

// Snapshot converts stored text into an effective snapshot.
func (r Raw) Snapshot() Snapshot {
	service := ParsePortList(r.ServicePorts)
	if len(service) == 0 {
		service = slices.Clone(DefaultServicePorts)
	}
	return Snapshot{
		ServicePorts:               service,
		HiddenHostDiscoveryEnabled: r.HiddenHostDiscovery,
		HiddenHostPorts:            ParsePortList(r.HiddenHostPorts),
	}
}

var validate = validator.New()

// ParsePortList parses comma-separated ports, keeping only integers in
// 1..65535. Order is preserved and duplicates are dropped. Invalid entries
// are skipped rather than failing the whole list.
func ParsePortList(s string) []int {
	out := []int{}
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		p, err := strconv.Atoi(field)
		if err != nil || validate.Var(p, portRule) != nil {
			continue
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// FormatPortList renders ports back to settings text.
func FormatPortList(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// Provider supplies the current settings.
type Provider interface {
	Snapshot() Snapshot
}

// Static is an in-memory Provider. It is safe for concurrent use.
type Static struct {
	mu  sync.RWMutex
	raw Raw
}

// NewStatic creates a provider seeded with raw.
func NewStatic(raw Raw) *Static {
	return &Static{raw: raw}
}

// Set replaces the stored settings.
func (s *Static) Set(raw Raw) {
	s.mu.Lock()
	s.raw = raw
	s.mu.Unlock()
}

// Snapshot implements Provider.
func (s *Static) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw.Snapshot()
}

// ViperProvider reads settings from a viper instance on every call, so
// config reloads and environment overrides apply to the next scan.
type ViperProvider struct {
	v *viper.Viper
}

// NewViperProvider wraps v. A nil v uses the global viper instance.
func NewViperProvider(v *viper.Viper) *ViperProvider {
	if v == nil {
		v = viper.GetViper()
	}
	v.SetDefault(KeyServicePorts, DefaultServicePortsString)
	v.SetDefault(KeyHiddenHostDiscovery, false)
	v.SetDefault(KeyHiddenHostPorts, "")
	return &ViperProvider{v: v}
}

// Snapshot implements Provider.
func (p *ViperProvider) Snapshot() Snapshot {
	return Raw{
		ServicePorts:        p.v.GetString(KeyServicePorts),
		HiddenHostDiscovery: p.v.GetBool(KeyHiddenHostDiscovery),
		HiddenHostPorts:     p.v.GetString(KeyHiddenHostPorts),
	}.Snapshot()
}

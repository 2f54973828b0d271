// Package backend defines the contract between the session core and a
// discovery/monitoring backend: the commands the core issues and the events
// the backend pushes back.
package backend

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/iprange"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/anstrom/netscope/internal/backend Backend

// Backend is the command surface of a discovery/monitoring backend.
// Every call may block and must honour ctx.
type Backend interface {
	// StartScan begins streaming discovery. It returns once the scan is accepted.
	StartScan(ctx context.Context, params ScanParameters) error
	// StartMonitoring begins liveness polling, replacing any active session.
	StartMonitoring(ctx context.Context, params MonitorParameters) error
	// StopMonitoring stops liveness polling. Stopping an idle backend succeeds.
	StopMonitoring(ctx context.Context) error
	// IsMonitoringActive reports whether liveness polling is running.
	IsMonitoringActive(ctx context.Context) (bool, error)
}

// ScanParameters is everything a backend needs to run one scan.
type ScanParameters struct {
	Range                      iprange.Range `json:"range"`
	ServicePorts               []int         `json:"service_ports"`
	HiddenHostDiscoveryEnabled bool          `json:"hidden_host_discovery"`
	HiddenHostPorts            []int         `json:"hidden_host_ports"`
}

// Clone returns a deep copy.
func (p ScanParameters) Clone() ScanParameters {
	p.ServicePorts = slices.Clone(p.ServicePorts)
	p.HiddenHostPorts = slices.Clone(p.HiddenHostPorts)
	return p
}

// Validate checks the port lists. The range is valid by construction.
func (p ScanParameters) Validate() error {
	if len(p.ServicePorts) == 0 {
		return fmt.Errorf("no service ports to scan")
	}
	if err := validatePorts(p.ServicePorts); err != nil {
		return err
	}
	return validatePorts(p.HiddenHostPorts)
}

// ProbePorts returns the ports probed for each address: service ports plus
// hidden-host ports when enabled, without duplicates.
func (p ScanParameters) ProbePorts() []int {
	out := slices.Clone(p.ServicePorts)
	if p.HiddenHostDiscoveryEnabled {
		for _, port := range p.HiddenHostPorts {
			if !slices.Contains(out, port) {
				out = append(out, port)
			}
		}
	}
	return out
}

func validatePorts(ports []int) error {
	for _, port := range ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port %d out of range", port)
		}
	}
	return nil
}

// MonitorParameters is the input of StartMonitoring.
type MonitorParameters struct {
	Hosts                      []string `json:"hosts"`
	HiddenHostDiscoveryEnabled bool     `json:"hidden_host_discovery"`
	HiddenHostPorts            []int    `json:"hidden_host_ports"`
}

// EventType identifies a backend event.
type EventType string

const (
	EventHostFound    EventType = "host_found"
	EventScanComplete EventType = "scan_complete"
	EventScanError    EventType = "scan_error"
	EventHostStatus   EventType = "host_status"
)

// Event is a notification pushed by the backend. Which fields are set
// depends on Type.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Host      *hosts.Record `json:"host,omitempty"`
	Success   bool          `json:"success,omitempty"`
	Message   string        `json:"message,omitempty"`
	IPAddress string        `json:"ip_address,omitempty"`
	IsOnline  bool          `json:"is_online,omitempty"`
}

// HostFound builds a discovery event.
func HostFound(rec hosts.Record) Event {
	c := rec.Clone()
	return Event{Type: EventHostFound, Timestamp: time.Now(), Host: &c}
}

// ScanComplete builds the terminal event of a scan.
func ScanComplete(success bool) Event {
	return Event{Type: EventScanComplete, Timestamp: time.Now(), Success: success}
}

// ScanError builds an abort event.
func ScanError(message string) Event {
	return Event{Type: EventScanError, Timestamp: time.Now(), Message: message}
}

// HostStatusUpdate builds a liveness event.
func HostStatusUpdate(ip string, online bool) Event {
	return Event{Type: EventHostStatus, Timestamp: time.Now(), IPAddress: ip, IsOnline: online}
}

// String is used in logs.
func (e Event) String() string {
	switch e.Type {
	case EventHostFound:
		if e.Host != nil {
			return fmt.Sprintf("%s(%s)", e.Type, e.Host.IPAddress)
		}
	case EventScanComplete:
		return fmt.Sprintf("%s(success=%t)", e.Type, e.Success)
	case EventScanError:
		return fmt.Sprintf("%s(%q)", e.Type, e.Message)
	case EventHostStatus:
		return fmt.Sprintf("%s(%s online=%t)", e.Type, e.IPAddress, e.IsOnline)
	}
	return string(e.Type)
}

// Package hosts holds the authoritative set of discovered hosts for a
// session. Records are keyed by IPv4 ordinal and always read back in
// ascending address order, regardless of the order discovery events arrived.
package hosts

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/anstrom/netscope/internal/ipaddr"
)

// Liveness is the monitoring status of a host.
type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessOnline
	LivenessOffline
)

var livenessNames = map[Liveness]string{
	LivenessUnknown: "unknown",
	LivenessOnline:  "online",
	LivenessOffline: "offline",
}

func (l Liveness) String() string {
	if name, ok := livenessNames[l]; ok {
		return name
	}
	return fmt.Sprintf("liveness(%d)", int(l))
}

// LivenessFromBool maps a monitoring probe result to a status.
func LivenessFromBool(online bool) Liveness {
	if online {
		return LivenessOnline
	}
	return LivenessOffline
}

// MarshalText implements encoding.TextMarshaler.
func (l Liveness) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Liveness) UnmarshalText(text []byte) error {
	for k, v := range livenessNames {
		if v == string(text) {
			*l = k
			return nil
		}
	}
	return fmt.Errorf("unknown liveness %q", string(text))
}

// DeviceType is the coarse classification tag reported by the discovery backend.
type DeviceType string

const (
	DeviceUnknown        DeviceType = ""
	DevicePrinter        DeviceType = "printer"
	DeviceRouterFirewall DeviceType = "router_firewall"
	DeviceWindowsPC      DeviceType = "windows_pc"
	DeviceMacOSPC        DeviceType = "macos_pc"
	DeviceLinuxServer    DeviceType = "linux_server"
	DeviceLinuxPC        DeviceType = "linux_pc"
	DeviceAndroidMobile  DeviceType = "android_mobile"
	DeviceIOSMobile      DeviceType = "ios_mobile"
	DeviceGeneric        DeviceType = "generic_device"
)

// Record is one discovered host. IPAddress is its identity; every other
// field may be replaced by a later discovery event.
type Record struct {
	IPAddress  ipaddr.Address `json:"ip_address"`
	Hostname   string         `json:"hostname,omitempty"`
	MACAddress string         `json:"mac_address,omitempty"`
	OS         string         `json:"os,omitempty"`
	OpenPorts  []int          `json:"open_ports"`
	DeviceType DeviceType     `json:"device_type,omitempty"`
	Liveness   Liveness       `json:"liveness"`
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (r Record) Clone() Record {
	r.OpenPorts = slices.Clone(r.OpenPorts)
	if r.OpenPorts == nil {
		r.OpenPorts = []int{}
	}
	return r
}

// MarshalJSON keeps open_ports as an array even when empty.
func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	c := r.Clone()
	return json.Marshal(plain(c))
}

package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// SNMP system group OIDs.
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
)

// SystemInfo is the SNMP system group of one host.
type SystemInfo struct {
	Descr    string
	ObjectID string
	Name     string
}

// OS returns the first line of sysDescr, which is where agents put the
// platform and version.
func (s SystemInfo) OS() string {
	line, _, _ := strings.Cut(s.Descr, "\n")
	return strings.TrimSpace(line)
}

// SystemQuerier reads the SNMP system group of a host.
type SystemQuerier interface {
	QuerySystem(ctx context.Context, ip string) (SystemInfo, error)
}

// SNMPClient queries agents with SNMPv2c and a single community.
type SNMPClient struct {
	Community string
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

// NewSNMPClient builds a client from the probe configuration.
func NewSNMPClient(cfg Config) *SNMPClient {
	return &SNMPClient{
		Community: cfg.SNMPCommunity,
		Port:      cfg.SNMPPort,
		Timeout:   cfg.SNMPTimeout,
		Retries:   cfg.SNMPRetries,
	}
}

// QuerySystem implements SystemQuerier. A host without an agent times out
// and returns an error.
func (c *SNMPClient) QuerySystem(ctx context.Context, ip string) (SystemInfo, error) {
	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      c.Port,
		Community: c.Community,
		Version:   gosnmp.Version2c,
		Timeout:   c.Timeout,
		Retries:   c.Retries,
		MaxOids:   gosnmp.MaxOids,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return SystemInfo{}, fmt.Errorf("SNMP connect to %s failed: %w", ip, err)
	}
	defer func() { _ = client.Conn.Close() }()

	result, err := client.Get([]string{oidSysDescr, oidSysObjectID, oidSysName})
	if err != nil {
		return SystemInfo{}, fmt.Errorf("SNMP get from %s failed: %w", ip, err)
	}
	if result.Error != gosnmp.NoError {
		return SystemInfo{}, fmt.Errorf("SNMP error from %s: %s", ip, result.Error)
	}
	return systemInfoFromPDUs(result.Variables), nil
}

// systemInfoFromPDUs picks the system group values out of a response.
// Missing objects and unexpected types are skipped.
func systemInfoFromPDUs(vars []gosnmp.SnmpPDU) SystemInfo {
	var info SystemInfo
	for _, v := range vars {
		switch v.Name {
		case oidSysDescr:
			if b, ok := v.Value.([]byte); ok && v.Type == gosnmp.OctetString {
				info.Descr = string(b)
			}
		case oidSysObjectID:
			if s, ok := v.Value.(string); ok && v.Type == gosnmp.ObjectIdentifier {
				info.ObjectID = s
			}
		case oidSysName:
			if b, ok := v.Value.([]byte); ok && v.Type == gosnmp.OctetString {
				info.Name = strings.TrimSpace(string(b))
			}
		}
	}
	return info
}

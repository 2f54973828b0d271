package session

import (
	"fmt"
	"time"

	"github.com/anstrom/netscope/internal/errors"
)

// State is the session state. Every Controller holds exactly one.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateMonitoring
)

// States lists every state, in declaration order.
var States = []State{StateIdle, StateScanning, StateMonitoring}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateMonitoring:
		return "monitoring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range States {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(text))
}

// Scan outcomes reported to Metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeDegraded  = "degraded"
	OutcomeAborted   = "aborted"
	OutcomeRejected  = "rejected"
)

// Desync kinds reported to Metrics.
const (
	DesyncUnknownHost       = "unknown_host"
	DesyncInvalidAddress    = "invalid_address"
	DesyncStrayHost         = "stray_host"
	DesyncMonitorNoHosts    = "monitor_no_hosts"
	DesyncMonitorDuringScan = "monitor_during_scan"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-visible outcome of a session operation.
type Notice struct {
	Level     Level            `json:"level"`
	Code      errors.ErrorCode `json:"code,omitempty"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Notifier receives notices. Notify is called without any controller lock
// held and must not block for long.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify implements Notifier.
func (f NotifierFunc) Notify(n Notice) { f(n) }

// Notifiers fans a notice out to several notifiers in order.
type Notifiers []Notifier

// Notify implements Notifier.
func (ns Notifiers) Notify(n Notice) {
	for _, notifier := range ns {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// Metrics receives session counters. Implementations must be safe for
// concurrent use and must not block.
type Metrics interface {
	ScanFinished(outcome string)
	HostDiscovered()
	StoreSize(n int)
	StateChanged(state string)
	LivenessUpdate(online bool)
	Desync(kind string)
	CommandError(command string)
}

type nopMetrics struct{}

func (nopMetrics) ScanFinished(string) {}
func (nopMetrics) HostDiscovered() {}
func (nopMetrics) StoreSize(int) {}
func (nopMetrics) StateChanged(string) {}
func (nopMetrics) LivenessUpdate(bool) {}
func (nopMetrics) Desync(string) {}
func (nopMetrics) CommandError(string) {}

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

// Package session implements the discovery session controller: the state
// machine that drives a backend through scan and monitoring sessions and
// reconciles the events it pushes back into a host store.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/iprange"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/settings"
)

// DefaultCommandTimeout bounds each awaited backend command.
const DefaultCommandTimeout = 30 * time.Second

// Config wires a Controller to its collaborators. Backend and Events are
// required; everything else has a default.
type Config struct {
	Backend        backend.Backend
	Events         backend.Events
	Store          *hosts.Store
	Settings       settings.Provider
	History        history.Store
	Notifier       Notifier
	Metrics        Metrics
	Logger         *logging.Logger
	CommandTimeout time.Duration
}

// Status summarizes a controller for presentation.
type Status struct {
	State      State          `json:"state"`
	HostCount  int            `json:"host_count"`
	Monitoring bool           `json:"monitoring"`
	Busy       bool           `json:"busy"`
	LastRange  *iprange.Range `json:"last_range,omitempty"`
}

// Controller is the discovery session state machine.
//
// Two locks are involved. mu guards the state and is held by every event
// handler for the duration of the event. cmd is the in-flight command guard;
// it is only ever acquired with TryLock, and backend commands are awaited
// while holding cmd but never mu. inFlight mirrors cmd for readers.
type Controller struct {
	backend  backend.Backend
	events   backend.Events
	store    *hosts.Store
	settings settings.Provider
	history  history.Store
	notifier Notifier
	metrics  Metrics
	logger   *logging.Logger
	timeout  time.Duration

	cmd      sync.Mutex
	inFlight atomic.Bool // set while a command holds cmd

	mu        sync.Mutex
	state     State
	lastRange *iprange.Range
	pending   bool            // StartMonitoring in flight
	buffered  []backend.Event // liveness events received while pending
	sub       *backend.Subscription
}

// New creates a controller in the Idle state. Call Attach to start
// receiving backend events.
func New(cfg Config) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, errors.ErrConfigMissing("backend")
	}
	if cfg.Events == nil {
		return nil, errors.ErrConfigMissing("events")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	store := cfg.Store
	if store == nil {
		store = hosts.NewStore(logger)
	}
	provider := cfg.Settings
	if provider == nil {
		provider = settings.NewStatic(settings.Raw{})
	}
	hist := cfg.History
	if hist == nil {
		hist = history.NewMemoryStore()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	c := &Controller{
		backend:  cfg.Backend,
		events:   cfg.Events,
		store:    store,
		settings: provider,
		history:  hist,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.WithComponent("session"),
		timeout:  timeout,
		state:    StateIdle,
	}
	metrics.StateChanged(StateIdle.String())
	metrics.StoreSize(store.Len())
	return c, nil
}

// Attach subscribes the controller to backend events. Calling it again is a
// no-op.
func (c *Controller) Attach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil {
		c.sub = c.events.Subscribe(c.HandleEvent)
	}
}

// Detach stops receiving backend events.
func (c *Controller) Detach() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	sub.Unsubscribe()
}

// acquire takes the command guard without waiting and marks a command in
// flight. Readers check inFlight and never touch cmd.
func (c *Controller) acquire() bool {
	if !c.cmd.TryLock() {
		return false
	}
	c.inFlight.Store(true)
	return true
}

func (c *Controller) release() {
	c.inFlight.Store(false)
	c.cmd.Unlock()
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:      c.state,
		HostCount:  c.store.Len(),
		Monitoring: c.state == StateMonitoring,
		Busy:       c.inFlight.Load(),
	}
	if c.lastRange != nil {
		r := *c.lastRange
		st.LastRange = &r
	}
	return st
}

// Hosts returns the hosts matching term in ordinal order. An empty term
// matches everything.
func (c *Controller) Hosts(term string) []hosts.Record {
	return c.store.Filter(term)
}

// History returns the most recent scan ranges, newest first.
func (c *Controller) History(ctx context.Context) ([]history.Entry, error) {
	return c.history.Recent(ctx)
}

// RequestScan validates the range and starts a scan, stopping monitoring
// first when it is active. The normalized range is returned even when the
// request fails after validation.
func (c *Controller) RequestScan(ctx context.Context, startRaw, endRaw string) (iprange.Range, error) {
	r, err := iprange.Normalize(startRaw, endRaw)
	if err != nil {
		return iprange.Range{}, err
	}

	if !c.acquire() {
		return r, errors.ErrBusy(c.State().String())
	}
	defer c.release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch st := c.State(); st {
	case StateScanning:
		return r, errors.ErrInvalidState("A scan is already in progress", st.String())
	case StateMonitoring:
		if err := c.stopMonitoringForScan(ctx); err != nil {
			return r, err
		}
	}

	c.mu.Lock()
	c.store.Reset()
	c.lastRange = &r
	c.setStateLocked(StateScanning)
	c.metrics.StoreSize(0)
	c.mu.Unlock()

	snap := c.settings.Snapshot()
	params := backend.ScanParameters{
		Range:                      r,
		ServicePorts:               snap.ServicePorts,
		HiddenHostDiscoveryEnabled: snap.HiddenHostDiscoveryEnabled,
		HiddenHostPorts:            snap.HiddenHostPorts,
	}

	c.logger.InfoScan("Starting scan", r.String(),
		"service_ports", settings.FormatPortList(params.ServicePorts),
		"hidden_host_discovery", params.HiddenHostDiscoveryEnabled)

	if err := c.backend.StartScan(ctx, params); err != nil {
		c.mu.Lock()
		if c.state == StateScanning {
			c.setStateLocked(StateIdle)
		}
		c.mu.Unlock()
		c.metrics.ScanFinished(OutcomeRejected)
		c.metrics.CommandError("StartScan")
		c.logger.ErrorCommand("Backend rejected scan", "StartScan", err, "range", r.String())
		return r, errors.ErrCommandRejected("StartScan", err)
	}

	entry := history.Entry{Range: r, Timestamp: time.Now().UTC()}
	if err := c.history.Append(ctx, entry); err != nil {
		c.logger.Error("Failed to record scan history", "range", r.String(), "error", err)
	}
	return r, nil
}

// RescanFromHistory starts a scan of a recorded range. The range is
// revalidated as if it had been typed in.
func (c *Controller) RescanFromHistory(ctx context.Context, entry history.Entry) (iprange.Range, error) {
	return c.RequestScan(ctx, entry.Range.Start.String(), entry.Range.End.String())
}

// stopMonitoringForScan stops monitoring ahead of a scan. A rejected stop is
// tolerated only if the backend then confirms monitoring is inactive. Called
// with cmd held.
func (c *Controller) stopMonitoringForScan(ctx context.Context) error {
	if err := c.backend.StopMonitoring(ctx); err != nil {
		c.metrics.CommandError("StopMonitoring")
		c.logger.ErrorCommand("Backend rejected stop before scan", "StopMonitoring", err)
		c.notify(LevelWarning, errors.CodeCommandRejected,
			fmt.Sprintf("Could not stop monitoring before scanning: %v", err))

		active, qerr := c.backend.IsMonitoringActive(ctx)
		if qerr != nil {
			c.metrics.CommandError("IsMonitoringActive")
			c.logger.ErrorCommand("Monitoring state query failed", "IsMonitoringActive", qerr)
			return errors.ErrCommandRejected("StopMonitoring", err)
		}
		if active {
			return errors.ErrCommandRejected("StopMonitoring", err)
		}
		c.logger.Info("Backend reports monitoring inactive, proceeding with scan")
	}

	c.mu.Lock()
	c.store.ResetLiveness()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()
	return nil
}

// RequestMonitor starts liveness monitoring of every host in the store.
func (c *Controller) RequestMonitor(ctx context.Context) error {
	if !c.acquire() {
		return errors.ErrBusy(c.State().String())
	}
	defer c.release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.Lock()
	switch c.state {
	case StateScanning:
		c.mu.Unlock()
		return errors.ErrInvalidState("Cannot monitor while a scan is in progress", StateScanning.String())
	case StateMonitoring:
		c.mu.Unlock()
		return errors.ErrInvalidState("Monitoring is already active", StateMonitoring.String())
	}
	ips := c.store.IPs()
	if len(ips) == 0 {
		c.mu.Unlock()
		return errors.ErrNoHosts()
	}
	c.pending = true
	c.buffered = nil
	c.mu.Unlock()

	snap := c.settings.Snapshot()
	params := backend.MonitorParameters{
		Hosts:                      ips,
		HiddenHostDiscoveryEnabled: snap.HiddenHostDiscoveryEnabled,
		HiddenHostPorts:            snap.HiddenHostPorts,
	}
	err := c.backend.StartMonitoring(ctx, params)

	var notices []Notice
	c.mu.Lock()
	c.pending = false
	buffered := c.buffered
	c.buffered = nil
	if err == nil {
		c.setStateLocked(StateMonitoring)
		c.store.ApplyOptimisticOnline()
		for _, evt := range buffered {
			notices = append(notices, c.applyLivenessLocked(evt)...)
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.CommandError("StartMonitoring")
		c.logger.ErrorCommand("Backend rejected monitoring", "StartMonitoring", err, "hosts", len(ips))
		return errors.ErrCommandRejected("StartMonitoring", err)
	}

	c.logger.InfoMonitor("Monitoring started", len(ips), "replayed", len(buffered))
	c.emit(notices)
	return nil
}

// RequestStopMonitor stops liveness monitoring. On rejection the controller
// stays in Monitoring.
func (c *Controller) RequestStopMonitor(ctx context.Context) error {
	if !c.acquire() {
		return errors.ErrBusy(c.State().String())
	}
	defer c.release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if st := c.State(); st != StateMonitoring {
		return errors.ErrInvalidState("Monitoring is not active", st.String())
	}

	if err := c.backend.StopMonitoring(ctx); err != nil {
		c.metrics.CommandError("StopMonitoring")
		c.logger.ErrorCommand("Backend rejected stop", "StopMonitoring", err)
		return errors.ErrCommandRejected("StopMonitoring", err)
	}

	c.mu.Lock()
	c.store.ResetLiveness()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.logger.InfoMonitor("Monitoring stopped", c.store.Len())
	return nil
}

// ApplyBackendMonitoring aligns the local state with the backend's
// confirmed monitoring state. It never issues a command. A backend that is
// monitoring while the store is empty is adopted anyway so the next scan
// stops it; the mismatch is reported as a desync. While a command is in
// flight the sync is skipped and the command's outcome stands.
func (c *Controller) ApplyBackendMonitoring(active bool) error {
	var notices []Notice
	c.mu.Lock()
	if c.inFlight.Load() {
		c.mu.Unlock()
		c.logger.Debug("Skipping monitoring sync while a command is in flight", "active", active)
		return nil
	}
	switch {
	case c.state == StateScanning:
		if active {
			c.logger.WarnDesync("Backend monitoring while a scan is in progress", "")
			c.metrics.Desync(DesyncMonitorDuringScan)
		}
	case active && c.state != StateMonitoring:
		c.setStateLocked(StateMonitoring)
		if c.store.Len() == 0 {
			c.logger.WarnDesync("Backend monitoring with no known hosts", "")
			c.metrics.Desync(DesyncMonitorNoHosts)
			notices = append(notices, newNotice(LevelWarning, errors.CodeDesync,
				"Backend reports monitoring active but no hosts are known; the next scan will stop it"))
		} else {
			c.store.ApplyOptimisticOnline()
		}
	case !active && c.state == StateMonitoring:
		c.store.ResetLiveness()
		c.setStateLocked(StateIdle)
	}
	c.mu.Unlock()

	c.emit(notices)
	return nil
}

// HandleEvent applies one backend event. Events are processed serially under
// the state lock and never wait on an in-flight command.
func (c *Controller) HandleEvent(evt backend.Event) {
	var notices []Notice

	c.mu.Lock()
	switch evt.Type {
	case backend.EventHostFound:
		c.onHostFoundLocked(evt)
	case backend.EventScanComplete:
		notices = c.onScanCompleteLocked(evt)
	case backend.EventScanError:
		notices = c.onScanErrorLocked(evt)
	case backend.EventHostStatus:
		if c.pending {
			c.buffered = append(c.buffered, evt)
			break
		}
		notices = c.applyLivenessLocked(evt)
	default:
		c.logger.Warn("Ignoring unknown backend event", "type", evt.Type)
	}
	c.mu.Unlock()

	c.emit(notices)
}

func (c *Controller) onHostFoundLocked(evt backend.Event) {
	if evt.Host == nil {
		c.logger.Warn("Ignoring host event without a record")
		return
	}
	if c.state != StateScanning {
		c.logger.WarnDesync("Host found outside a scan", evt.Host.IPAddress.String(), "state", c.state.String())
		c.metrics.Desync(DesyncStrayHost)
		return
	}

	if c.store.ApplyDiscovered(*evt.Host) {
		c.metrics.HostDiscovered()
		c.metrics.StoreSize(c.store.Len())
	}
}

func (c *Controller) onScanCompleteLocked(evt backend.Event) []Notice {
	if c.state != StateScanning {
		c.logger.Debug("Ignoring scan completion outside a scan", "state", c.state.String())
		return nil
	}
	c.setStateLocked(StateIdle)

	count := c.store.Len()
	rangeText := c.lastRangeText()
	if evt.Success {
		c.metrics.ScanFinished(OutcomeCompleted)
		c.logger.InfoScan("Scan complete", rangeText, "hosts", count)
		return []Notice{newNotice(LevelInfo, "", fmt.Sprintf("Scan complete: %d hosts found", count))}
	}

	c.metrics.ScanFinished(OutcomeDegraded)
	c.logger.Warn("Scan finished with errors", "range", rangeText, "hosts", count)
	return []Notice{newNotice(LevelWarning, errors.CodeScanDegraded,
		fmt.Sprintf("Scan finished with errors: %d hosts found", count))}
}

func (c *Controller) onScanErrorLocked(evt backend.Event) []Notice {
	if c.state != StateScanning {
		c.logger.Debug("Ignoring scan error outside a scan", "state", c.state.String(), "message", evt.Message)
		return nil
	}
	c.setStateLocked(StateIdle)

	c.metrics.ScanFinished(OutcomeAborted)
	c.logger.ErrorScan("Scan aborted", c.lastRangeText(), stderrors.New(evt.Message), "hosts", c.store.Len())
	return []Notice{newNotice(LevelError, errors.CodeScanAborted, "Scan aborted: "+evt.Message)}
}

func (c *Controller) applyLivenessLocked(evt backend.Event) []Notice {
	if c.state != StateMonitoring {
		c.logger.Debug("Ignoring liveness update outside monitoring", "ip", evt.IPAddress, "state", c.state.String())
		return nil
	}

	ip, err := ipaddr.Parse(evt.IPAddress)
	if err != nil {
		c.logger.WarnDesync("Liveness update with invalid address", evt.IPAddress, "error", err)
		c.metrics.Desync(DesyncInvalidAddress)
		return []Notice{newNotice(LevelWarning, errors.CodeDesync,
			fmt.Sprintf("Status update for invalid address %q ignored", evt.IPAddress))}
	}

	if !c.store.ApplyLiveness(ip, evt.IsOnline) {
		c.metrics.Desync(DesyncUnknownHost)
		return []Notice{newNotice(LevelWarning, errors.CodeDesync,
			fmt.Sprintf("Status update for unknown host %s ignored", ip))}
	}
	c.metrics.LivenessUpdate(evt.IsOnline)
	return nil
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("State transition", "from", c.state.String(), "to", s.String())
	c.state = s
	c.metrics.StateChanged(s.String())
}

func (c *Controller) lastRangeText() string {
	if c.lastRange == nil {
		return ""
	}
	return c.lastRange.String()
}

func (c *Controller) notify(level Level, code errors.ErrorCode, message string) {
	c.notifier.Notify(newNotice(level, code, message))
}

func (c *Controller) emit(notices []Notice) {
	for _, n := range notices {
		c.notifier.Notify(n)
	}
}

func newNotice(level Level, code errors.ErrorCode, message string) Notice {
	return Notice{Level: level, Code: code, Message: message, Timestamp: time.Now().UTC()}
}

package probe

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/workers"
)

// Errors returned by Backend commands.
var (
	ErrClosed        = errors.New("probe backend is closed")
	ErrScanRunning   = errors.New("a scan is already running")
	ErrMonitorActive = errors.New("monitoring is active")
)

// Metrics receives probe measurements.
type Metrics interface {
	RecordSweepDuration(d time.Duration)
	LivenessChecked(online bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordSweepDuration(time.Duration) {}
func (nopMetrics) LivenessChecked(bool) {}

// Option customizes a Backend.
type Option func(*Backend)

// WithEngine replaces the discovery engine chosen from Config.Engine.
func WithEngine(e Engine) Option {
	return func(b *Backend) { b.engine = e }
}

// WithResolver sets the hostname resolver. nil disables resolution.
func WithResolver(r Resolver) Option {
	return func(b *Backend) {
		b.resolver = r
		b.resolverSet = true
	}
}

// WithMACLookup sets the MAC lookup. nil disables it.
func WithMACLookup(m MACLookup) Option {
	return func(b *Backend) {
		b.macs = m
		b.macsSet = true
	}
}

// WithSystemQuerier sets the SNMP system group source. nil disables it.
func WithSystemQuerier(q SystemQuerier) Option {
	return func(b *Backend) {
		b.snmp = q
		b.snmpSet = true
	}
}

// WithDialer sets the dialer used for connect probes.
func WithDialer(d Dialer) Option {
	return func(b *Backend) { b.prober = NewProber(d) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(b *Backend) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithObserver reports worker pool jobs to o.
func WithObserver(o workers.Observer) Option {
	return func(b *Backend) { b.observer = o }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Backend implements backend.Backend by probing the network directly.
// Events are published on the embedded Bus.
type Backend struct {
	*backend.Bus

	cfg         Config
	engine      Engine
	prober      *Prober
	resolver    Resolver
	resolverSet bool
	macs        MACLookup
	macsSet     bool
	snmp        SystemQuerier
	snmpSet     bool
	metrics     Metrics
	observer    workers.Observer
	logger      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	scanning bool
	monitor  *monitorLoop
}

var _ backend.Backend = (*Backend)(nil)

// New builds a probe backend.
func New(cfg Config, opts ...Option) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{
		Bus:     backend.NewBus(),
		cfg:     cfg,
		metrics: nopMetrics{},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("probe")

	if b.prober == nil {
		b.prober = NewProber(nil)
	}
	if !b.resolverSet && cfg.ResolveHostnames {
		b.resolver = NewResolver(cfg)
	}
	if !b.macsSet && cfg.LookupMAC {
		b.macs = ARPTable{Path: cfg.ARPTablePath}
	}
	if !b.snmpSet && cfg.SNMPEnabled {
		b.snmp = NewSNMPClient(cfg)
	}
	if b.engine == nil {
		switch cfg.Engine {
		case EngineNmap:
			b.engine = NewNmapEngine(cfg, b.logger)
		default:
			b.engine = NewConnectEngine(cfg, b.prober, b.observer, b.logger)
		}
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b, nil
}

// StartScan implements backend.Backend. The scan runs in the background;
// its results arrive as events. Invalid parameters are reported the same
// way, as a ScanError followed by ScanComplete(false).
func (b *Backend) StartScan(_ context.Context, params backend.ScanParameters) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.closed:
		return ErrClosed
	case b.scanning:
		return ErrScanRunning
	case b.monitor != nil:
		return ErrMonitorActive
	}

	b.scanning = true
	params = params.Clone()
	b.wg.Add(1)

	if err := params.Validate(); err != nil {
		b.logger.Warn("Rejecting scan parameters", "error", err)
		go func() {
			defer b.wg.Done()
			b.finishScan(err)
		}()
		return nil
	}

	go func() {
		defer b.wg.Done()
		b.runScan(params)
	}()
	return nil
}

func (b *Backend) runScan(params backend.ScanParameters) {
	rangeText := params.Range.String()
	b.logger.InfoScan("Sweep started", rangeText, "size", params.Range.Size(), "ports", len(params.ProbePorts()))

	start := time.Now()
	found := 0
	var countMu sync.Mutex
	err := b.engine.Discover(b.ctx, params, func(rec hosts.Record) {
		rec = b.enrich(b.ctx, rec)
		countMu.Lock()
		found++
		countMu.Unlock()
		b.Publish(backend.HostFound(rec))
	})
	elapsed := time.Since(start)
	b.metrics.RecordSweepDuration(elapsed)

	if err != nil {
		b.logger.ErrorScan("Sweep failed", rangeText, err, "duration", elapsed)
	} else {
		b.logger.InfoScan("Sweep finished", rangeText, "hosts", found, "duration", elapsed)
	}
	b.finishScan(err)
}

// finishScan clears the scanning flag before the terminal events so a
// listener reacting to completion can immediately issue the next command.
func (b *Backend) finishScan(err error) {
	b.mu.Lock()
	b.scanning = false
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return
	}
	if err != nil {
		b.Publish(backend.ScanError(err.Error()))
		b.Publish(backend.ScanComplete(false))
		return
	}
	b.Publish(backend.ScanComplete(true))
}

// enrich fills the hostname, MAC, OS and device type left empty by the
// engine. SNMP runs after the PTR lookup and only fills what is still empty.
func (b *Backend) enrich(ctx context.Context, rec hosts.Record) hosts.Record {
	ip := rec.IPAddress.String()

	if rec.Hostname == "" && b.resolver != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, b.cfg.DNSTimeout)
		name, err := b.resolver.LookupAddr(lookupCtx, ip)
		cancel()
		if err != nil {
			b.logger.Debug("Reverse lookup failed", "ip", ip, "error", err)
		}
		rec.Hostname = name
	}
	if rec.MACAddress == "" && b.macs != nil {
		mac, err := b.macs.LookupMAC(ctx, ip)
		if err != nil {
			b.logger.Debug("MAC lookup failed", "ip", ip, "error", err)
		}
		rec.MACAddress = mac
	}
	if b.snmp != nil && (rec.OS == "" || rec.Hostname == "") {
		info, err := b.snmp.QuerySystem(ctx, ip)
		if err != nil {
			b.logger.Debug("SNMP query failed", "ip", ip, "error", err)
		}
		if rec.OS == "" {
			rec.OS = info.OS()
		}
		if rec.Hostname == "" {
			rec.Hostname = info.Name
		}
	}
	if rec.DeviceType == hosts.DeviceUnknown {
		rec.DeviceType = Classify(ip, rec.Hostname, rec.OpenPorts)
	}
	return rec
}

// StartMonitoring implements backend.Backend. An active session is
// replaced. An empty host list leaves monitoring inactive.
func (b *Backend) StartMonitoring(_ context.Context, params backend.MonitorParameters) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.scanning {
		return ErrScanRunning
	}
	if b.monitor != nil {
		b.logger.InfoMonitor("Restarting monitoring", len(params.Hosts))
		b.monitor.stop()
		b.monitor = nil
	}
	if len(params.Hosts) == 0 {
		b.logger.Info("No hosts to monitor")
		return nil
	}

	ports := b.livenessPorts(params)
	check := func(ctx context.Context, ip string) bool {
		online := b.prober.Alive(ctx, ip, ports, b.cfg.LivenessTimeout)
		b.metrics.LivenessChecked(online)
		return online
	}

	loop, err := startMonitorLoop(b.ctx, params.Hosts, b.cfg.MonitorInterval, b.cfg.Concurrency,
		check, b.Publish, b.observer, b.logger)
	if err != nil {
		b.logger.ErrorMonitor("Failed to start monitoring", err)
		return err
	}
	b.monitor = loop
	b.logger.InfoMonitor("Monitoring started", len(params.Hosts), "interval", b.cfg.MonitorInterval)
	return nil
}

// livenessPorts returns the configured liveness ports plus the hidden-host
// ports when that discovery is enabled.
func (b *Backend) livenessPorts(params backend.MonitorParameters) []int {
	ports := slices.Clone(b.cfg.LivenessPorts)
	if params.HiddenHostDiscoveryEnabled {
		for _, p := range params.HiddenHostPorts {
			if !slices.Contains(ports, p) {
				ports = append(ports, p)
			}
		}
	}
	return ports
}

// StopMonitoring implements backend.Backend.
func (b *Backend) StopMonitoring(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.monitor == nil {
		return nil
	}
	b.monitor.stop()
	b.monitor = nil
	b.logger.Info("Monitoring stopped")
	return nil
}

// IsMonitoringActive implements backend.Backend.
func (b *Backend) IsMonitoringActive(_ context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.monitor != nil, nil
}

// Close stops monitoring, cancels a running scan and waits for both.
// Nothing is published after Close returns.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	loop := b.monitor
	b.monitor = nil
	b.mu.Unlock()

	if loop != nil {
		loop.stop()
	}
	b.wg.Wait()
	return nil
}

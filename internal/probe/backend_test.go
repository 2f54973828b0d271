package probe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
)

type fakeEngine struct {
	records []hosts.Record
	err     error
	block   chan struct{}
}

func (e *fakeEngine) Discover(ctx context.Context, _ backend.ScanParameters, emit func(hosts.Record)) error {
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, r := range e.records {
		emit(r)
	}
	return e.err
}

type mapResolver map[string]string

func (m mapResolver) LookupAddr(_ context.Context, ip string) (string, error) {
	return m[ip], nil
}

type mapMACs map[string]string

func (m mapMACs) LookupMAC(_ context.Context, ip string) (string, error) {
	if mac, ok := m[ip]; ok {
		return mac, nil
	}
	return "", errors.New("not in table")
}

type probeMetrics struct {
	mu      sync.Mutex
	sweeps  int
	checked []bool
}

func (m *probeMetrics) RecordSweepDuration(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweeps++
}

func (m *probeMetrics) LivenessChecked(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checked = append(m.checked, online)
}

// collect subscribes to b and returns a channel of its events.
func collect(t *testing.T, b *Backend) <-chan backend.Event {
	t.Helper()
	ch := make(chan backend.Event, 64)
	sub := b.Subscribe(func(evt backend.Event) { ch <- evt })
	t.Cleanup(sub.Unsubscribe)
	return ch
}

func next(t *testing.T, ch <-chan backend.Event) backend.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return backend.Event{}
	}
}

func scanParams(t *testing.T) backend.ScanParameters {
	return backend.ScanParameters{
		Range:        mustRange(t, "192.168.1.1", "192.168.1.10"),
		ServicePorts: []int{22, 80},
	}
}

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	b, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "raw"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestBackendScanEnrichesAndCompletes(t *testing.T) {
	engine := &fakeEngine{records: []hosts.Record{
		{IPAddress: ipaddr.MustParse("192.168.1.5"), OpenPorts: []int{9100}},
		{IPAddress: ipaddr.MustParse("192.168.1.7"), OpenPorts: []int{22}, Hostname: "linux-nas", DeviceType: hosts.DeviceLinuxServer},
	}}
	metrics := &probeMetrics{}
	b := newTestBackend(t,
		WithEngine(engine),
		WithResolver(mapResolver{"192.168.1.5": "office-printer", "192.168.1.7": "ignored"}),
		WithMACLookup(mapMACs{"192.168.1.5": "AA:BB:CC:DD:EE:01"}),
		WithMetrics(metrics),
	)
	events := collect(t, b)

	require.NoError(t, b.StartScan(context.Background(), scanParams(t)))

	first := next(t, events)
	require.Equal(t, backend.EventHostFound, first.Type)
	assert.Equal(t, "office-printer", first.Host.Hostname)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", first.Host.MACAddress)
	assert.Equal(t, hosts.DevicePrinter, first.Host.DeviceType)

	second := next(t, events)
	require.Equal(t, backend.EventHostFound, second.Type)
	assert.Equal(t, "linux-nas", second.Host.Hostname)
	assert.Empty(t, second.Host.MACAddress)
	assert.Equal(t, hosts.DeviceLinuxServer, second.Host.DeviceType)

	done := next(t, events)
	assert.Equal(t, backend.EventScanComplete, done.Type)
	assert.True(t, done.Success)

	metrics.mu.Lock()
	assert.Equal(t, 1, metrics.sweeps)
	metrics.mu.Unlock()
}

func TestBackendScanFailures(t *testing.T) {
	t.Run("invalid parameters", func(t *testing.T) {
		b := newTestBackend(t, WithEngine(&fakeEngine{}))
		events := collect(t, b)

		params := scanParams(t)
		params.ServicePorts = nil
		require.NoError(t, b.StartScan(context.Background(), params))

		errEvt := next(t, events)
		assert.Equal(t, backend.EventScanError, errEvt.Type)
		assert.Contains(t, errEvt.Message, "service ports")
		done := next(t, events)
		assert.Equal(t, backend.EventScanComplete, done.Type)
		assert.False(t, done.Success)
	})

	t.Run("engine error", func(t *testing.T) {
		b := newTestBackend(t, WithEngine(&fakeEngine{err: errors.New("nmap not found")}))
		events := collect(t, b)

		require.NoError(t, b.StartScan(context.Background(), scanParams(t)))
		assert.Equal(t, "nmap not found", next(t, events).Message)
		assert.False(t, next(t, events).Success)
	})
}

func TestBackendRejectsOverlappingCommands(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	b := newTestBackend(t, WithEngine(engine), WithDialer(newFakeDialer()))
	events := collect(t, b)
	ctx := context.Background()

	require.NoError(t, b.StartScan(ctx, scanParams(t)))
	assert.ErrorIs(t, b.StartScan(ctx, scanParams(t)), ErrScanRunning)
	assert.ErrorIs(t, b.StartMonitoring(ctx, backend.MonitorParameters{Hosts: []string{"192.168.1.5"}}), ErrScanRunning)

	close(engine.block)
	assert.True(t, next(t, events).Success)

	require.NoError(t, b.StartMonitoring(ctx, backend.MonitorParameters{Hosts: []string{"192.168.1.5"}}))
	assert.ErrorIs(t, b.StartScan(ctx, scanParams(t)), ErrMonitorActive)
}

func TestBackendMonitoringLifecycle(t *testing.T) {
	dialer := newFakeDialer()
	dialer.setOpen("192.168.1.5:80", true)
	dialer.setOpen("192.168.1.9:7", true)
	metrics := &probeMetrics{}
	b := newTestBackend(t, WithEngine(&fakeEngine{}), WithDialer(dialer), WithMetrics(metrics))
	events := collect(t, b)
	ctx := context.Background()

	require.NoError(t, b.StartMonitoring(ctx, backend.MonitorParameters{}))
	active, err := b.IsMonitoringActive(ctx)
	require.NoError(t, err)
	assert.False(t, active, "no hosts leaves monitoring inactive")

	params := backend.MonitorParameters{
		Hosts:                      []string{"192.168.1.5", "192.168.1.6", "192.168.1.9"},
		HiddenHostDiscoveryEnabled: true,
		HiddenHostPorts:            []int{7},
	}
	require.NoError(t, b.StartMonitoring(ctx, params))
	active, _ = b.IsMonitoringActive(ctx)
	assert.True(t, active)

	evt := next(t, events)
	assert.Equal(t, backend.EventHostStatus, evt.Type)
	assert.Equal(t, "192.168.1.6", evt.IPAddress)
	assert.False(t, evt.IsOnline)

	// Restarting replaces the loop and resets statuses to online.
	require.NoError(t, b.StartMonitoring(ctx, params))
	assert.Equal(t, "192.168.1.6", next(t, events).IPAddress)

	require.NoError(t, b.StopMonitoring(ctx))
	active, _ = b.IsMonitoringActive(ctx)
	assert.False(t, active)
	require.NoError(t, b.StopMonitoring(ctx), "stopping an idle backend succeeds")

	metrics.mu.Lock()
	assert.GreaterOrEqual(t, len(metrics.checked), 6)
	metrics.mu.Unlock()
}

func TestBackendClose(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	b, err := New(DefaultConfig(), WithEngine(engine))
	require.NoError(t, err)
	events := collect(t, b)

	require.NoError(t, b.StartScan(context.Background(), scanParams(t)))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.StartScan(context.Background(), scanParams(t)), ErrClosed)
	assert.ErrorIs(t, b.StartMonitoring(context.Background(), backend.MonitorParameters{Hosts: []string{"10.0.0.1"}}), ErrClosed)
	assert.Empty(t, events, "nothing is published after close")
}

func TestLivenessPorts(t *testing.T) {
	b := newTestBackend(t, WithEngine(&fakeEngine{}))
	assert.Equal(t, []int{80, 443, 22, 8080}, b.livenessPorts(backend.MonitorParameters{HiddenHostPorts: []int{7}}))
	assert.Equal(t, []int{80, 443, 22, 8080, 7},
		b.livenessPorts(backend.MonitorParameters{HiddenHostDiscoveryEnabled: true, HiddenHostPorts: []int{7, 22}}))
}

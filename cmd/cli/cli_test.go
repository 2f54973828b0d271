package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/daemon"
	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/iprange"
	"github.com/anstrom/netscope/internal/logging"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// scriptedBackend answers every scan with a fixed set of hosts and every
// monitoring start with one offline update.
type scriptedBackend struct {
	*backend.Bus

	found []hosts.Record

	mu      sync.Mutex
	scans   []backend.ScanParameters
	active  bool
	stopped int
	closed  bool
}

func newScriptedBackend(ips ...string) *scriptedBackend {
	b := &scriptedBackend{Bus: backend.NewBus()}
	for _, ip := range ips {
		b.found = append(b.found, hosts.Record{IPAddress: ipaddr.MustParse(ip), OpenPorts: []int{22}})
	}
	return b
}

func (b *scriptedBackend) StartScan(_ context.Context, params backend.ScanParameters) error {
	b.mu.Lock()
	b.scans = append(b.scans, params.Clone())
	b.mu.Unlock()

	go func() {
		for _, rec := range b.found {
			b.Publish(backend.HostFound(rec))
		}
		b.Publish(backend.ScanComplete(true))
	}()
	return nil
}

func (b *scriptedBackend) StartMonitoring(_ context.Context, params backend.MonitorParameters) error {
	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	if len(params.Hosts) > 0 {
		go b.Publish(backend.HostStatusUpdate(params.Hosts[0], false))
	}
	return nil
}

func (b *scriptedBackend) StopMonitoring(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = false
	b.stopped++
	return nil
}

func (b *scriptedBackend) IsMonitoringActive(context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, nil
}

func (b *scriptedBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *scriptedBackend) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *scriptedBackend) lastScan() backend.ScanParameters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scans[len(b.scans)-1]
}

func useBackend(t *testing.T, b daemon.Backend) {
	t.Helper()
	orig := newBackend
	newBackend = func(*config.Config, *logging.Logger) (daemon.Backend, error) { return b, nil }
	t.Cleanup(func() {
		newBackend = orig
		viper.Reset()
	})
}

func TestRangeArgs(t *testing.T) {
	start, end := rangeArgs([]string{"10.0.0.1"})
	assert.Equal(t, "10.0.0.1", start)
	assert.Empty(t, end)

	start, end = rangeArgs([]string{"10.0.0.1", "10.0.0.9"})
	assert.Equal(t, "10.0.0.1", start)
	assert.Equal(t, "10.0.0.9", end)
}

func TestNormalizeCommand(t *testing.T) {
	t.Run("start only", func(t *testing.T) {
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, runNormalize(cmd, []string{"10.0.0.1"}))
		assert.Contains(t, out.String(), "Suggested end: 10.0.0.255")
		assert.Contains(t, out.String(), "Range:         10.0.0.1 - 10.0.0.255")
		assert.Contains(t, out.String(), "Addresses:     255")
		assert.Contains(t, out.String(), "10.0.0.128/25")
	})

	t.Run("matching prefix gives no suggestion", func(t *testing.T) {
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)

		require.NoError(t, runNormalize(cmd, []string{"10.0.0.1", "10.0.0.50"}))
		assert.NotContains(t, out.String(), "Suggested end")
		assert.Contains(t, out.String(), "Addresses:     50")
	})

	t.Run("inverted range", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetOut(&bytes.Buffer{})
		assert.Error(t, runNormalize(cmd, []string{"192.168.1.20", "192.168.1.10"}))
	})
}

func TestDisplayHostsTable(t *testing.T) {
	var out bytes.Buffer
	displayHostsTable(&out, []hosts.Record{
		{
			IPAddress:  ipaddr.MustParse("10.0.0.7"),
			Hostname:   "printer",
			OpenPorts:  []int{80, 631},
			DeviceType: hosts.DevicePrinter,
			Liveness:   hosts.LivenessOnline,
		},
		{IPAddress: ipaddr.MustParse("10.0.0.9")},
	})

	text := out.String()
	assert.Contains(t, text, "10.0.0.7")
	assert.Contains(t, text, "printer")
	assert.Contains(t, text, "80,631")
	assert.Contains(t, text, "online")
	assert.Contains(t, text, "10.0.0.9")
	assert.Contains(t, text, "unknown")
}

func TestDisplayHistoryTable(t *testing.T) {
	rng, err := iprange.New(ipaddr.MustParse("192.168.1.1"), ipaddr.MustParse("192.168.1.255"))
	require.NoError(t, err)

	var out bytes.Buffer
	displayHistoryTable(&out, []history.Entry{{Range: rng, Timestamp: time.Now()}})
	assert.Contains(t, out.String(), "192.168.1.1 - 192.168.1.255")
	assert.Contains(t, out.String(), "255")
}

func TestFormatPorts(t *testing.T) {
	assert.Equal(t, "-", formatPorts(nil))
	assert.Equal(t, "22,80,443", formatPorts([]int{22, 80, 443}))
}

func TestLocalSessionScanAndWatch(t *testing.T) {
	b := newScriptedBackend("10.0.0.2", "10.0.0.3")
	useBackend(t, b)

	var out syncBuffer
	ls, err := newLocalSession(context.Background(), config.Default(), &out)
	require.NoError(t, err)

	ok, err := ls.Scan(context.Background(), "10.0.0.1", "10.0.0.10")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, ls.Hosts(), 2)
	assert.Contains(t, out.String(), "Scanning 10.0.0.1 - 10.0.0.10 (10 addresses)")
	assert.Contains(t, out.String(), "Scan complete: 2 hosts found")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ls.Watch(ctx) }()

	require.Eventually(t, func() bool {
		text := out.String()
		return strings.Contains(text, "offline") && strings.Contains(text, "Monitoring 2 hosts")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}

	active, err := b.IsMonitoringActive(context.Background())
	require.NoError(t, err)
	assert.False(t, active)

	ls.Close()
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, b.Len())
}

func TestScanCommand(t *testing.T) {
	b := newScriptedBackend("172.16.0.5")
	useBackend(t, b)

	var out, errOut syncBuffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"scan", "172.16.0.1", "172.16.0.20", "--ports", "22,443", "--timeout", "5s"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "172.16.0.5")
	assert.Contains(t, errOut.String(), "Scan complete: 1 hosts found")
	assert.Equal(t, []int{22, 443}, b.lastScan().ServicePorts)
	assert.True(t, b.isClosed())
}

package backend

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/iprange"
)

func TestBus_SubscribeAndPublish(t *testing.T) {
	bus := NewBus()

	var got []string
	first := bus.Subscribe(func(e Event) { got = append(got, "first:"+string(e.Type)) })
	bus.Subscribe(func(e Event) { got = append(got, "second:"+string(e.Type)) })

	bus.Publish(ScanComplete(true))
	assert.Equal(t, []string{"first:scan_complete", "second:scan_complete"}, got)
	assert.NotEmpty(t, first.ID())

	first.Unsubscribe()
	first.Unsubscribe()
	assert.Equal(t, 1, bus.Len())

	got = nil
	bus.Publish(ScanError("boom"))
	assert.Equal(t, []string{"second:scan_error"}, got)
}

func TestBus_UnsubscribeFromHandler(t *testing.T) {
	bus := NewBus()

	calls := 0
	var sub *Subscription
	sub = bus.Subscribe(func(Event) {
		calls++
		sub.Unsubscribe()
	})

	bus.Publish(ScanComplete(true))
	bus.Publish(ScanComplete(true))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_NilSubscription(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				bus.Publish(HostStatusUpdate("10.0.0.1", true))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 200, count)
}

func TestEventConstructors(t *testing.T) {
	rec := hosts.Record{IPAddress: ipaddr.MustParse("10.0.0.5"), OpenPorts: []int{22}}
	evt := HostFound(rec)
	rec.OpenPorts[0] = 80

	require.NotNil(t, evt.Host)
	assert.Equal(t, EventHostFound, evt.Type)
	assert.Equal(t, []int{22}, evt.Host.OpenPorts, "event must not alias the caller's record")
	assert.False(t, evt.Timestamp.IsZero())
	assert.Equal(t, "host_found(10.0.0.5)", evt.String())

	assert.Equal(t, "scan_complete(success=false)", ScanComplete(false).String())
	assert.Equal(t, `scan_error("x")`, ScanError("x").String())
	assert.Equal(t, "host_status(1.2.3.4 online=true)", HostStatusUpdate("1.2.3.4", true).String())
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(HostStatusUpdate("10.0.0.9", true))
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "host_status", m["type"])
	assert.Equal(t, "10.0.0.9", m["ip_address"])
	assert.Equal(t, true, m["is_online"])
	assert.NotContains(t, m, "host")
}

func TestScanParameters(t *testing.T) {
	r, err := iprange.Normalize("10.0.0.1", "10.0.0.10")
	require.NoError(t, err)

	tests := []struct {
		name    string
		params  ScanParameters
		wantErr bool
		probe   []int
	}{
		{
			name:   "service only",
			params: ScanParameters{Range: r, ServicePorts: []int{22, 80}, HiddenHostPorts: []int{9100}},
			probe:  []int{22, 80},
		},
		{
			name:   "hidden ports appended without duplicates",
			params: ScanParameters{Range: r, ServicePorts: []int{22, 80}, HiddenHostDiscoveryEnabled: true, HiddenHostPorts: []int{80, 9100}},
			probe:  []int{22, 80, 9100},
		},
		{
			name:    "no service ports",
			params:  ScanParameters{Range: r},
			wantErr: true,
			probe:   nil,
		},
		{
			name:    "port out of range",
			params:  ScanParameters{Range: r, ServicePorts: []int{0}},
			wantErr: true,
			probe:   []int{0},
		},
		{
			name:    "hidden port out of range",
			params:  ScanParameters{Range: r, ServicePorts: []int{22}, HiddenHostPorts: []int{70000}},
			wantErr: true,
			probe:   []int{22},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.probe, tt.params.ProbePorts())
		})
	}
}

func TestScanParametersClone(t *testing.T) {
	p := ScanParameters{ServicePorts: []int{22}, HiddenHostPorts: []int{9100}}
	c := p.Clone()
	c.ServicePorts[0] = 1
	c.HiddenHostPorts[0] = 1
	assert.Equal(t, 22, p.ServicePorts[0])
	assert.Equal(t, 9100, p.HiddenHostPorts[0])
}

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/session"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readMessage(t *testing.T, conn *websocket.Conn) rawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg rawMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestHubStreamsEventsAndNotices(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	bus := backend.NewBus()
	hub.Attach(bus)
	assert.Equal(t, 1, bus.Len())

	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	bus.Publish(backend.HostFound(hosts.Record{IPAddress: ipaddr.MustParse("10.0.0.7"), Hostname: "printer"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "host_found", msg.Type)
	var evt backend.Event
	require.NoError(t, json.Unmarshal(msg.Data, &evt))
	require.NotNil(t, evt.Host)
	assert.Equal(t, "printer", evt.Host.Hostname)

	bus.Publish(backend.HostStatusUpdate("10.0.0.7", false))
	assert.Equal(t, "host_status", readMessage(t, conn).Type)

	hub.Notify(session.Notice{Level: session.LevelWarning, Code: errors.CodeScanDegraded, Message: "partial results"})
	msg = readMessage(t, conn)
	assert.Equal(t, MessageNotice, msg.Type)
	var notice session.Notice
	require.NoError(t, json.Unmarshal(msg.Data, &notice))
	assert.Equal(t, "partial results", notice.Message)
	assert.Equal(t, errors.CodeScanDegraded, notice.Code)
}

func TestHubAttachReplacesSubscription(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	first, second := backend.NewBus(), backend.NewBus()
	hub.Attach(first)
	hub.Attach(second)
	assert.Equal(t, 0, first.Len())
	assert.Equal(t, 1, second.Len())
}

func TestHubClientDisconnect(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Shutdown()

	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(nil)
	bus := backend.NewBus()
	hub.Attach(bus)

	conn := dialHub(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Shutdown()
	hub.Shutdown()
	assert.Equal(t, 0, bus.Len(), "shutdown detaches from the backend")
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	// Publishing after shutdown is a no-op.
	hub.Notify(session.Notice{Message: "late"})
	bus.Publish(backend.ScanComplete(true))
}

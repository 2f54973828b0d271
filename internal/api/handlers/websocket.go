// Package handlers provides HTTP request handlers for the netscope API.
// This file implements the WebSocket hub that streams backend events and
// session notices to connected clients.
package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/session"
)

const (
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
	bufferSize      = 256                                                // Size of the broadcast and per-client buffers
)

// MessageNotice is the type of messages carrying a session notice. Backend
// events use their event type.
const MessageNotice = "notice"

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	requestID string
}

// Hub fans messages out to WebSocket clients. It implements
// session.Notifier and subscribes to backend events with Attach.
type Hub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	shutdown   chan struct{}
	done       chan struct{}

	subMu sync.Mutex
	sub   *backend.Subscription
	once  sync.Once
}

var _ session.Notifier = (*Hub)(nil)

// NewHub creates a hub and starts its loop.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Hub{
		logger: logger.WithComponent("api.websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// CORS is enforced by the router for regular requests.
				return true
			},
		},
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, bufferSize),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}

	go h.run()

	return h
}

// Attach subscribes the hub to backend events. A second call replaces the
// first subscription.
func (h *Hub) Attach(events backend.Events) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	h.sub.Unsubscribe()
	h.sub = events.Subscribe(func(evt backend.Event) {
		h.publish(string(evt.Type), evt.Timestamp, evt)
	})
}

// Notify implements session.Notifier.
func (h *Hub) Notify(n session.Notice) {
	h.publish(MessageNotice, n.Timestamp, n)
}

func (h *Hub) publish(msgType string, ts time.Time, data interface{}) {
	if ts.IsZero() {
		ts = time.Now()
	}
	payload, err := json.Marshal(WebSocketMessage{Type: msgType, Timestamp: ts.UTC(), Data: data})
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", "type", msgType, "error", err)
		return
	}

	select {
	case <-h.shutdown:
	case h.broadcast <- payload:
	default:
		h.logger.Warn("Broadcast channel full, dropping message", "type", msgType)
	}
}

// ServeWS upgrades the request and streams messages until the client goes
// away or the hub shuts down.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := requestID(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", id, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, bufferSize), requestID: id}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	h.logger.Debug("WebSocket client connected", "request_id", id, "remote_addr", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// run owns client registration and delivery.
func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket hub shut down")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow consumer.
					h.logger.Warn("WebSocket client too slow, disconnecting", "request_id", c.requestID)
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// readPump discards client messages; it exists to process control frames
// and to notice disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("WebSocket unexpected close", "request_id", c.requestID, "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", c.requestID, "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown detaches from the backend and disconnects every client. It is
// safe to call more than once.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		h.subMu.Lock()
		h.sub.Unsubscribe()
		h.sub = nil
		h.subMu.Unlock()

		close(h.shutdown)
		<-h.done
	})
}

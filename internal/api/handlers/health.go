// Package handlers provides HTTP request handlers for the netscope API.
// This file implements the health endpoint.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/anstrom/netscope/internal/session"
)

// DatabasePinger checks the history database, when there is one.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// StatusProvider reports the session status.
type StatusProvider interface {
	Status() session.Status
}

const healthCheckTimeout = 3 * time.Second

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusDegraded      = "degraded"
	StatusNotConfigured = "not configured"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	status    StatusProvider
	database  DatabasePinger
	startTime time.Time
}

// NewHealthHandler creates a health handler. database may be nil.
func NewHealthHandler(status StatusProvider, database DatabasePinger) *HealthHandler {
	return &HealthHandler{
		status:    status,
		database:  database,
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Session   session.Status    `json:"session"`
	Checks    map[string]string `json:"checks"`
}

// Health reports liveness plus the session state. A failing database
// degrades the response to 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Session:   h.status.Status(),
		Checks:    map[string]string{"database": StatusNotConfigured},
	}

	code := http.StatusOK
	if h.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.database.Ping(ctx); err != nil {
			resp.Status = StatusDegraded
			resp.Checks["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			resp.Checks["database"] = StatusHealthy
		}
	}
	writeJSON(w, r, code, resp)
}

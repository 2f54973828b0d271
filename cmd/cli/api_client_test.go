package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/api/handlers"
	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/iprange"
	"github.com/anstrom/netscope/internal/session"
)

func TestNewAPIClient(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"defaults", nil, "http://127.0.0.1:8080/api/v1"},
		{"wildcard listen address", func(c *config.Config) { c.API.ListenAddr = "0.0.0.0" }, "http://127.0.0.1:8080/api/v1"},
		{"tls", func(c *config.Config) { c.API.TLS.Enabled = true; c.API.Port = 8443 }, "https://127.0.0.1:8443/api/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			assert.Equal(t, tt.want, NewAPIClient(cfg).baseURL)
		})
	}
}

func TestAPIClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/session", r.URL.Path)
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(session.Status{State: session.StateMonitoring, HostCount: 3, Monitoring: true})
	}))
	defer srv.Close()

	var status session.Status
	client := newAPIClientWithURL(srv.URL + "/api/v1")
	require.NoError(t, client.Get(context.Background(), "/session", &status))
	assert.Equal(t, session.StateMonitoring, status.State)
	assert.Equal(t, 3, status.HostCount)
}

func TestAPIClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{
			Error:     "Conflict",
			Code:      errors.CodeNoHosts,
			Message:   "No hosts to monitor",
			Timestamp: time.Now(),
			RequestID: "req-1",
		})
	}))
	defer srv.Close()

	client := newAPIClientWithURL(srv.URL + "/api/v1")
	err := client.Post(context.Background(), "/monitoring/start", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, errors.CodeNoHosts, apiErr.Code)
	assert.Equal(t, "No hosts to monitor", apiErr.Message)
	assert.Contains(t, apiErr.Error(), "req-1")
}

func TestAPIClientPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newAPIClientWithURL(srv.URL).Get(context.Background(), "/", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), apiErr.Message)
}

func TestAPIClientPostPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req handlers.ScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "10.0.0.1", req.Start)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := newAPIClientWithURL(srv.URL).Post(context.Background(), "/scans", handlers.ScanRequest{Start: "10.0.0.1"}, nil)
	assert.NoError(t, err)
}

func TestHistoryFromAPI(t *testing.T) {
	rng, err := iprange.New(ipaddr.MustParse("10.1.0.1"), ipaddr.MustParse("10.1.0.255"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/history", r.URL.Path)
		_ = json.NewEncoder(w).Encode(handlers.HistoryResponse{
			Entries: []history.Entry{{Range: rng, Timestamp: time.Now().UTC()}},
		})
	}))
	defer srv.Close()

	entries, err := historyFromAPI(context.Background(), newAPIClientWithURL(srv.URL+"/api/v1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rng, entries[0].Range)
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netscope/internal/session"
)

// MockDB is a mock implementation of DatabasePinger.
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type staticStatus session.Status

func (s staticStatus) Status() session.Status { return session.Status(s) }

func TestHealth(t *testing.T) {
	status := staticStatus{State: session.StateScanning, HostCount: 2, Busy: true}

	tests := []struct {
		name       string
		database   func() DatabasePinger
		wantCode   int
		wantStatus string
		wantDB     string
	}{
		{
			name:       "no database",
			database:   func() DatabasePinger { return nil },
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
			wantDB:     StatusNotConfigured,
		},
		{
			name: "database reachable",
			database: func() DatabasePinger {
				db := &MockDB{}
				db.On("Ping", mock.Anything).Return(nil)
				return db
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
			wantDB:     StatusHealthy,
		},
		{
			name: "database down",
			database: func() DatabasePinger {
				db := &MockDB{}
				db.On("Ping", mock.Anything).Return(fmt.Errorf("connection refused"))
				return db
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusDegraded,
			wantDB:     "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(status, tt.database())
			rr := httptest.NewRecorder()
			h.Health(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantDB, resp.Checks["database"])
			assert.Equal(t, 2, resp.Session.HostCount)
			assert.True(t, resp.Session.Busy)
		})
	}
}

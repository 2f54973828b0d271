// Package monitor maps monitoring intents onto session transitions and keeps
// the local monitoring state aligned with what the backend confirms.
package monitor

import (
	"context"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/session"
)

// Controller is the part of the session controller the manager drives.
type Controller interface {
	State() session.State
	RequestMonitor(ctx context.Context) error
	RequestStopMonitor(ctx context.Context) error
	ApplyBackendMonitoring(active bool) error
}

// Manager owns the monitoring lifecycle.
type Manager struct {
	ctrl    Controller
	backend backend.Backend
	logger  *logging.Logger
}

// New creates a manager.
func New(ctrl Controller, b backend.Backend, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		ctrl:    ctrl,
		backend: b,
		logger:  logger.WithComponent("monitor"),
	}
}

// Active reports whether the controller is monitoring.
func (m *Manager) Active() bool {
	return m.ctrl.State() == session.StateMonitoring
}

// Sync queries the backend once and adopts its monitoring state.
func (m *Manager) Sync(ctx context.Context) error {
	active, err := m.backend.IsMonitoringActive(ctx)
	if err != nil {
		m.logger.ErrorCommand("Failed to query monitoring state", "IsMonitoringActive", err)
		return errors.ErrCommandRejected("IsMonitoringActive", err)
	}
	m.logger.Debug("Backend monitoring state", "active", active)
	return m.ctrl.ApplyBackendMonitoring(active)
}

// Toggle stops monitoring when it is active and starts it otherwise.
func (m *Manager) Toggle(ctx context.Context) error {
	switch st := m.ctrl.State(); st {
	case session.StateScanning:
		return errors.ErrInvalidState("Cannot toggle monitoring while a scan is in progress", st.String())
	case session.StateMonitoring:
		return m.Stop(ctx)
	default:
		return m.Start(ctx)
	}
}

// Start begins monitoring every known host.
func (m *Manager) Start(ctx context.Context) error {
	err := m.ctrl.RequestMonitor(ctx)
	if err != nil {
		m.resyncAfter(ctx, err)
	}
	return err
}

// Stop ends monitoring.
func (m *Manager) Stop(ctx context.Context) error {
	err := m.ctrl.RequestStopMonitor(ctx)
	if err != nil {
		m.resyncAfter(ctx, err)
	}
	return err
}

// resyncAfter realigns local state with the backend after a rejected
// command. The original error is what the caller sees.
func (m *Manager) resyncAfter(ctx context.Context, cause error) {
	if !errors.IsCode(cause, errors.CodeCommandRejected) {
		return
	}
	if err := m.Sync(ctx); err != nil {
		m.logger.Warn("Resync after rejected command failed", "error", err, "cause", cause)
	}
}

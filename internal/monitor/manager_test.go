package monitor

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/backend/mocks"
	"github.com/anstrom/netscope/internal/errors"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/ipaddr"
	"github.com/anstrom/netscope/internal/session"
)

var errRejected = stderrors.New("rejected")

type fixture struct {
	mgr     *Manager
	ctrl    *session.Controller
	backend *mocks.MockBackend
	bus     *backend.Bus
	notices []session.Notice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: mocks.NewMockBackend(gomock.NewController(t)),
		bus:     backend.NewBus(),
	}
	c, err := session.New(session.Config{
		Backend:  f.backend,
		Events:   f.bus,
		Notifier: session.NotifierFunc(func(n session.Notice) { f.notices = append(f.notices, n) }),
	})
	require.NoError(t, err)
	c.Attach()
	t.Cleanup(c.Detach)

	f.ctrl = c
	f.mgr = New(c, f.backend, nil)
	return f
}

func (f *fixture) seed(t *testing.T, ips ...string) {
	t.Helper()
	f.backend.EXPECT().StartScan(gomock.Any(), gomock.Any()).Return(nil)
	_, err := f.ctrl.RequestScan(context.Background(), "10.0.0", "")
	require.NoError(t, err)
	for _, ip := range ips {
		f.bus.Publish(backend.HostFound(hosts.Record{IPAddress: ipaddr.MustParse(ip)}))
	}
	f.bus.Publish(backend.ScanComplete(true))
}

func TestSync(t *testing.T) {
	t.Run("adopts active backend with empty store", func(t *testing.T) {
		f := newFixture(t)
		f.backend.EXPECT().IsMonitoringActive(gomock.Any()).Return(true, nil)

		require.NoError(t, f.mgr.Sync(context.Background()))
		assert.True(t, f.mgr.Active())
		require.NotEmpty(t, f.notices)
		assert.Equal(t, errors.CodeDesync, f.notices[len(f.notices)-1].Code)
	})

	t.Run("inactive backend stays idle", func(t *testing.T) {
		f := newFixture(t)
		f.backend.EXPECT().IsMonitoringActive(gomock.Any()).Return(false, nil)

		require.NoError(t, f.mgr.Sync(context.Background()))
		assert.False(t, f.mgr.Active())
		assert.Empty(t, f.notices)
	})

	t.Run("query failure", func(t *testing.T) {
		f := newFixture(t)
		f.backend.EXPECT().IsMonitoringActive(gomock.Any()).Return(false, errRejected)

		err := f.mgr.Sync(context.Background())
		assert.True(t, errors.IsCode(err, errors.CodeCommandRejected))
		assert.Equal(t, session.StateIdle, f.ctrl.State())
	})
}

func TestToggle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "10.0.0.1", "10.0.0.2")

	f.backend.EXPECT().StartMonitoring(gomock.Any(), gomock.Any()).Return(nil)
	require.NoError(t, f.mgr.Toggle(context.Background()))
	assert.True(t, f.mgr.Active())

	f.backend.EXPECT().StopMonitoring(gomock.Any()).Return(nil)
	require.NoError(t, f.mgr.Toggle(context.Background()))
	assert.False(t, f.mgr.Active())
}

func TestToggle_Guards(t *testing.T) {
	t.Run("no hosts", func(t *testing.T) {
		f := newFixture(t)
		err := f.mgr.Toggle(context.Background())
		assert.True(t, errors.IsCode(err, errors.CodeNoHosts))
	})

	t.Run("while scanning", func(t *testing.T) {
		f := newFixture(t)
		f.backend.EXPECT().StartScan(gomock.Any(), gomock.Any()).Return(nil)
		_, err := f.ctrl.RequestScan(context.Background(), "10.0.0", "")
		require.NoError(t, err)

		err = f.mgr.Toggle(context.Background())
		assert.True(t, errors.IsCode(err, errors.CodeInvalidState))
	})
}

func TestStart_RejectedResyncs(t *testing.T) {
	tests := []struct {
		name       string
		confirmed  bool
		wantActive bool
	}{
		{"backend never started", false, false},
		{"backend started anyway", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "10.0.0.1")

			gomock.InOrder(
				f.backend.EXPECT().StartMonitoring(gomock.Any(), gomock.Any()).Return(errRejected),
				f.backend.EXPECT().IsMonitoringActive(gomock.Any()).Return(tt.confirmed, nil),
			)

			err := f.mgr.Start(context.Background())
			assert.True(t, errors.IsCode(err, errors.CodeCommandRejected))
			assert.ErrorIs(t, err, errRejected)
			assert.Equal(t, tt.wantActive, f.mgr.Active())
		})
	}
}

func TestStop_RejectedResyncs(t *testing.T) {
	tests := []struct {
		name       string
		confirmed  bool
		wantActive bool
	}{
		{"backend still monitoring", true, true},
		{"backend stopped anyway", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, "10.0.0.1")
			f.backend.EXPECT().StartMonitoring(gomock.Any(), gomock.Any()).Return(nil)
			require.NoError(t, f.mgr.Start(context.Background()))

			gomock.InOrder(
				f.backend.EXPECT().StopMonitoring(gomock.Any()).Return(errRejected),
				f.backend.EXPECT().IsMonitoringActive(gomock.Any()).Return(tt.confirmed, nil),
			)

			err := f.mgr.Stop(context.Background())
			assert.True(t, errors.IsCode(err, errors.CodeCommandRejected))
			assert.Equal(t, tt.wantActive, f.mgr.Active())
		})
	}
}

func TestStart_GuardErrorsDoNotResync(t *testing.T) {
	f := newFixture(t)
	// No IsMonitoringActive expectation: a NO_HOSTS refusal never queries.
	err := f.mgr.Start(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeNoHosts))
}

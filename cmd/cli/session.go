package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/viper"

	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/daemon"
	"github.com/anstrom/netscope/internal/db"
	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/monitor"
	"github.com/anstrom/netscope/internal/probe"
	"github.com/anstrom/netscope/internal/session"
	"github.com/anstrom/netscope/internal/settings"
)

// newBackend builds the backend used by scan and watch. Tests replace it.
var newBackend = func(cfg *config.Config, logger *logging.Logger) (daemon.Backend, error) {
	b, err := probe.New(cfg.Probe, probe.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// localSession is a discovery session running in this process.
type localSession struct {
	backend  daemon.Backend
	ctrl     *session.Controller
	mgr      *monitor.Manager
	database *db.DB
	out      io.Writer
	outMu    *sync.Mutex
}

// newLocalSession wires a controller to a fresh backend. Notices are
// printed to out.
func newLocalSession(ctx context.Context, cfg *config.Config, out io.Writer) (*localSession, error) {
	logger := logging.Default()

	b, err := newBackend(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	ls := &localSession{backend: b, out: out, outMu: &sync.Mutex{}}

	var hist history.Store = history.NewMemoryStore()
	if cfg.UsesDatabase() {
		database, err := db.ConnectAndMigrate(ctx, &cfg.Database, logger)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		ls.database = database
		hist = history.NewSQLStore(database, logger)
	}

	ctrl, err := session.New(session.Config{
		Backend:        b,
		Events:         b,
		Store:          hosts.NewStore(logger),
		Settings:       settings.NewViperProvider(viper.GetViper()),
		History:        hist,
		Notifier:       session.NotifierFunc(ls.printNotice),
		Logger:         logger,
		CommandTimeout: cfg.Daemon.CommandTimeout,
	})
	if err != nil {
		ls.Close()
		return nil, err
	}
	ctrl.Attach()

	ls.ctrl = ctrl
	ls.mgr = monitor.New(ctrl, b, logger)
	return ls, nil
}

func (ls *localSession) printf(format string, args ...any) {
	ls.outMu.Lock()
	defer ls.outMu.Unlock()
	fmt.Fprintf(ls.out, format, args...)
}

func (ls *localSession) printNotice(n session.Notice) {
	ls.printf("[%s] %s\n", n.Level, n.Message)
}

// Scan runs one scan and blocks until the backend reports it finished.
// It returns false when the scan ended with errors or was aborted.
func (ls *localSession) Scan(ctx context.Context, startRaw, endRaw string) (bool, error) {
	done := make(chan bool, 1)
	// Subscribed after the controller, so the store is final when this fires.
	sub := ls.backend.Subscribe(func(evt backend.Event) {
		var ok bool
		switch evt.Type {
		case backend.EventScanComplete:
			ok = evt.Success
		case backend.EventScanError:
		default:
			return
		}
		select {
		case done <- ok:
		default:
		}
	})
	defer sub.Unsubscribe()

	rng, err := ls.ctrl.RequestScan(ctx, startRaw, endRaw)
	if err != nil {
		return false, err
	}
	ls.printf("Scanning %s (%d addresses)...\n", rng, rng.Size())

	select {
	case ok := <-done:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Watch starts monitoring the discovered hosts and prints every liveness
// change until ctx is done. Monitoring is stopped before returning.
func (ls *localSession) Watch(ctx context.Context) error {
	sub := ls.backend.Subscribe(func(evt backend.Event) {
		if evt.Type != backend.EventHostStatus {
			return
		}
		ls.printf("%s  %-15s  %s\n", evt.Timestamp.Format("15:04:05"), evt.IPAddress,
			hosts.LivenessFromBool(evt.IsOnline))
	})
	defer sub.Unsubscribe()

	if err := ls.mgr.Start(ctx); err != nil {
		return err
	}
	ls.printf("Monitoring %d hosts, press Ctrl+C to stop\n", ls.ctrl.Status().HostCount)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), session.DefaultCommandTimeout)
	defer cancel()
	return ls.mgr.Stop(stopCtx)
}

// Hosts returns the current host table.
func (ls *localSession) Hosts() []hosts.Record {
	return ls.ctrl.Hosts("")
}

// Close detaches the controller and releases the backend and database.
func (ls *localSession) Close() {
	if ls.ctrl != nil {
		ls.ctrl.Detach()
	}
	if err := ls.backend.Close(); err != nil {
		logging.Warn("Failed to close backend", "error", err)
	}
	if ls.database != nil {
		if err := ls.database.Close(); err != nil {
			logging.Warn("Failed to close database connection", "error", err)
		}
	}
}

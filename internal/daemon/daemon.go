// Package daemon provides the background service for netscope. It assembles
// the probe backend, the discovery session controller, the monitoring
// manager and the API server, and coordinates their start-up and shutdown.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/anstrom/netscope/internal/api"
	"github.com/anstrom/netscope/internal/api/handlers"
	"github.com/anstrom/netscope/internal/backend"
	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/db"
	"github.com/anstrom/netscope/internal/history"
	"github.com/anstrom/netscope/internal/hosts"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/metrics"
	"github.com/anstrom/netscope/internal/monitor"
	"github.com/anstrom/netscope/internal/probe"
	"github.com/anstrom/netscope/internal/session"
	"github.com/anstrom/netscope/internal/settings"
)

const healthCheckInterval = 30 * time.Second

// File permission constants.
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o600
)

// Backend is what the daemon needs from a discovery backend: the command
// surface, its event stream and a way to release it.
type Backend interface {
	backend.Backend
	backend.Events
	Close() error
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithBackend replaces the probe backend built from the configuration.
func WithBackend(b Backend) Option {
	return func(d *Daemon) { d.backend = b }
}

// WithSettings replaces the settings provider seeded from the configuration.
func WithSettings(p settings.Provider) Option {
	return func(d *Daemon) { d.settings = p }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithConfigPath records where the configuration was loaded from so SIGHUP
// can reload it.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// Daemon represents the main daemon process.
type Daemon struct {
	config     *config.Config
	configPath string
	pidFile    string
	logger     *logging.Logger

	metrics    *metrics.PrometheusMetrics
	database   *db.DB
	backend    Backend
	settings   settings.Provider
	static     *settings.Static
	controller *session.Controller
	monitor    *monitor.Manager
	hub        *handlers.Hub
	apiServer  *api.Server

	ctx         context.Context
	cancel      context.CancelFunc
	ready       chan struct{}
	done        chan struct{}
	cleanupOnce sync.Once
	wg          sync.WaitGroup
	mu          sync.RWMutex
}

// New creates a new daemon instance.
func New(cfg *config.Config, opts ...Option) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		pidFile: cfg.Daemon.PIDFile,
		logger:  logging.Default(),
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("daemon")
	return d
}

// Start initializes every component and blocks until the daemon is stopped
// by Stop or a termination signal.
func (d *Daemon) Start() error {
	d.logger.Info("Starting netscope daemon")

	if err := d.config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if err := d.createPIDFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	d.setupSignalHandlers()

	if err := d.initialize(); err != nil {
		d.cleanup()
		close(d.done)
		return err
	}

	d.logger.Info("Daemon started successfully")
	close(d.ready)
	return d.run()
}

// Stop stops the daemon gracefully.
func (d *Daemon) Stop() error {
	d.logger.Info("Stopping daemon")
	d.cancel()

	select {
	case <-d.done:
		d.logger.Info("Daemon stopped gracefully")
	case <-time.After(d.config.Daemon.ShutdownTimeout):
		d.logger.Warn("Shutdown timeout reached, forcing cleanup")
		d.cleanup()
	}
	return nil
}

// Ready is closed once every component is initialized.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// Controller returns the session controller. It is nil before Ready.
func (d *Daemon) Controller() *session.Controller {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.controller
}

// Monitor returns the monitoring manager. It is nil before Ready.
func (d *Daemon) Monitor() *monitor.Manager {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.monitor
}

// initialize builds the component graph:
// metrics, database, history, backend, hub, controller, monitor, API.
func (d *Daemon) initialize() error {
	d.metrics = metrics.NewPrometheusMetrics()

	if err := d.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	var hist history.Store = history.NewMemoryStore()
	if d.database != nil {
		hist = history.NewSQLStore(d.database, d.logger)
	}

	if d.backend == nil {
		b, err := probe.New(d.config.Probe,
			probe.WithMetrics(d.metrics),
			probe.WithObserver(d.metrics),
			probe.WithLogger(d.logger))
		if err != nil {
			return fmt.Errorf("failed to create probe backend: %w", err)
		}
		d.backend = b
	}

	if d.settings == nil {
		d.static = settings.NewStatic(d.config.Scanning)
		d.settings = d.static
	}

	d.hub = handlers.NewHub(d.logger)
	d.hub.Attach(d.backend)

	ctrl, err := session.New(session.Config{
		Backend:        d.backend,
		Events:         d.backend,
		Store:          hosts.NewStore(d.logger),
		Settings:       d.settings,
		History:        hist,
		Notifier:       session.Notifiers{d.hub, session.NotifierFunc(d.logNotice)},
		Metrics:        d.metrics,
		Logger:         d.logger,
		CommandTimeout: d.config.Daemon.CommandTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create session controller: %w", err)
	}
	ctrl.Attach()

	mgr := monitor.New(ctrl, d.backend, d.logger)

	d.mu.Lock()
	d.controller = ctrl
	d.monitor = mgr
	d.mu.Unlock()

	if d.config.Monitoring.SyncOnStart {
		d.syncMonitoring()
	}

	if err := d.initAPIServer(); err != nil {
		return fmt.Errorf("failed to initialize API server: %w", err)
	}
	return nil
}

func (d *Daemon) logNotice(n session.Notice) {
	fields := []any{"code", n.Code}
	switch n.Level {
	case session.LevelError:
		d.logger.Error(n.Message, fields...)
	case session.LevelWarning:
		d.logger.Warn(n.Message, fields...)
	default:
		d.logger.Info(n.Message, fields...)
	}
}

// initDatabase connects to PostgreSQL when the history backend needs it.
func (d *Daemon) initDatabase() error {
	if !d.config.UsesDatabase() {
		return nil
	}
	d.logger.InfoDatabase("Connecting to database", "host", d.config.Database.Host)

	database, err := db.ConnectAndMigrate(d.ctx, &d.config.Database, d.logger)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	d.database = database
	return nil
}

// initAPIServer initializes the API server.
func (d *Daemon) initAPIServer() error {
	if !d.config.API.Enabled {
		d.logger.Info("API server disabled, skipping initialization")
		return nil
	}

	deps := api.Dependencies{
		Session: d.controller,
		Monitor: d.monitor,
		Hub:     d.hub,
		Metrics: d.metrics,
		Logger:  d.logger,
	}
	if d.database != nil {
		deps.Database = d.database
	}

	server, err := api.New(d.config.API, deps)
	if err != nil {
		return fmt.Errorf("API server creation failed: %w", err)
	}
	d.apiServer = server
	d.logger.Info("API server initialized", "address", d.config.GetAPIAddress())
	return nil
}

// syncMonitoring adopts the backend's monitoring state. A failure leaves
// the local state unchanged.
func (d *Daemon) syncMonitoring() {
	ctx, cancel := context.WithTimeout(d.ctx, d.config.Daemon.CommandTimeout)
	defer cancel()
	if err := d.monitor.Sync(ctx); err != nil {
		d.logger.Warn("Monitoring sync failed", "error", err)
	}
}

// run executes the main daemon loop.
func (d *Daemon) run() error {
	defer close(d.done)
	defer d.cleanup()

	if d.apiServer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.apiServer.Start(d.ctx); err != nil {
				d.logger.Error("API server error", "error", err)
			}
		}()
	}

	if interval := d.config.Daemon.MetricsInterval; interval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.metrics.StartPeriodicUpdates(d.ctx, interval)
		}()
	}

	var syncC <-chan time.Time
	if interval := d.config.Monitoring.SyncInterval; interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		syncC = ticker.C
	}

	health := time.NewTicker(healthCheckInterval)
	defer health.Stop()

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Info("Shutdown signal received")
			return nil
		case <-syncC:
			d.syncMonitoring()
		case <-health.C:
			d.performHealthCheck()
		}
	}
}

// performHealthCheck performs periodic health checks.
func (d *Daemon) performHealthCheck() {
	if d.database == nil {
		return
	}
	ctx, cancel := context.WithTimeout(d.ctx, d.config.Daemon.CommandTimeout)
	defer cancel()
	if err := d.database.Ping(ctx); err != nil {
		d.logger.ErrorDatabase("Database health check failed", err)
	}
}

// cleanup releases everything initialize created. It runs once.
func (d *Daemon) cleanup() {
	d.cleanupOnce.Do(func() {
		d.logger.Debug("Performing cleanup")
		d.cancel()

		// The API server and the metrics loop stop with the context.
		d.wg.Wait()
		if d.hub != nil {
			d.hub.Shutdown()
		}

		if d.controller != nil {
			d.controller.Detach()
		}
		if d.backend != nil {
			if err := d.backend.Close(); err != nil {
				d.logger.Error("Error closing backend", "error", err)
			}
		}
		if d.database != nil {
			if err := d.database.Close(); err != nil {
				d.logger.ErrorDatabase("Error closing database", err)
			}
		}

		if d.pidFile != "" {
			if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
				d.logger.Warn("Error removing PID file", "path", d.pidFile, "error", err)
			}
		}
		d.logger.Debug("Cleanup completed")
	})
}

// createPIDFile creates the PID file.
func (d *Daemon) createPIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(d.pidFile), DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := d.checkExistingPID(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	d.logger.Debug("Created PID file", "path", d.pidFile, "pid", pid)
	return nil
}

// checkExistingPID fails if the PID file names a live process. A stale or
// unreadable file is removed.
func (d *Daemon) checkExistingPID() error {
	data, err := os.ReadFile(d.pidFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read existing PID file: %w", err)
	}

	pid, err := strconv.Atoi(string(data))
	if err == nil && pid != os.Getpid() && isProcessRunning(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}
	_ = os.Remove(d.pidFile)
	return nil
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// setupSignalHandlers sets up signal handling for graceful shutdown.
func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan,
		syscall.SIGTERM, // Termination signal
		syscall.SIGINT,  // Interrupt signal (Ctrl+C)
		syscall.SIGHUP,  // Reload scan settings
		syscall.SIGUSR1, // Dump status
	)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case <-d.ctx.Done():
				return
			case sig := <-sigChan:
				d.logger.Info("Received signal", "signal", sig.String())
				switch sig {
				case syscall.SIGTERM, syscall.SIGINT:
					d.cancel()
					return
				case syscall.SIGHUP:
					if err := d.reloadConfiguration(); err != nil {
						d.logger.Error("Configuration reload failed", "error", err)
					}
				case syscall.SIGUSR1:
					d.dumpStatus()
				}
			}
		}
	}()
}

// reloadConfiguration re-reads the scan settings from the configuration
// file. Other sections need a restart.
func (d *Daemon) reloadConfiguration() error {
	if d.configPath == "" {
		return fmt.Errorf("no configuration file to reload")
	}
	if d.static == nil {
		return fmt.Errorf("settings are provided externally")
	}

	cfg, err := config.Load(d.configPath)
	if err != nil {
		return err
	}
	d.static.Set(cfg.Scanning)
	d.logger.Info("Scan settings reloaded",
		"service_ports", cfg.Scanning.ServicePorts,
		"hidden_host_discovery", cfg.Scanning.HiddenHostDiscovery)
	return nil
}

// dumpStatus logs the current daemon status.
func (d *Daemon) dumpStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	fields := []any{
		"pid", os.Getpid(),
		"goroutines", runtime.NumGoroutine(),
		"alloc_kb", m.Alloc / 1024,
		"api", d.apiServer != nil,
		"database", d.database != nil,
	}
	if ctrl := d.Controller(); ctrl != nil {
		st := ctrl.Status()
		fields = append(fields, "state", st.State.String(), "hosts", st.HostCount, "busy", st.Busy)
	}
	d.logger.Info("Daemon status", fields...)
}

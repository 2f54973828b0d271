// Package metrics provides Prometheus-based metrics collection for netscope.
// Every collector lives on a private registry exposed through GetRegistry.
package metrics

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all netscope metrics
	namespace = "netscope"

	// Subsystems
	subsystemSession = "session"
	subsystemProbe   = "probe"
	subsystemWorkers = "workers"
	subsystemSystem  = "system"
	subsystemAPI     = "api"
)

// sessionStates are the values of the state label, kept in sync with
// session.State.String.
var sessionStates = []string{"idle", "scanning", "monitoring"}

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Session metrics
	scansTotal      *prometheus.CounterVec
	hostsDiscovered prometheus.Counter
	storeHosts      prometheus.Gauge
	sessionState    *prometheus.GaugeVec
	livenessUpdates *prometheus.CounterVec
	desyncTotal     *prometheus.CounterVec
	commandErrors   *prometheus.CounterVec

	// Probe metrics
	sweepDuration  prometheus.Histogram
	livenessChecks *prometheus.CounterVec

	// Worker metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initSessionMetrics()
	pm.initProbeMetrics()
	pm.initWorkerMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	pm.registerMetrics()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initSessionMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "scans_total",
			Help:      "Total number of scans by outcome",
		},
		[]string{"outcome"},
	)

	pm.hostsDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "hosts_discovered_total",
			Help:      "Total number of distinct hosts inserted into the store",
		},
	)

	pm.storeHosts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "store_hosts",
			Help:      "Number of hosts currently in the store",
		},
	)

	pm.sessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "state",
			Help:      "Current session state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	pm.livenessUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "liveness_updates_total",
			Help:      "Total number of liveness updates applied by status",
		},
		[]string{"status"},
	)

	pm.desyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "desync_total",
			Help:      "Total number of backend desynchronizations by kind",
		},
		[]string{"kind"},
	)

	pm.commandErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "command_errors_total",
			Help:      "Total number of rejected backend commands",
		},
		[]string{"command"},
	)
}

func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of discovery sweeps in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	pm.livenessChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "liveness_checks_total",
			Help:      "Total number of liveness checks by result",
		},
		[]string{"result"},
	)
}

func (pm *PrometheusMetrics) initWorkerMetrics() {
	pm.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "jobs_total",
			Help:      "Total number of worker jobs by type and status",
		},
		[]string{"job_type", "status"},
	)

	pm.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "job_duration_seconds",
			Help:      "Duration of worker jobs in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"job_type"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.hostsDiscovered,
		pm.storeHosts,
		pm.sessionState,
		pm.livenessUpdates,
		pm.desyncTotal,
		pm.commandErrors,

		pm.sweepDuration,
		pm.livenessChecks,

		pm.jobsTotal,
		pm.jobDuration,

		pm.httpRequests,
		pm.httpDuration,

		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Session metrics. These methods satisfy session.Metrics.

// ScanFinished counts a scan by outcome.
func (pm *PrometheusMetrics) ScanFinished(outcome string) {
	pm.scansTotal.WithLabelValues(outcome).Inc()
}

// HostDiscovered counts a newly inserted host.
func (pm *PrometheusMetrics) HostDiscovered() {
	pm.hostsDiscovered.Inc()
}

// StoreSize sets the current store size.
func (pm *PrometheusMetrics) StoreSize(n int) {
	pm.storeHosts.Set(float64(n))
}

// StateChanged marks state as the active session state.
func (pm *PrometheusMetrics) StateChanged(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		pm.sessionState.WithLabelValues(s).Set(v)
	}
}

// LivenessUpdate counts an applied liveness update.
func (pm *PrometheusMetrics) LivenessUpdate(online bool) {
	status := "offline"
	if online {
		status = "online"
	}
	pm.livenessUpdates.WithLabelValues(status).Inc()
}

// Desync counts a backend desynchronization.
func (pm *PrometheusMetrics) Desync(kind string) {
	pm.desyncTotal.WithLabelValues(kind).Inc()
}

// CommandError counts a rejected backend command.
func (pm *PrometheusMetrics) CommandError(command string) {
	pm.commandErrors.WithLabelValues(command).Inc()
}

// Probe metrics.

// RecordSweepDuration records the duration of one discovery sweep.
func (pm *PrometheusMetrics) RecordSweepDuration(d time.Duration) {
	pm.sweepDuration.Observe(d.Seconds())
}

// LivenessChecked counts one liveness probe result.
func (pm *PrometheusMetrics) LivenessChecked(alive bool) {
	result := "down"
	if alive {
		result = "up"
	}
	pm.livenessChecks.WithLabelValues(result).Inc()
}

// JobFinished satisfies workers.Observer.
func (pm *PrometheusMetrics) JobFinished(jobType string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pm.jobsTotal.WithLabelValues(jobType, status).Inc()
	pm.jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}

// API metrics.

// RecordHTTPRequest counts a request and records its duration.
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	pm.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// System metrics.

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())

	pm.lastUpdate = time.Now()
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates updates system metrics every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

// Package api provides the HTTP and WebSocket API of the netscope daemon.
// It exposes the discovery session, monitoring commands, the host table and
// scan history under /api/v1, and Prometheus metrics under /metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihandlers "github.com/anstrom/netscope/internal/api/handlers"
	"github.com/anstrom/netscope/internal/api/middleware"
	"github.com/anstrom/netscope/internal/config"
	"github.com/anstrom/netscope/internal/logging"
	"github.com/anstrom/netscope/internal/metrics"
)

const serverShutdownTimeout = 30 * time.Second

// Dependencies are the collaborators the API serves. Session, Monitor and
// Hub are required.
type Dependencies struct {
	Session  apihandlers.SessionService
	Monitor  apihandlers.MonitorService
	Status   apihandlers.StatusProvider
	Hub      *apihandlers.Hub
	Database apihandlers.DatabasePinger
	Metrics  *metrics.PrometheusMetrics
	Logger   *logging.Logger
}

// Server represents the API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	config     config.APIConfig
	hub        *apihandlers.Hub
	metrics    *metrics.PrometheusMetrics
	logger     *logging.Logger
}

// New creates a new API server instance.
func New(cfg config.APIConfig, deps Dependencies) (*Server, error) {
	if deps.Session == nil || deps.Monitor == nil || deps.Hub == nil {
		return nil, fmt.Errorf("api: session, monitor and hub are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	status := deps.Status
	if status == nil {
		status = deps.Session
	}

	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		hub:     deps.Hub,
		metrics: deps.Metrics,
		logger:  logger.WithComponent("api"),
	}

	s.setupRoutes(deps, status)
	s.setupMiddleware()

	s.handler = s.router
	if cfg.CORS.Enabled {
		// Wrapping the router lets preflight requests through before
		// route matching.
		s.handler = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
			handlers.AllowedMethods(cfg.CORS.AllowedMethods),
			handlers.AllowedHeaders(cfg.CORS.AllowedHeaders),
			handlers.ExposedHeaders([]string{middleware.RequestIDHeader}),
		)(s.router)
	}

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.Port)),
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes(deps Dependencies, status apihandlers.StatusProvider) {
	sessionHandler := apihandlers.NewSessionHandler(deps.Session, deps.Monitor, s.logger)
	healthHandler := apihandlers.NewHealthHandler(status, deps.Database)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	api.HandleFunc("/session", sessionHandler.GetSession).Methods(http.MethodGet)

	api.HandleFunc("/scans", sessionHandler.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scans/rescan", sessionHandler.Rescan).Methods(http.MethodPost)

	api.HandleFunc("/monitoring/toggle", sessionHandler.ToggleMonitoring).Methods(http.MethodPost)
	api.HandleFunc("/monitoring/start", sessionHandler.StartMonitoring).Methods(http.MethodPost)
	api.HandleFunc("/monitoring/stop", sessionHandler.StopMonitoring).Methods(http.MethodPost)

	api.HandleFunc("/hosts", sessionHandler.ListHosts).Methods(http.MethodGet)
	api.HandleFunc("/history", sessionHandler.ListHistory).Methods(http.MethodGet)
	api.HandleFunc("/ranges/normalize", sessionHandler.NormalizeRange).Methods(http.MethodGet)

	api.HandleFunc("/ws", deps.Hub.ServeWS).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	s.router.HandleFunc("/", s.index).Methods(http.MethodGet)
}

// setupMiddleware configures middleware for the API server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logging(s.logger))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	s.router.Use(middleware.ContentType())
	s.router.Use(middleware.BodyLimit(s.config.MaxRequestSize))
	s.router.Use(middleware.RequestTimeout(s.config.RequestTimeout))
}

// index returns API information for root requests.
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	apihandlers.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"service": "netscope",
		"version": "v1",
		"endpoints": map[string]string{
			"health":  "/api/v1/health",
			"session": "/api/v1/session",
			"ws":      "/api/v1/ws",
			"metrics": "/metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting API server",
		"address", s.httpServer.Addr,
		"tls", s.config.TLS.Enabled,
		"read_timeout", s.httpServer.ReadTimeout,
		"write_timeout", s.httpServer.WriteTimeout)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop disconnects WebSocket clients and gracefully stops the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")

	// Hijacked connections are not tracked by Shutdown.
	s.hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("API server shutdown error", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("API server stopped successfully")
	return nil
}

// Handler returns the root handler, including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// GetRouter returns the configured router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetAddress returns the server address.
func (s *Server) GetAddress() string {
	return s.httpServer.Addr
}

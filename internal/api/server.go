package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"calliope/internal/adapters/config"
	"calliope/internal/api/health"
	"calliope/internal/metrics"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// Handlers bundles the route handlers wired into the server.
type Handlers struct {
	Generation *GenerationHandler
	Progress   *ProgressHandler
	Usage      *UsageHandler
	Audit      *AuditHandler
	Analytics  *AnalyticsHandler // nil when the ClickHouse mirror is disabled
	Health     *health.Handler
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg config.ServerConfig, app config.AppConfig, version string, h Handlers) *Server {
	log := logger.Get().With("component", "api_server")

	r := mux.NewRouter()

	// Health check endpoints (Kubernetes probes)
	r.HandleFunc("/health", h.Health.HandleHealth).Methods("GET")
	r.HandleFunc("/ready", h.Health.HandleReadiness).Methods("GET")
	r.HandleFunc("/live", h.Health.HandleLiveness).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Generation jobs
	api.HandleFunc("/generations", h.Generation.HandleStart).Methods("POST")
	api.HandleFunc("/generations/{id}", h.Generation.HandleStatus).Methods("GET")
	api.HandleFunc("/generations/{id}/progress", h.Progress.HandleProgress).Methods("GET")

	// Usage summaries and cost rollups
	api.HandleFunc("/brands/{brandID}/usage", h.Usage.HandleBrandUsage).Methods("GET")
	api.HandleFunc("/brands/{brandID}/costs/total", h.Usage.HandleBrandTotalCost).Methods("GET")
	api.HandleFunc("/brands/{brandID}/costs/month", h.Usage.HandleBrandMonthCost).Methods("GET")
	api.HandleFunc("/users/{userID}/usage", h.Usage.HandleUserUsage).Methods("GET")
	if h.Analytics != nil {
		api.HandleFunc("/brands/{brandID}/costs/models", h.Analytics.HandleBrandModelCosts).Methods("GET")
	}

	// Audit log is read-only over HTTP; mutating verbs are rejected outright
	api.HandleFunc("/audit", h.Audit.HandleList).Methods("GET")
	api.HandleFunc("/audit/{id}", h.Audit.HandleGet).Methods("GET")
	api.PathPrefix("/audit").HandlerFunc(h.Audit.HandleMutation).Methods("POST", "PUT", "PATCH", "DELETE")

	// Root endpoint (service info)
	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			app.Name, version)
	}).Methods("GET")

	log.Infof("HTTP server configured on %s", cfg.Addr())

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}

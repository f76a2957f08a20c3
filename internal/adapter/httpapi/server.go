// Package httpapi exposes the report pipeline and map store over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/clima-scope/internal/mapstore"
	"github.com/couchcryptid/clima-scope/internal/observability"
	"github.com/couchcryptid/clima-scope/internal/pipeline"
)

// ReadinessChecker reports whether the service can take traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server routes pipeline, map, health, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	orch       *pipeline.Orchestrator
	maps       mapstore.Store
	ready      ReadinessChecker
	logger     *slog.Logger
	metrics    *observability.Metrics

	maxUploadBytes int64
}

// NewServer creates the HTTP server with all service routes registered.
func NewServer(
	addr string,
	orch *pipeline.Orchestrator,
	maps mapstore.Store,
	ready ReadinessChecker,
	logger *slog.Logger,
	metrics *observability.Metrics,
	maxUploadBytes int64,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		orch:           orch,
		maps:           maps,
		ready:          ready,
		logger:         logger,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
	}

	mux.HandleFunc("POST /api/v1/pipeline/process", s.handleProcess)
	mux.HandleFunc("GET /api/v1/pipeline", s.handleListPipelines)
	mux.HandleFunc("GET /api/v1/pipeline/{id}/status", s.handlePipelineStatus)
	mux.HandleFunc("POST /api/v1/pipeline/{id}/cancel", s.handleCancelPipeline)

	mux.HandleFunc("POST /api/v1/maps/upload", s.handleUploadMap)
	mux.HandleFunc("GET /api/v1/maps", s.handleListMaps)
	mux.HandleFunc("GET /api/v1/maps/bundle", s.handleMapBundle)
	mux.HandleFunc("DELETE /api/v1/maps", s.handleDeleteMap)

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.ready.CheckReadiness(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

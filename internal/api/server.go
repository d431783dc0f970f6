// Package api exposes the admin HTTP surface of the pipeline: health,
// warehouse status, and run triggering. The pipeline itself stays a batch
// process; this surface only observes and invokes it.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensource-finance/skua/internal/domain"
	"github.com/opensource-finance/skua/internal/pipeline"
)

// Server represents the admin HTTP server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new admin server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, runner *pipeline.Runner, version string) *Server {
	handler := NewHandler(repo, runner, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(RecoverMiddleware) // Recover from panics
	router.Use(TracingMiddleware) // OpenTelemetry tracing
	router.Use(LoggingMiddleware) // Request logging
	router.Use(middleware.RealIP) // Extract real IP

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Pipeline endpoints
	router.Get("/status", handler.Status)
	router.Post("/runs", handler.TriggerRun)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start begins listening for HTTP requests. Blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router (useful for testing).
func (s *Server) Router() *chi.Mux {
	return s.router
}

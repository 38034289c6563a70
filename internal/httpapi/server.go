// Package httpapi exposes the REST admission surface: callers upload a photo
// and block until the orchestrator delivers the single correlated response.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeffasante/photo-mood/internal/config"
	"github.com/jeffasante/photo-mood/internal/fanin"
	"github.com/jeffasante/photo-mood/internal/logging"
)

// Orchestrator is the part of the correlation service the API depends on.
type Orchestrator interface {
	Submit(ctx context.Context, fileName string, payload []byte, hook fanin.CompletionFunc) (string, error)
	Abort(id string) bool
	InFlight() int
	IsRunning() bool
	TransportName() string
}

// Server is the HTTP API server.
type Server struct {
	config    *config.Config
	orch      Orchestrator
	logger    logging.ServiceLogger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance.
func New(conf *config.Config, orch Orchestrator, logger logging.ServiceLogger) *Server {
	return &Server{
		config:    conf,
		orch:      orch,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:        s.config.HTTPAddress,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Write timeout must cover a full request deadline plus response
		// encoding, or the partial-result path gets cut off mid-write.
		WriteTimeout: s.config.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", logging.LogFields{"listen": s.config.HTTPAddress})

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Routes
	r.Post("/api/enrich", s.handleEnrich)
	r.Get("/healthz", s.handleHealthz)
	if s.config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request", logging.LogFields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}

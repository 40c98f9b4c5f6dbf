// Package server exposes a read-only JSON API over a running scheduler and
// the run journal.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/gocoro/internal/journal"
	"github.com/me/gocoro/internal/logging"
	"github.com/me/gocoro/pkg/coro"
)

// SnapshotSource publishes scheduler snapshots that are safe to read from
// any goroutine. *driver.Loop implements it.
type SnapshotSource interface {
	Snapshot() coro.Snapshot
}

// Server is the gocoro status API server.
type Server struct {
	router      chi.Router
	logger      *slog.Logger
	startTime   time.Time
	store       journal.Store  // optional; /runs endpoints answer 503 without it
	source      SnapshotSource // optional; /scheduler answers 503 without it
	runID       string         // run currently being driven, if any
	sseInterval time.Duration
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithStore sets the journal backing the /runs endpoints.
func WithStore(st journal.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

// WithSnapshotSource sets the live scheduler view and the ID of the run it belongs to.
func WithSnapshotSource(src SnapshotSource, runID string) Option {
	return func(s *Server) {
		s.source = src
		s.runID = runID
	}
}

// WithSSEInterval sets how often the scheduler stream pushes snapshots.
func WithSSEInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.sseInterval = d
		}
	}
}

// New creates a new Server with all routes registered.
func New(logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		logger:      logging.Component(logger, "server"),
		startTime:   time.Now(),
		sseInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)
		r.Get("/scheduler", s.handleScheduler)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
		})

		r.Route("/sse", func(r chi.Router) {
			r.Get("/scheduler", s.handleSSEScheduler)
		})
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

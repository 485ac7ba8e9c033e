// Package server exposes health, readiness, run status and Prometheus
// metrics over HTTP while a harvest runs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
	"github.com/JakeFAU/sitemap-article-harvester/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// RunStatus reports the state and live counters of the current run.
type RunStatus interface {
	Status() (string, harvest.RunSummary)
}

// Server wires HTTP handlers to the active run.
type Server struct {
	router chi.Router
	logger *zap.Logger

	mu     sync.RWMutex
	status RunStatus
}

// New constructs a Server with middleware and routes.
func New(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(requestMetrics)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/v1/run", s.run)

	s.router = r
	return s
}

// Attach sets the run whose status is served.
func (s *Server) Attach(status RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe binds addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Listen binds addr so a bad or busy address fails before any work starts.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("http server listen: %w", err)
	}
	return ln, nil
}

// Serve serves on ln until ctx is done, then shuts down. It closes ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) current() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz reports ready while a run is admitting or draining work.
func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	status := s.current()
	if status == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no run"})
		return
	}
	state, _ := status.Status()
	switch state {
	case "running", "draining":
		writeJSON(w, http.StatusOK, map[string]string{"status": state})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": state})
	}
}

func (s *Server) run(w http.ResponseWriter, _ *http.Request) {
	status := s.current()
	if status == nil {
		writeError(w, http.StatusNotFound, "no run attached")
		return
	}
	state, summary := status.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   state,
		"summary": summary,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

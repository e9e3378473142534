// Package ops runs the operational HTTP listener: health checks, the
// active-games page, and prometheus metrics. It is separate from the game
// socket and enabled only when an address is configured.
package ops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/spectate"
)

// Router builds the ops routes.
//
// Parameters:
//   - games: The spectator snapshot cache backing /games
//   - log: The logger for handler failures
//
// Returns:
//   - The configured router
func Router(games spectate.Cache, log logger.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	r.Get("/games", func(w http.ResponseWriter, req *http.Request) {
		snapshots, err := games.Games(req.Context())
		if err != nil {
			log.Error("listing games", logger.Field{Key: "error", Value: err})
			http.Error(w, "failed to list games", http.StatusInternalServerError)
			return
		}

		page, err := spectate.RenderHTML(snapshots)
		if err != nil {
			log.Error("rendering games page", logger.Field{Key: "error", Value: err})
			http.Error(w, "failed to render games", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Server serves the ops routes on its own listener.
type Server struct {
	Logger   logger.Logger
	Addr     string
	Games    spectate.Cache
	Listener net.Listener
	Running  atomic.Bool

	httpServer *http.Server
}

// Start binds the ops address and serves in a goroutine. It is safe to call
// only when the server is not already running.
//
// Returns:
//   - An error if the server is already running or if listening fails
func (s *Server) Start() error {
	if s.Running.Load() {
		s.Logger.Error("ops server already running")
		return errors.New("ops server already running")
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("ops server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("ops server failed to start: %w", err)
	}

	s.Listener = ln
	s.httpServer = &http.Server{Handler: Router(s.Games, s.Logger)}
	s.Running.Store(true)

	s.Logger.Info("ops server started", logger.Field{Key: "addr", Value: ln.Addr().String()})
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error("ops server serve error", logger.Field{Key: "error", Value: err})
		}
	}()

	return nil
}

// Shutdown stops the ops server gracefully. Safe to call when the server is
// not running.
//
// Parameters:
//   - ctx: Bounds how long in-flight requests may take to finish
func (s *Server) Shutdown(ctx context.Context) {
	if !s.Running.Load() {
		return
	}

	s.Running.Store(false)
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Warn("ops server shutdown", logger.Field{Key: "error", Value: err})
	}

	s.Logger.Info("ops server stopped")
}

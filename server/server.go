// Package server accepts wordduel connections over tcp or a unix socket and
// runs one session goroutine per connection: a password handshake followed by
// a drain/read/execute loop against the shared registry and broadcast bus.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/wordduel/broadcast"
	"github.com/cyberinferno/wordduel/command"
	"github.com/cyberinferno/wordduel/game"
	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/metrics"
	"github.com/cyberinferno/wordduel/registry"
	"github.com/cyberinferno/wordduel/spectate"
)

const (
	// DefaultReadTimeout bounds each socket read so the session loop stays
	// responsive to bus events.
	DefaultReadTimeout = 200 * time.Millisecond
	// DefaultLoopDelay is the pause between session loop iterations.
	DefaultLoopDelay = 20 * time.Millisecond
)

// Server accepts connections and delegates each one to a session. Sessions
// are stored by their bus subscription id and torn down either by themselves
// or by Stop. The server runs its accept loop in a goroutine and supports
// graceful stop.
type Server struct {
	Logger     logger.Logger
	Name       string
	Transport  string
	Endpoint   string
	Registry   *registry.Registry
	Bus        *broadcast.Bus
	Interp     *command.Interpreter
	Spectators spectate.Cache
	Listener   net.Listener
	Running    atomic.Bool

	// ReadTimeout and LoopDelay fall back to the package defaults when
	// left zero.
	ReadTimeout time.Duration
	LoopDelay   time.Duration

	sessions sessionTable
}

// Start binds the configured endpoint and begins the accept loop in a
// goroutine. It is safe to call only when the server is not already running.
//
// Returns:
//   - An error if the server is already running or if listening fails
func (s *Server) Start() error {
	if s.Running.Load() {
		s.Logger.Error("server already running")
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := s.listen()
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.Listener = ln
	s.Running.Store(true)

	s.Logger.Info(fmt.Sprintf("%s server started", s.Name),
		logger.Field{Key: "transport", Value: s.Transport},
		logger.Field{Key: "addr", Value: ln.Addr().String()})
	go s.AcceptLoop()

	return nil
}

// listen resolves the transport and endpoint into a bound listener. Bare tcp
// ports bind loopback; bare unix socket names live under /tmp, and a stale
// socket file from a previous run is removed before binding.
func (s *Server) listen() (net.Listener, error) {
	switch s.Transport {
	case "", "tcp":
		addr := s.Endpoint
		if !strings.Contains(addr, ":") {
			addr = "127.0.0.1:" + addr
		}

		return net.Listen("tcp", addr)
	case "unix":
		path := s.Endpoint
		if !strings.ContainsRune(path, '/') {
			path = "/tmp/" + path
		}

		_ = os.Remove(path)

		return net.Listen("unix", path)
	default:
		return nil, fmt.Errorf("unsupported transport %q", s.Transport)
	}
}

// Stop stops the server: it sets Running to false, closes the listener, and
// closes all active sessions, which unblocks their reads and lets them tear
// down. Safe to call when the server is not running.
func (s *Server) Stop() {
	if !s.Running.Load() {
		s.Logger.Info(fmt.Sprintf("%s server not running", s.Name))
		return
	}

	s.Running.Store(false)
	if s.Listener != nil {
		_ = s.Listener.Close()
	}

	s.sessions.rangeAll(func(_ uint64, sess *session) bool {
		_ = sess.Close()
		return true
	})

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}

// AcceptLoop runs in a goroutine and accepts incoming connections. Each
// connection is subscribed to the broadcast bus, stored by its subscription
// id, and handled in a new goroutine. It exits when the server is stopped.
func (s *Server) AcceptLoop() {
	for s.Running.Load() {
		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name),
				logger.Field{Key: "error", Value: err})
			continue
		}

		metrics.ConnectionsAccepted.Inc()
		sess := s.newSession(conn)
		s.sessions.store(sess.subID, sess)
		go sess.Handle()
	}
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	return s.sessions.len()
}

// snapshotGames returns the active games for the debug page, through the
// spectator cache when one is configured and straight from the registry
// otherwise.
func (s *Server) snapshotGames() []game.Snapshot {
	if s.Spectators != nil {
		games, err := s.Spectators.Games(context.Background())
		if err == nil {
			return games
		}

		s.Logger.Warn("snapshot cache unavailable", logger.Field{Key: "error", Value: err})
	}

	return s.Registry.Snapshot()
}

func (s *Server) readTimeout() time.Duration {
	if s.ReadTimeout > 0 {
		return s.ReadTimeout
	}

	return DefaultReadTimeout
}

func (s *Server) loopDelay() time.Duration {
	if s.LoopDelay > 0 {
		return s.LoopDelay
	}

	return DefaultLoopDelay
}

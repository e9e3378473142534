package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/wordduel/broadcast"
	"github.com/cyberinferno/wordduel/command"
	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/metrics"
	"github.com/cyberinferno/wordduel/wire"
)

// readBufferSize bounds a single read; one read is one frame, so payloads
// larger than the buffer minus the header are rejected as overruns.
const readBufferSize = 4096

// session owns one accepted connection. Only its own goroutine reads the
// socket; envelopes from the bus are drained and filtered by the same loop.
type session struct {
	server *Server
	conn   net.Conn
	subID  uint64
	events <-chan broadcast.Envelope

	// userID is zero until the handshake succeeds.
	userID  uint64
	readBuf []byte
	writeMu sync.Mutex
	closed  atomic.Bool
}

func (s *Server) newSession(conn net.Conn) *session {
	subID, events := s.Bus.Subscribe()
	return &session{
		server:  s,
		conn:    conn,
		subID:   subID,
		events:  events,
		readBuf: make([]byte, readBufferSize),
	}
}

// Handle runs the session to completion: password handshake, then the main
// drain/read/execute loop. It always tears the session down on exit.
func (s *session) Handle() {
	metrics.ActiveSessions.Inc()
	defer s.teardown()

	if !s.handshake() {
		return
	}

	s.loop()
}

// handshake reads frames until a chat frame carries the correct password.
// The reply is a command frame "ID <n>" with the assigned user id. A wrong
// password or any non-chat frame ends the session with a command-frame error.
func (s *session) handshake() bool {
	for {
		// A subscriber exists from accept time, so keep its buffer
		// empty while the peer is still unauthenticated.
		if !s.drainEvents() {
			return false
		}

		msg, ok, err := s.readFrame()
		if err != nil {
			return false
		}

		if !ok {
			time.Sleep(s.server.loopDelay())
			continue
		}

		if msg.Type != wire.Chat {
			metrics.HandshakeFailures.Inc()
			_ = s.send(wire.NewCommand("ERROR command incorrect"))
			return false
		}

		if !s.server.Registry.ValidatePassword(msg.Text()) {
			metrics.HandshakeFailures.Inc()
			_ = s.send(wire.NewCommand("ERROR password incorrect"))
			return false
		}

		// Assign before replying so teardown removes the user even if
		// the reply write fails.
		s.userID = s.server.Registry.AddUser()
		if err := s.send(wire.NewCommand(fmt.Sprintf("ID %d", s.userID))); err != nil {
			return false
		}

		s.server.Logger.Info("user authenticated",
			logger.Field{Key: "user", Value: s.userID})
		return true
	}
}

// loop is the authenticated session loop: deliver pending bus envelopes,
// poll the socket for one frame, execute it, sleep briefly.
func (s *session) loop() {
	for {
		if !s.drainEvents() {
			return
		}

		msg, ok, err := s.readFrame()
		if err != nil {
			return
		}

		if ok {
			if err := s.execute(msg); err != nil {
				return
			}
		}

		time.Sleep(s.server.loopDelay())
	}
}

// drainEvents empties the bus subscription without blocking, forwarding the
// envelopes addressed to this session's user. It returns false when the
// subscription channel is closed, which means the bus pruned this session.
func (s *session) drainEvents() bool {
	for {
		select {
		case env, ok := <-s.events:
			if !ok {
				s.server.Logger.Warn("subscription closed",
					logger.Field{Key: "user", Value: s.userID})
				return false
			}

			if env.RecipientID != s.userID {
				continue
			}

			if err := s.send(env.Message); err != nil {
				return false
			}
		default:
			return true
		}
	}
}

// readFrame polls the socket for one frame. ok is false when the read timed
// out, when the bytes were an HTTP probe, or when the frame was malformed;
// in all three cases the session keeps running. A returned error means the
// peer is gone.
func (s *session) readFrame() (msg wire.Message, ok bool, err error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.server.readTimeout())); err != nil {
		return wire.Message{}, false, fmt.Errorf("setting read deadline: %w", err)
	}

	n, err := s.conn.Read(s.readBuf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return wire.Message{}, false, nil
		}

		return wire.Message{}, false, err
	}

	if n == 0 {
		return wire.Message{}, false, io.EOF
	}

	raw := s.readBuf[:n]
	if isHTTPProbe(raw) {
		s.serveDebugPage()
		return wire.Message{}, false, nil
	}

	msg, err = wire.Decode(raw)
	if err != nil {
		metrics.FramesRejected.Inc()
		s.server.Logger.Warn("rejected malformed frame",
			logger.Field{Key: "user", Value: s.userID},
			logger.Field{Key: "error", Value: err})
		if err := s.send(wire.NewCommand("ERROR malformed frame")); err != nil {
			return wire.Message{}, false, err
		}

		return wire.Message{}, false, nil
	}

	return msg, true, nil
}

// execute parses and runs one frame. A nil return keeps the session alive;
// an error ends it.
func (s *session) execute(msg wire.Message) error {
	cmd, err := command.Parse(msg)
	if err != nil {
		metrics.FramesRejected.Inc()
		return s.send(wire.NewCommand("ERROR payload is not valid utf-8"))
	}

	reply, err := s.server.Interp.Execute(s.userID, cmd)
	if err != nil {
		cmdErr, ok := command.AsError(err)
		if !ok {
			return err
		}

		switch cmdErr.Kind {
		case command.KindRecoverable:
			return s.send(wire.NewCommand(cmdErr.Detail))
		case command.KindFatalThread:
			s.server.Logger.Error("dispatcher gone, closing session",
				logger.Field{Key: "user", Value: s.userID},
				logger.Field{Key: "error", Value: cmdErr})
			return cmdErr
		default:
			return cmdErr
		}
	}

	return s.send(reply)
}

// send encodes and writes one frame. Safe for concurrent use.
func (s *session) send(m wire.Message) error {
	frame, err := wire.Encode(m)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	return nil
}

// Close closes the underlying connection. Safe to call multiple times.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.conn.Close()
}

// teardown releases everything the session holds: its bus subscription, its
// registry user and any game that user was in, its table entry, and the
// connection itself.
func (s *session) teardown() {
	metrics.ActiveSessions.Dec()
	s.server.Bus.Unsubscribe(s.subID)
	if s.userID != 0 {
		s.server.Interp.Disconnect(s.userID)
	}

	s.server.sessions.delete(s.subID)
	_ = s.Close()
	s.server.Logger.Info("session closed",
		logger.Field{Key: "session", Value: s.subID},
		logger.Field{Key: "user", Value: s.userID})
}

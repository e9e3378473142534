// Package client implements the connection boundary used by the interactive
// terminal client: connecting over tcp or a unix socket, sending frames, and
// polling for incoming ones.
package client

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cyberinferno/wordduel/wire"
)

// DefaultReadTimeout is the deadline ReceiveNonblocking waits for before
// reporting that nothing arrived. It is the client's poll granularity.
const DefaultReadTimeout = 50 * time.Millisecond

// readBufferSize matches the server's read buffer; one read is one frame.
const readBufferSize = 4096

// Conn is an established connection to a wordduel server.
type Conn struct {
	conn        net.Conn
	readTimeout time.Duration
	readBuf     []byte
}

// Connect dials a wordduel server.
//
// Parameters:
//   - transport: "tcp" or "unix"
//   - endpoint: port or host:port for tcp; socket name or path for unix.
//     Bare ports dial 127.0.0.1, bare socket names live under /tmp
//
// Returns:
//   - The connection, or an error if the dial fails
func Connect(transport, endpoint string) (*Conn, error) {
	network, addr, err := resolve(transport, endpoint)
	if err != nil {
		return nil, err
	}

	c, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s %s: %w", network, addr, err)
	}

	return &Conn{
		conn:        c,
		readTimeout: DefaultReadTimeout,
		readBuf:     make([]byte, readBufferSize),
	}, nil
}

func resolve(transport, endpoint string) (network string, addr string, err error) {
	switch transport {
	case "", "tcp":
		addr = endpoint
		if !strings.Contains(addr, ":") {
			addr = "127.0.0.1:" + addr
		}

		return "tcp", addr, nil
	case "unix":
		addr = endpoint
		if !strings.ContainsRune(addr, '/') {
			addr = "/tmp/" + addr
		}

		return "unix", addr, nil
	default:
		return "", "", fmt.Errorf("unsupported transport %q", transport)
	}
}

// Send writes one frame to the server.
//
// Parameters:
//   - m: The message to send
//
// Returns:
//   - An error if encoding or the write fails
func (c *Conn) Send(m wire.Message) error {
	frame, err := wire.Encode(m)
	if err != nil {
		return err
	}

	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	return nil
}

// ReceiveNonblocking polls for one incoming frame. It waits at most the read
// timeout; ok is false when nothing arrived in that window.
//
// Returns:
//   - The decoded message and ok true when a frame arrived
//   - ok false when the window elapsed with no data
//   - An error when the connection is gone or the frame is malformed
func (c *Conn) ReceiveNonblocking() (msg wire.Message, ok bool, err error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return wire.Message{}, false, fmt.Errorf("setting read deadline: %w", err)
	}

	n, err := c.conn.Read(c.readBuf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return wire.Message{}, false, nil
		}

		return wire.Message{}, false, fmt.Errorf("reading from server: %w", err)
	}

	msg, err = wire.Decode(c.readBuf[:n])
	if err != nil {
		return wire.Message{}, false, fmt.Errorf("decoding frame: %w", err)
	}

	return msg, true, nil
}

// SetReadTimeout adjusts the poll window used by ReceiveNonblocking.
//
// Parameters:
//   - d: The new window; values of zero or less are ignored
func (c *Conn) SetReadTimeout(d time.Duration) {
	if d > 0 {
		c.readTimeout = d
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

package client

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/wordduel/wire"
)

func TestResolve(t *testing.T) {
	t.Run("bare tcp port dials loopback", func(t *testing.T) {
		network, addr, err := resolve("tcp", "8080")
		require.NoError(t, err)
		assert.Equal(t, "tcp", network)
		assert.Equal(t, "127.0.0.1:8080", addr)
	})

	t.Run("tcp host and port pass through", func(t *testing.T) {
		network, addr, err := resolve("tcp", "10.0.0.5:9000")
		require.NoError(t, err)
		assert.Equal(t, "tcp", network)
		assert.Equal(t, "10.0.0.5:9000", addr)
	})

	t.Run("empty transport defaults to tcp", func(t *testing.T) {
		network, _, err := resolve("", "8080")
		require.NoError(t, err)
		assert.Equal(t, "tcp", network)
	})

	t.Run("bare unix name lives under tmp", func(t *testing.T) {
		network, addr, err := resolve("unix", "wordduel.sock")
		require.NoError(t, err)
		assert.Equal(t, "unix", network)
		assert.Equal(t, "/tmp/wordduel.sock", addr)
	})

	t.Run("unix path passes through", func(t *testing.T) {
		_, addr, err := resolve("unix", "/var/run/wordduel.sock")
		require.NoError(t, err)
		assert.Equal(t, "/var/run/wordduel.sock", addr)
	})

	t.Run("unknown transport is rejected", func(t *testing.T) {
		_, _, err := resolve("udp", "8080")
		require.Error(t, err)
	})
}

func TestConnSendReceive(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	received := make(chan wire.Message, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			return
		}
		received <- msg

		frame, err := wire.Encode(wire.NewCommand("ID 1"))
		if err != nil {
			return
		}
		_, _ = conn.Write(frame)
	}()

	c, err := Connect("tcp", l.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(wire.NewChat("dota2")))

	select {
	case msg := <-received:
		assert.Equal(t, wire.Chat, msg.Type)
		assert.Equal(t, "dota2", msg.Text())
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the frame")
	}

	msg := awaitMessage(t, c)
	assert.Equal(t, wire.Command, msg.Type)
	assert.Equal(t, "ID 1", msg.Text())
}

func TestConnReceiveNonblocking(t *testing.T) {
	t.Run("reports nothing pending without blocking", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		go func() {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			defer conn.Close()

			buf := make([]byte, 16)
			_, _ = conn.Read(buf)
		}()

		c, err := Connect("tcp", l.Addr().String())
		require.NoError(t, err)
		defer c.Close()

		start := time.Now()
		_, ok, err := c.ReceiveNonblocking()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("reports closed connections", func(t *testing.T) {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer l.Close()

		go func() {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}()

		c, err := Connect("tcp", l.Addr().String())
		require.NoError(t, err)
		defer c.Close()

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if _, _, err = c.ReceiveNonblocking(); err != nil {
				break
			}
		}
		require.Error(t, err)
	})
}

func TestConnectUnix(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "wordduel.sock")

	l, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer l.Close()

	echoed := make(chan struct{})
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write(buf[:n])
		close(echoed)
	}()

	c, err := Connect("unix", sock)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(wire.NewChat("hello")))

	msg := awaitMessage(t, c)
	assert.Equal(t, wire.Chat, msg.Type)
	assert.Equal(t, "hello", msg.Text())

	select {
	case <-echoed:
	case <-time.After(2 * time.Second):
		t.Fatal("listener never echoed")
	}
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect("tcp", "127.0.0.1:1")
	require.Error(t, err)
}

// awaitMessage polls the connection until a frame arrives or a deadline
// passes.
func awaitMessage(t *testing.T, c *Conn) wire.Message {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		msg, ok, err := c.ReceiveNonblocking()
		require.NoError(t, err)
		if ok {
			return msg
		}
	}

	t.Fatal("no frame arrived before the deadline")
	return wire.Message{}
}

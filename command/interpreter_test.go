package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/registry"
	"github.com/cyberinferno/wordduel/wire"
)

// postRecorder captures routed side-messages instead of a real dispatcher.
type postRecorder struct {
	recipients []uint64
	messages   []wire.Message
	err        error
}

func (p *postRecorder) post(recipientID uint64, m wire.Message) error {
	if p.err != nil {
		return p.err
	}

	p.recipients = append(p.recipients, recipientID)
	p.messages = append(p.messages, m)
	return nil
}

func newTestInterpreter() (*Interpreter, *registry.Registry, *postRecorder) {
	rec := &postRecorder{}
	reg := registry.New("pw")
	return NewInterpreter(reg, rec.post, logger.NewNop()), reg, rec
}

func requireKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	cmdErr, ok := AsError(err)
	require.True(t, ok, "expected a command error, got %v", err)
	require.Equal(t, kind, cmdErr.Kind)
	return cmdErr
}

func TestInterpreter_Heartbeat(t *testing.T) {
	interp, reg, rec := newTestInterpreter()
	id := reg.AddUser()

	reply, err := interp.Execute(id, Command{Op: OpHeartbeat})
	require.NoError(t, err)
	assert.Equal(t, wire.Chat, reply.Type)
	assert.Equal(t, "OK Heartbeat received", reply.Text())
	assert.Empty(t, rec.messages)
}

func TestInterpreter_Unknown(t *testing.T) {
	interp, reg, _ := newTestInterpreter()
	id := reg.AddUser()

	reply, err := interp.Execute(id, Command{Op: OpUnknown})
	require.NoError(t, err)
	assert.Equal(t, "Unknown command received", reply.Text())
}

func TestInterpreter_Chat(t *testing.T) {
	interp, reg, rec := newTestInterpreter()
	id := reg.AddUser()

	reply, err := interp.Execute(id, Command{Op: OpChat, Args: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Message hello sent", reply.Text())
	assert.Empty(t, rec.messages)
}

func TestInterpreter_Drop(t *testing.T) {
	interp, reg, _ := newTestInterpreter()
	id := reg.AddUser()

	_, err := interp.Execute(id, Command{Op: OpDrop})
	cmdErr := requireKind(t, err, KindFatalUser)
	assert.Contains(t, cmdErr.Detail, "dropped")
}

func TestInterpreter_DirectMessage(t *testing.T) {
	t.Run("relays the full remainder", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		sender := reg.AddUser()
		receiver := reg.AddUser()

		reply, err := interp.Execute(sender, Command{Op: OpDirectMessage, Args: "2 hello there friend"})
		require.NoError(t, err)
		assert.Equal(t, "OK Sent 'hello there friend' to ID 2", reply.Text())

		require.Len(t, rec.messages, 1)
		assert.Equal(t, receiver, rec.recipients[0])
		assert.Equal(t, wire.Chat, rec.messages[0].Type)
		assert.Equal(t, "hello there friend", rec.messages[0].Text())
	})

	t.Run("missing message text", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		sender := reg.AddUser()

		_, err := interp.Execute(sender, Command{Op: OpDirectMessage, Args: "2"})
		requireKind(t, err, KindRecoverable)
		assert.Empty(t, rec.messages)
	})

	t.Run("empty arguments", func(t *testing.T) {
		interp, reg, _ := newTestInterpreter()
		sender := reg.AddUser()

		_, err := interp.Execute(sender, Command{Op: OpDirectMessage, Args: ""})
		requireKind(t, err, KindRecoverable)
	})

	t.Run("unparseable id", func(t *testing.T) {
		interp, reg, _ := newTestInterpreter()
		sender := reg.AddUser()

		_, err := interp.Execute(sender, Command{Op: OpDirectMessage, Args: "bob hello"})
		cmdErr := requireKind(t, err, KindRecoverable)
		assert.Contains(t, cmdErr.Detail, "must start with a valid ID")
	})

	t.Run("dead dispatcher is fatal", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		sender := reg.AddUser()
		rec.err = assert.AnError

		_, err := interp.Execute(sender, Command{Op: OpDirectMessage, Args: "2 hi"})
		requireKind(t, err, KindFatalThread)
	})
}

func TestInterpreter_Hint(t *testing.T) {
	t.Run("host sends a hint", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		reply, err := interp.Execute(host, Command{Op: OpHint, Args: "it is yellow"})
		require.NoError(t, err)
		assert.Equal(t, "Hint sent", reply.Text())

		require.Len(t, rec.messages, 1)
		assert.Equal(t, opp, rec.recipients[0])
		assert.Equal(t, "HINT it is yellow", rec.messages[0].Text())
	})

	t.Run("opponent cannot hint", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		_, err = interp.Execute(opp, Command{Op: OpHint, Args: "sneaky"})
		cmdErr := requireKind(t, err, KindRecoverable)
		assert.Contains(t, cmdErr.Detail, "no game")
		assert.Empty(t, rec.messages)
	})
}

func TestInterpreter_Guess(t *testing.T) {
	t.Run("wrong guess reports attempts left to both sides", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		reply, err := interp.Execute(opp, Command{Op: OpGuess, Args: "apple"})
		require.NoError(t, err)
		assert.Equal(t, wire.Chat, reply.Type)
		assert.Equal(t, "OK GUESS apple IS INCORRECT, 2 ATTEMPTS LEFT", reply.Text())

		require.Len(t, rec.messages, 1)
		assert.Equal(t, host, rec.recipients[0])
		assert.Equal(t, "Guess apple IS INCORRECT, 2 ATTEMPTS LEFT", rec.messages[0].Text())
	})

	t.Run("correct guess is victory for the opponent and defeat for the host", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		reply, err := interp.Execute(opp, Command{Op: OpGuess, Args: "banana"})
		require.NoError(t, err)
		assert.Equal(t, wire.Command, reply.Type)
		assert.Equal(t, "VICTORY", reply.Text())

		require.Len(t, rec.messages, 1)
		assert.Equal(t, host, rec.recipients[0])
		assert.Equal(t, wire.Command, rec.messages[0].Type)
		assert.Equal(t, "DEFEAT", rec.messages[0].Text())
		assert.Empty(t, reg.Snapshot())
	})

	t.Run("third wrong guess is defeat and the game is gone", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		for _, word := range []string{"apple", "pear"} {
			_, err := interp.Execute(opp, Command{Op: OpGuess, Args: word})
			require.NoError(t, err)
		}

		reply, err := interp.Execute(opp, Command{Op: OpGuess, Args: "plum"})
		require.NoError(t, err)
		assert.Equal(t, wire.Command, reply.Type)
		assert.Equal(t, "DEFEAT", reply.Text())

		last := rec.messages[len(rec.messages)-1]
		assert.Equal(t, wire.Command, last.Type)
		assert.Equal(t, "VICTORY", last.Text())
		assert.Empty(t, reg.Snapshot())
	})

	t.Run("guessing with no game", func(t *testing.T) {
		interp, reg, _ := newTestInterpreter()
		id := reg.AddUser()

		_, err := interp.Execute(id, Command{Op: OpGuess, Args: "banana"})
		cmdErr := requireKind(t, err, KindRecoverable)
		assert.Contains(t, cmdErr.Detail, "CANCELED")
	})
}

func TestInterpreter_StartGame(t *testing.T) {
	t.Run("acknowledges the host and notifies the target", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()

		reply, err := interp.Execute(host, Command{Op: OpStartGame, Args: "2 banana"})
		require.NoError(t, err)
		assert.Equal(t, wire.Command, reply.Type)
		assert.Equal(t, "REQUESTACK", reply.Text())

		require.Len(t, rec.messages, 1)
		assert.Equal(t, opp, rec.recipients[0])
		assert.Equal(t, wire.Command, rec.messages[0].Type)
		assert.Equal(t, "REQUESTEDGAME", rec.messages[0].Text())

		_, ok := reg.GameFor(host)
		assert.True(t, ok)
	})

	t.Run("wrong argument count", func(t *testing.T) {
		interp, reg, _ := newTestInterpreter()
		host := reg.AddUser()

		_, err := interp.Execute(host, Command{Op: OpStartGame, Args: "2"})
		requireKind(t, err, KindRecoverable)

		_, err = interp.Execute(host, Command{Op: OpStartGame, Args: "2 banana extra"})
		requireKind(t, err, KindRecoverable)
	})

	t.Run("unparseable opponent id", func(t *testing.T) {
		interp, reg, _ := newTestInterpreter()
		host := reg.AddUser()

		_, err := interp.Execute(host, Command{Op: OpStartGame, Args: "bob banana"})
		cmdErr := requireKind(t, err, KindRecoverable)
		assert.Contains(t, cmdErr.Detail, "valid ID")
	})

	t.Run("registry rejections come back as errors", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()

		_, err := interp.Execute(host, Command{Op: OpStartGame, Args: "1 banana"})
		cmdErr := requireKind(t, err, KindRecoverable)
		assert.Contains(t, cmdErr.Detail, "ERROR")

		_, err = interp.Execute(host, Command{Op: OpStartGame, Args: "42 banana"})
		requireKind(t, err, KindRecoverable)
		assert.Empty(t, rec.messages)
	})
}

func TestInterpreter_Cancel(t *testing.T) {
	t.Run("either participant cancels toward the other", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		reply, err := interp.Execute(opp, Command{Op: OpCancel})
		require.NoError(t, err)
		assert.Equal(t, wire.Command, reply.Type)
		assert.Equal(t, "CANCELED", reply.Text())

		require.Len(t, rec.messages, 1)
		assert.Equal(t, host, rec.recipients[0])
		assert.Equal(t, "MATCH CANCELED", rec.messages[0].Text())
		assert.Empty(t, reg.Snapshot())
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		interp, reg, _ := newTestInterpreter()
		id := reg.AddUser()

		_, err := interp.Execute(id, Command{Op: OpCancel})
		cmdErr := requireKind(t, err, KindRecoverable)
		assert.Contains(t, cmdErr.Detail, "doesn't participate")
	})
}

func TestInterpreter_Request(t *testing.T) {
	interp, reg, _ := newTestInterpreter()
	reg.AddUser()
	self := reg.AddUser()
	reg.AddUser()

	reply, err := interp.Execute(self, Command{Op: OpRequest})
	require.NoError(t, err)
	assert.Equal(t, wire.Chat, reply.Type)
	assert.Equal(t, "OPPONENT LIST [1 3]", reply.Text())
}

func TestInterpreter_Disconnect(t *testing.T) {
	t.Run("cancels the game and notifies the other side", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		host := reg.AddUser()
		opp := reg.AddUser()
		_, err := reg.StartGame(host, opp, "banana")
		require.NoError(t, err)

		interp.Disconnect(host)

		assert.False(t, reg.UserExists(host))
		assert.Empty(t, reg.Snapshot())
		require.Len(t, rec.messages, 1)
		assert.Equal(t, opp, rec.recipients[0])
		assert.Equal(t, "MATCH CANCELED", rec.messages[0].Text())
	})

	t.Run("no game means no notice", func(t *testing.T) {
		interp, reg, rec := newTestInterpreter()
		id := reg.AddUser()

		interp.Disconnect(id)
		assert.False(t, reg.UserExists(id))
		assert.Empty(t, rec.messages)
	})

	t.Run("already gone is fine", func(t *testing.T) {
		interp, _, rec := newTestInterpreter()
		interp.Disconnect(42)
		assert.Empty(t, rec.messages)
	})
}

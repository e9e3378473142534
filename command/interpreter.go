package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cyberinferno/wordduel/game"
	"github.com/cyberinferno/wordduel/logger"
	"github.com/cyberinferno/wordduel/metrics"
	"github.com/cyberinferno/wordduel/registry"
	"github.com/cyberinferno/wordduel/wire"
)

// Kind classifies interpreter failures by how the session must react.
type Kind int

const (
	// KindRecoverable failures are replied to with a Command ERROR frame;
	// the session keeps running.
	KindRecoverable Kind = iota
	// KindFatalUser failures end the session and remove the user.
	KindFatalUser
	// KindFatalThread failures end the session without touching the user;
	// the teardown path cleans up.
	KindFatalThread
)

// Error is a typed interpreter failure. Detail doubles as the reply payload
// for recoverable failures.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}

	return e.Detail
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError unwraps err into an *Error, if it is one.
func AsError(err error) (*Error, bool) {
	var cmdErr *Error
	ok := errors.As(err, &cmdErr)
	return cmdErr, ok
}

func recoverable(detail string) *Error {
	return &Error{Kind: KindRecoverable, Detail: detail}
}

func fatalUser(detail string) *Error {
	return &Error{Kind: KindFatalUser, Detail: detail}
}

func fatalThread(detail string, err error) *Error {
	return &Error{Kind: KindFatalThread, Detail: detail, Err: err}
}

// PostFunc hands a routed side-message to the dispatcher. Implementations
// must be safe for concurrent use; a failure means the dispatcher is gone and
// the session cannot continue.
type PostFunc func(recipientID uint64, m wire.Message) error

// Interpreter executes parsed commands for connection sessions. One instance
// is shared by every session; all state lives in the registry.
type Interpreter struct {
	Logger   logger.Logger
	Registry *registry.Registry
	Post     PostFunc
}

// NewInterpreter wires an Interpreter to the shared registry and the
// dispatcher's post function.
//
// Parameters:
//   - reg: The shared session registry
//   - post: Typically broadcast.Dispatcher.Post wrapped into a PostFunc
//   - log: Logger for command activity
//
// Returns:
//   - The new Interpreter
func NewInterpreter(reg *registry.Registry, post PostFunc, log logger.Logger) *Interpreter {
	return &Interpreter{
		Logger:   log,
		Registry: reg,
		Post:     post,
	}
}

// Execute runs one command on behalf of the acting user and returns the reply
// to send back on the same connection.
//
// Parameters:
//   - localID: The acting user's id
//   - cmd: The parsed command
//
// Returns:
//   - The reply message, or an *Error whose Kind tells the session how to
//     react
func (i *Interpreter) Execute(localID uint64, cmd Command) (wire.Message, error) {
	metrics.CommandsExecuted.WithLabelValues(cmd.Op.String()).Inc()

	switch cmd.Op {
	case OpHeartbeat:
		i.Logger.Info("heartbeat received", logger.Field{Key: "user", Value: localID})
		return wire.NewChat("OK Heartbeat received"), nil
	case OpDrop:
		return wire.Message{}, fatalUser(fmt.Sprintf("user %d dropped", localID))
	case OpDirectMessage:
		return i.directMessage(localID, cmd.Args)
	case OpChat:
		return wire.NewChat(fmt.Sprintf("Message %s sent", cmd.Args)), nil
	case OpHint:
		return i.hint(localID, cmd.Args)
	case OpGuess:
		return i.guess(localID, cmd.Args)
	case OpStartGame:
		return i.startGame(localID, cmd.Args)
	case OpCancel:
		return i.cancel(localID)
	case OpRequest:
		return i.request(localID)
	default:
		i.Logger.Warn("unknown command received", logger.Field{Key: "user", Value: localID})
		return wire.NewChat("Unknown command received"), nil
	}
}

// Disconnect cleans up after a session ends for any reason: the user is
// removed and any game they participated in is canceled, with the other
// participant notified. Safe to call for users that are already gone.
//
// Parameters:
//   - localID: The departing user's id
func (i *Interpreter) Disconnect(localID uint64) {
	other, hadGame, err := i.Registry.DropParticipant(localID)
	if err != nil {
		return
	}

	i.Logger.Info("user dropped", logger.Field{Key: "user", Value: localID})
	if hadGame {
		// Best effort: the dispatcher may already be stopped during
		// shutdown.
		_ = i.Post(other, wire.NewChat("MATCH CANCELED"))
	}
}

func (i *Interpreter) directMessage(localID uint64, args string) (wire.Message, error) {
	idToken, text, _ := strings.Cut(strings.TrimSpace(args), " ")
	text = strings.TrimSpace(text)
	if idToken == "" || text == "" {
		return wire.Message{}, recoverable("ERROR Direct message must include a recipient id and a message")
	}

	recipient, err := strconv.ParseUint(idToken, 10, 64)
	if err != nil {
		return wire.Message{}, recoverable(fmt.Sprintf("ERROR Direct message must start with a valid ID: %v", err))
	}

	if err := i.Post(recipient, wire.NewChat(text)); err != nil {
		return wire.Message{}, fatalThread("posting direct message", err)
	}

	i.Logger.Debug("direct message relayed",
		logger.Field{Key: "from", Value: localID},
		logger.Field{Key: "to", Value: recipient})
	return wire.NewChat(fmt.Sprintf("OK Sent '%s' to ID %d", text, recipient)), nil
}

func (i *Interpreter) hint(localID uint64, args string) (wire.Message, error) {
	opponentID, err := i.Registry.HintByHost(localID, args)
	if err != nil {
		return wire.Message{}, recoverable(fmt.Sprintf("ERROR no game with id %d found", localID))
	}

	if err := i.Post(opponentID, wire.NewChat("HINT "+args)); err != nil {
		return wire.Message{}, fatalThread("posting hint", err)
	}

	return wire.NewChat("Hint sent"), nil
}

func (i *Interpreter) guess(localID uint64, args string) (wire.Message, error) {
	out, err := i.Registry.GuessByOpponent(localID, args)
	if err != nil {
		return wire.Message{}, recoverable(fmt.Sprintf(
			"CANCELED Game where local player ID %d is trying to guess, does not exist. cancelling match", localID))
	}

	switch out.State {
	case game.Victory:
		if err := i.Post(out.HostID, wire.NewCommand("DEFEAT")); err != nil {
			return wire.Message{}, fatalThread("posting guess result", err)
		}

		i.Logger.Info("game won",
			logger.Field{Key: "opponent", Value: localID},
			logger.Field{Key: "host", Value: out.HostID})
		return wire.NewCommand("VICTORY"), nil
	case game.Defeat:
		if err := i.Post(out.HostID, wire.NewCommand("VICTORY")); err != nil {
			return wire.Message{}, fatalThread("posting guess result", err)
		}

		i.Logger.Info("game lost",
			logger.Field{Key: "opponent", Value: localID},
			logger.Field{Key: "host", Value: out.HostID})
		return wire.NewCommand("DEFEAT"), nil
	default:
		note := fmt.Sprintf("Guess %s IS INCORRECT, %d ATTEMPTS LEFT", args, out.AttemptsLeft)
		if err := i.Post(out.HostID, wire.NewChat(note)); err != nil {
			return wire.Message{}, fatalThread("posting guess result", err)
		}

		return wire.NewChat(fmt.Sprintf("OK GUESS %s IS INCORRECT, %d ATTEMPTS LEFT", args, out.AttemptsLeft)), nil
	}
}

func (i *Interpreter) startGame(localID uint64, args string) (wire.Message, error) {
	tokens := strings.Fields(args)
	if len(tokens) != 2 {
		return wire.Message{}, recoverable("ERROR STARTGAME must have exactly 2 arguments")
	}

	opponentID, err := strconv.ParseUint(tokens[0], 10, 64)
	if err != nil {
		return wire.Message{}, recoverable(fmt.Sprintf("ERROR STARTGAME must start with a valid ID: %v", err))
	}

	if _, err := i.Registry.StartGame(localID, opponentID, tokens[1]); err != nil {
		return wire.Message{}, recoverable(fmt.Sprintf("ERROR %v", err))
	}

	if err := i.Post(opponentID, wire.NewCommand("REQUESTEDGAME")); err != nil {
		return wire.Message{}, fatalThread("posting game request", err)
	}

	i.Logger.Info("game started",
		logger.Field{Key: "host", Value: localID},
		logger.Field{Key: "opponent", Value: opponentID})
	return wire.NewCommand("REQUESTACK"), nil
}

func (i *Interpreter) cancel(localID uint64) (wire.Message, error) {
	other, err := i.Registry.CancelParticipant(localID)
	if err != nil {
		return wire.Message{}, recoverable(fmt.Sprintf("user %d doesn't participate in a game, cannot terminate", localID))
	}

	if err := i.Post(other, wire.NewChat("MATCH CANCELED")); err != nil {
		return wire.Message{}, fatalThread("posting cancellation", err)
	}

	i.Logger.Info("game canceled",
		logger.Field{Key: "user", Value: localID},
		logger.Field{Key: "other", Value: other})
	return wire.NewCommand("CANCELED"), nil
}

func (i *Interpreter) request(localID uint64) (wire.Message, error) {
	ids, ok := i.Registry.Opponents(localID)
	if !ok {
		return wire.Message{}, recoverable("ERROR No opponents found")
	}

	return wire.NewChat(fmt.Sprintf("OPPONENT LIST %v", ids)), nil
}

// Package command interprets decoded frames as server commands and executes
// them against the session registry, posting routed side-messages through the
// dispatcher.
package command

import (
	"fmt"
	"unicode/utf8"

	"github.com/cyberinferno/wordduel/wire"
)

// Op identifies a server command.
type Op int

const (
	// OpUnknown is any command frame whose name is not recognized, and any
	// frame with an unrecognized type tag.
	OpUnknown Op = iota
	// OpHeartbeat is a keep-alive ping.
	OpHeartbeat
	// OpDrop asks the server to disconnect the acting user.
	OpDrop
	// OpDirectMessage relays text to another user by id.
	OpDirectMessage
	// OpChat is a plain chat frame, acknowledged but not routed.
	OpChat
	// OpHint records a hint for the acting user's opponent.
	OpHint
	// OpGuess applies a guess to the game the acting user plays in.
	OpGuess
	// OpStartGame starts a game against another user.
	OpStartGame
	// OpCancel cancels the game the acting user participates in.
	OpCancel
	// OpRequest lists the connected users the acting user could challenge.
	OpRequest
)

// String returns the wire name of the command.
func (o Op) String() string {
	switch o {
	case OpHeartbeat:
		return "HEARTBEAT"
	case OpDrop:
		return "DROP"
	case OpDirectMessage:
		return "DM"
	case OpChat:
		return "CHAT"
	case OpHint:
		return "HINT"
	case OpGuess:
		return "GUESS"
	case OpStartGame:
		return "STARTGAME"
	case OpCancel:
		return "CANCEL"
	case OpRequest:
		return "REQUEST"
	default:
		return "UNKNOWN"
	}
}

// Command is one parsed client request: the operation and its raw argument
// string, everything after the first space of the payload.
type Command struct {
	Op   Op
	Args string
}

// Parse turns a decoded frame into a Command. Command frames are split into a
// case-insensitive name and arguments; Chat frames become OpChat with the
// whole payload as arguments; frames with an unrecognized tag become
// OpUnknown.
//
// Returns:
//   - The parsed command, or an error when the payload is not valid UTF-8
func Parse(m wire.Message) (Command, error) {
	switch m.Type {
	case wire.Command:
		name, args, err := wire.SplitCommand(m.Payload)
		if err != nil {
			return Command{}, fmt.Errorf("parsing command frame: %w", err)
		}

		return Command{Op: opFromName(name), Args: args}, nil
	case wire.Chat:
		if !utf8.Valid(m.Payload) {
			return Command{}, fmt.Errorf("parsing chat frame: %w", wire.ErrInvalidUTF8)
		}

		return Command{Op: OpChat, Args: string(m.Payload)}, nil
	default:
		return Command{Op: OpUnknown}, nil
	}
}

func opFromName(name string) Op {
	switch name {
	case "HEARTBEAT":
		return OpHeartbeat
	case "DROP":
		return OpDrop
	case "DM":
		return OpDirectMessage
	case "HINT":
		return OpHint
	case "GUESS":
		return OpGuess
	case "STARTGAME":
		return OpStartGame
	case "CANCEL":
		return OpCancel
	case "REQUEST":
		return OpRequest
	default:
		return OpUnknown
	}
}

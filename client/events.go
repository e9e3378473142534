package client

import (
	"strconv"
	"strings"

	"github.com/cyberinferno/wordduel/wire"
)

// EventKind classifies what a server frame means to the client.
type EventKind int

const (
	// EventUnknown is a frame the client does not recognise.
	EventUnknown EventKind = iota
	// EventID carries the local player id assigned after the handshake.
	EventID
	// EventError carries an error reply to something the client sent.
	EventError
	// EventChat is a chat line relayed by the server.
	EventChat
	// EventRequestAck confirms an opponent list request was received.
	EventRequestAck
	// EventRequestedGame tells a player a game involving them started.
	EventRequestedGame
	// EventVictory ends a game in the guesser's favour.
	EventVictory
	// EventDefeat ends a game with the guesser out of attempts.
	EventDefeat
	// EventCanceled ends a game without a result.
	EventCanceled
)

// Event is a decoded server frame.
type Event struct {
	Kind EventKind
	// ID is set for EventID.
	ID uint64
	// Text carries the payload for kinds that have one.
	Text string
}

// ParseEvent classifies a server frame.
//
// Command frames are keyed on their first token; chat frames become chat
// events. Anything else, including command verbs the client does not know,
// is EventUnknown with the raw text preserved.
//
// Parameters:
//   - m: The decoded frame
//
// Returns:
//   - The classified event
func ParseEvent(m wire.Message) Event {
	switch m.Type {
	case wire.Command:
		name, args, err := wire.SplitCommand(m.Payload)
		if err != nil {
			return Event{Kind: EventUnknown, Text: m.Text()}
		}

		switch name {
		case "ID":
			id, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
			if err != nil {
				return Event{Kind: EventUnknown, Text: m.Text()}
			}

			return Event{Kind: EventID, ID: id}
		case "ERROR":
			return Event{Kind: EventError, Text: args}
		case "REQUESTACK":
			return Event{Kind: EventRequestAck}
		case "REQUESTEDGAME":
			return Event{Kind: EventRequestedGame}
		case "VICTORY":
			return Event{Kind: EventVictory}
		case "DEFEAT":
			return Event{Kind: EventDefeat}
		case "CANCELED":
			return Event{Kind: EventCanceled}
		default:
			return Event{Kind: EventUnknown, Text: m.Text()}
		}
	case wire.Chat:
		return Event{Kind: EventChat, Text: m.Text()}
	default:
		return Event{Kind: EventUnknown, Text: m.Text()}
	}
}

// Package wire implements the binary framing used between wordduel clients and
// servers: a 2-byte big-endian payload length, a 1-byte message type tag, and
// the payload itself.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MessageType is the 1-byte tag carried by every frame.
type MessageType byte

const (
	// Unknown marks frames whose tag the peer does not understand.
	Unknown MessageType = 0
	// Command marks frames whose payload is a server command.
	Command MessageType = 1
	// Chat marks frames whose payload is free text.
	Chat MessageType = 2
)

// String returns a human-readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case Command:
		return "Command"
	case Chat:
		return "Chat"
	default:
		return "Unknown"
	}
}

const (
	// HeaderSize is the number of bytes before the payload: 2 length bytes
	// and 1 type byte.
	HeaderSize = 3
	// MaxPayloadSize is the largest payload a frame can carry; the length
	// field is an unsigned 16-bit integer.
	MaxPayloadSize = 65535
)

var (
	// ErrPayloadTooLarge is returned by Encode when the payload does not fit
	// the 16-bit length field.
	ErrPayloadTooLarge = errors.New("payload exceeds maximum frame size")
	// ErrFrameOverrun is returned by Decode when the declared length reaches
	// past the end of the buffer.
	ErrFrameOverrun = errors.New("frame length exceeds buffer")
	// ErrInvalidUTF8 is returned by SplitCommand when the payload is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("payload is not valid utf-8")
)

// Message is one decoded frame.
type Message struct {
	Type    MessageType
	Payload []byte
}

// NewCommand builds a Command message carrying the given text.
func NewCommand(text string) Message {
	return Message{Type: Command, Payload: []byte(text)}
}

// NewChat builds a Chat message carrying the given text.
func NewChat(text string) Message {
	return Message{Type: Chat, Payload: []byte(text)}
}

// Text returns the payload as a string.
func (m Message) Text() string {
	return string(m.Payload)
}

// Encode serializes the message into a single frame ready to write to a
// socket.
//
// Returns:
//   - The encoded frame, or ErrPayloadTooLarge if the payload does not fit
//     the 16-bit length field
func Encode(m Message) ([]byte, error) {
	if len(m.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(m.Payload))
	}

	buf := make([]byte, HeaderSize+len(m.Payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(m.Payload)))
	buf[2] = byte(m.Type)
	copy(buf[HeaderSize:], m.Payload)
	return buf, nil
}

// Decode extracts one message from the start of buf. A buffer shorter than
// the header decodes to an Unknown message with an empty payload, as does a
// frame with an unrecognized type tag. A declared length that reaches past
// the end of buf is rejected with ErrFrameOverrun instead of being read out
// of bounds.
func Decode(buf []byte) (Message, error) {
	if len(buf) < HeaderSize {
		return Message{Type: Unknown}, nil
	}

	length := int(binary.BigEndian.Uint16(buf[0:2]))
	if HeaderSize+length > len(buf) {
		return Message{Type: Unknown}, fmt.Errorf("%w: declared %d, available %d",
			ErrFrameOverrun, length, len(buf)-HeaderSize)
	}

	var msgType MessageType
	switch buf[2] {
	case byte(Command):
		msgType = Command
	case byte(Chat):
		msgType = Chat
	default:
		msgType = Unknown
	}

	payload := make([]byte, length)
	copy(payload, buf[HeaderSize:HeaderSize+length])
	return Message{Type: msgType, Payload: payload}, nil
}

// SplitCommand splits a command payload at the first space byte: the part
// before it is the upper-cased command name, the part after it is the raw
// argument string. A payload without a space is all name and no arguments.
func SplitCommand(payload []byte) (name string, args string, err error) {
	rawName := payload
	var rawArgs []byte
	if idx := bytes.IndexByte(payload, ' '); idx >= 0 {
		rawName = payload[:idx]
		rawArgs = payload[idx+1:]
	}

	if !utf8.Valid(rawName) || !utf8.Valid(rawArgs) {
		return "", "", ErrInvalidUTF8
	}

	return strings.ToUpper(string(rawName)), string(rawArgs), nil
}

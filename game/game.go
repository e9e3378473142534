// Package game holds the state machine for a single word-guessing duel
// between a host, who knows the secret word, and an opponent, who guesses it.
package game

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a game.
type State int

const (
	// Ongoing means the opponent still has attempts left.
	Ongoing State = iota
	// Victory means the opponent guessed the secret word.
	Victory
	// Defeat means the opponent ran out of attempts.
	Defeat
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Ongoing:
		return "Ongoing"
	case Victory:
		return "Victory"
	case Defeat:
		return "Defeat"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StartingAttempts is the number of wrong guesses an opponent is allowed.
const StartingAttempts = 3

// ErrFinished is returned when a guess is applied to a game that already
// reached Victory or Defeat.
var ErrFinished = errors.New("game already finished")

// ID uniquely identifies a game. It is derived from the creation timestamp in
// nanoseconds concatenated with the opponent and host ids, which keeps it
// unique for practical purposes without any coordination.
type ID string

// Game is one duel. Fields are not synchronized; the registry guards all
// access with its own lock.
type Game struct {
	ID         ID
	HostID     uint64
	OpponentID uint64
	Secret     string
	Attempts   int
	LastGuess  string
	LastHint   string
	State      State
}

// New creates an ongoing game hosted by hostID with the given secret word for
// opponentID to guess.
func New(hostID, opponentID uint64, secret string) *Game {
	return &Game{
		ID:         newID(hostID, opponentID),
		HostID:     hostID,
		OpponentID: opponentID,
		Secret:     secret,
		Attempts:   StartingAttempts,
		State:      Ongoing,
	}
}

func newID(hostID, opponentID uint64) ID {
	return ID(fmt.Sprintf("%d%d%d", time.Now().UnixNano(), opponentID, hostID))
}

// Guess applies one guess and returns the resulting state. The comparison is
// case-insensitive. A correct guess moves the game to Victory; a wrong guess
// is recorded, costs one attempt, and moves the game to Defeat when no
// attempts remain.
func (g *Game) Guess(word string) (State, error) {
	if g.State != Ongoing {
		return g.State, fmt.Errorf("%w: state is %s", ErrFinished, g.State)
	}

	if strings.EqualFold(word, g.Secret) {
		g.State = Victory
		return g.State, nil
	}

	g.LastGuess = word
	g.Attempts--
	if g.Attempts <= 0 {
		g.State = Defeat
	}

	return g.State, nil
}

// SetHint records the latest hint from the host. It never changes the game
// state.
func (g *Game) SetHint(hint string) {
	g.LastHint = hint
}

// Snapshot is a read-only copy of a game for spectators. The secret word is
// deliberately left out.
type Snapshot struct {
	ID         ID     `json:"id"`
	HostID     uint64 `json:"host_id"`
	OpponentID uint64 `json:"opponent_id"`
	Attempts   int    `json:"attempts_left"`
	LastGuess  string `json:"last_guess"`
	LastHint   string `json:"last_hint"`
	State      string `json:"state"`
}

// Snapshot returns a spectator copy of the game.
func (g *Game) Snapshot() Snapshot {
	return Snapshot{
		ID:         g.ID,
		HostID:     g.HostID,
		OpponentID: g.OpponentID,
		Attempts:   g.Attempts,
		LastGuess:  g.LastGuess,
		LastHint:   g.LastHint,
		State:      g.State.String(),
	}
}

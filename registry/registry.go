// Package registry holds the authoritative server state: which users are
// connected, which games are running, and the shared password. A single
// reader/writer lock guards everything; compound operations that look up and
// mutate state run under one exclusive acquisition so no other connection can
// interleave.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/cyberinferno/wordduel/game"
)

var (
	// ErrUserNotFound is returned when an operation names a user that is not
	// connected.
	ErrUserNotFound = errors.New("user not found")
	// ErrGameNotFound is returned when an operation names a game that does
	// not exist, or a user who is not in the expected game role.
	ErrGameNotFound = errors.New("game not found")
	// ErrSelfOpponent is returned when a user tries to start a game against
	// themselves.
	ErrSelfOpponent = errors.New("cannot start a game against yourself")
	// ErrOpponentNotConnected is returned when a game is started against a
	// user that is not connected.
	ErrOpponentNotConnected = errors.New("opponent is not connected")
	// ErrAlreadyInGame is returned when a participant of the requested game
	// is already playing another one.
	ErrAlreadyInGame = errors.New("user is already in a game")
)

// Registry is the shared server state. One instance exists per process; every
// connection goroutine operates on it through the methods below, which take
// the internal lock for exactly the duration of the operation.
type Registry struct {
	mu       sync.RWMutex
	users    map[uint64]struct{}
	games    []*game.Game
	password string
}

// New creates an empty registry guarding the given shared password.
func New(password string) *Registry {
	return &Registry{
		users:    make(map[uint64]struct{}),
		password: password,
	}
}

// ValidatePassword reports whether candidate matches the shared password.
func (r *Registry) ValidatePassword(candidate string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return candidate == r.password
}

// AddUser registers a new user and returns its id. Ids are assigned as the
// highest id currently connected plus one, starting at 1; id 0 is reserved
// for connections that have not authenticated.
func (r *Registry) AddUser() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextIDLocked()
	r.users[id] = struct{}{}
	return id
}

func (r *Registry) nextIDLocked() uint64 {
	var highest uint64
	for id := range r.users {
		if id > highest {
			highest = id
		}
	}

	return highest + 1
}

// DropUser removes the user with the given id. Games the user participates in
// are untouched; callers that need game cleanup use DropParticipant instead.
//
// Returns:
//   - ErrUserNotFound if the id is not connected
func (r *Registry) DropUser(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}

	delete(r.users, id)
	return nil
}

// UserExists reports whether the user with the given id is connected.
func (r *Registry) UserExists(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// UserCount returns the number of connected users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Opponents returns the ids of all connected users except self, in ascending
// order. ok is false only when no users are connected at all; a lone user
// gets an empty list with ok true.
func (r *Registry) Opponents(self uint64) (ids []uint64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.users) == 0 {
		return nil, false
	}

	ids = make([]uint64, 0, len(r.users))
	for id := range r.users {
		if id != self {
			ids = append(ids, id)
		}
	}

	slices.Sort(ids)
	return ids, true
}

// StartGame creates an ongoing game hosted by hostID with the given secret.
// It fails when the opponent is the host, is not connected, or when either
// participant already has a game running.
//
// Returns:
//   - The id of the new game, or ErrSelfOpponent, ErrOpponentNotConnected,
//     or ErrAlreadyInGame
func (r *Registry) StartGame(hostID, opponentID uint64, secret string) (game.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if hostID == opponentID {
		return "", ErrSelfOpponent
	}

	if _, ok := r.users[opponentID]; !ok {
		return "", fmt.Errorf("%w: %d", ErrOpponentNotConnected, opponentID)
	}

	if _, g := r.findParticipantLocked(hostID); g != nil {
		return "", fmt.Errorf("%w: %d", ErrAlreadyInGame, hostID)
	}

	if _, g := r.findParticipantLocked(opponentID); g != nil {
		return "", fmt.Errorf("%w: %d", ErrAlreadyInGame, opponentID)
	}

	g := game.New(hostID, opponentID, secret)
	r.games = append(r.games, g)
	return g.ID, nil
}

// GameFor returns the id of the first game where the user is the host or the
// opponent.
func (r *Registry) GameFor(userID uint64) (game.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, g := r.findParticipantLocked(userID); g != nil {
		return g.ID, true
	}

	return "", false
}

// OpponentOfHost returns the opponent in the game hosted by hostID.
//
// Returns:
//   - ErrGameNotFound when the user hosts no game
func (r *Registry) OpponentOfHost(hostID uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.games {
		if g.HostID == hostID {
			return g.OpponentID, nil
		}
	}

	return 0, fmt.Errorf("%w: user %d does not host any game", ErrGameNotFound, hostID)
}

// HostOfOpponent returns the host of the game where opponentID is guessing.
//
// Returns:
//   - ErrGameNotFound when the user guesses in no game
func (r *Registry) HostOfOpponent(opponentID uint64) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.games {
		if g.OpponentID == opponentID {
			return g.HostID, nil
		}
	}

	return 0, fmt.Errorf("%w: user %d does not guess in any game", ErrGameNotFound, opponentID)
}

// ApplyGuess runs one guess against the given game. When the guess moves the
// game to a terminal state the game is removed from the registry.
//
// Returns:
//   - The state after the guess, or ErrGameNotFound when the game is gone
func (r *Registry) ApplyGuess(id game.ID, guess string) (game.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, g := r.findByIDLocked(id)
	if g == nil {
		return 0, fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}

	state, err := g.Guess(guess)
	if err != nil {
		return state, err
	}

	if state != game.Ongoing {
		r.removeGameLocked(idx)
	}

	return state, nil
}

// ApplyHint records a hint on the given game.
//
// Returns:
//   - ErrGameNotFound when the game is gone
func (r *Registry) ApplyHint(id game.ID, hint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, g := r.findByIDLocked(id)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}

	g.SetHint(hint)
	return nil
}

// TerminateGame removes the given game from the registry.
//
// Returns:
//   - ErrGameNotFound when the game is gone
func (r *Registry) TerminateGame(id game.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, g := r.findByIDLocked(id)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGameNotFound, id)
	}

	r.removeGameLocked(idx)
	return nil
}

// Snapshot returns spectator copies of every running game.
func (r *Registry) Snapshot() []game.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]game.Snapshot, 0, len(r.games))
	for _, g := range r.games {
		snaps = append(snaps, g.Snapshot())
	}

	return snaps
}

// GuessOutcome reports the result of one guess routed through a compound
// registry operation.
type GuessOutcome struct {
	// State is the game state after the guess was applied.
	State game.State
	// AttemptsLeft is the number of attempts remaining after the guess.
	AttemptsLeft int
	// HostID is the host of the game, for routing the mirrored result.
	HostID uint64
}

// GuessByOpponent finds the game where userID is the opponent and applies one
// guess, all under a single lock acquisition. Games that reach Victory or
// Defeat are removed before the lock is released.
//
// Returns:
//   - The outcome, or ErrGameNotFound when the user is not guessing in any
//     game
func (r *Registry) GuessByOpponent(userID uint64, guess string) (GuessOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx, g := range r.games {
		if g.OpponentID != userID {
			continue
		}

		state, err := g.Guess(guess)
		if err != nil {
			return GuessOutcome{}, err
		}

		outcome := GuessOutcome{
			State:        state,
			AttemptsLeft: g.Attempts,
			HostID:       g.HostID,
		}
		if state != game.Ongoing {
			r.removeGameLocked(idx)
		}

		return outcome, nil
	}

	return GuessOutcome{}, fmt.Errorf("%w: user %d does not guess in any game", ErrGameNotFound, userID)
}

// HintByHost finds the game hosted by userID and records the hint, under a
// single lock acquisition. Nothing is mutated when the user hosts no game.
//
// Returns:
//   - The opponent to route the hint to, or ErrGameNotFound
func (r *Registry) HintByHost(userID uint64, hint string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.games {
		if g.HostID == userID {
			g.SetHint(hint)
			return g.OpponentID, nil
		}
	}

	return 0, fmt.Errorf("%w: user %d does not host any game", ErrGameNotFound, userID)
}

// CancelParticipant removes the first game where userID participates, under a
// single lock acquisition.
//
// Returns:
//   - The other participant, for the cancellation notice, or ErrGameNotFound
func (r *Registry) CancelParticipant(userID uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	other, had := r.cancelParticipantLocked(userID)
	if !had {
		return 0, fmt.Errorf("%w: user %d does not participate in any game", ErrGameNotFound, userID)
	}

	return other, nil
}

// DropParticipant removes the user and cancels any game they participate in,
// all under a single lock acquisition so the user can never be observed
// half-removed.
//
// Returns:
//   - The other participant of the canceled game and hadGame true when a
//     game was canceled; ErrUserNotFound when the user is not connected
func (r *Registry) DropParticipant(userID uint64) (other uint64, hadGame bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return 0, false, fmt.Errorf("%w: %d", ErrUserNotFound, userID)
	}

	delete(r.users, userID)
	other, hadGame = r.cancelParticipantLocked(userID)
	return other, hadGame, nil
}

func (r *Registry) cancelParticipantLocked(userID uint64) (other uint64, hadGame bool) {
	idx, g := r.findParticipantLocked(userID)
	if g == nil {
		return 0, false
	}

	other = g.OpponentID
	if other == userID {
		other = g.HostID
	}

	r.removeGameLocked(idx)
	return other, true
}

func (r *Registry) findParticipantLocked(userID uint64) (int, *game.Game) {
	for idx, g := range r.games {
		if g.HostID == userID || g.OpponentID == userID {
			return idx, g
		}
	}

	return -1, nil
}

func (r *Registry) findByIDLocked(id game.ID) (int, *game.Game) {
	for idx, g := range r.games {
		if g.ID == id {
			return idx, g
		}
	}

	return -1, nil
}

func (r *Registry) removeGameLocked(idx int) {
	r.games = append(r.games[:idx], r.games[idx+1:]...)
}

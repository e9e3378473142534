// Package spectate serves read-only views of the active games: a TTL-cached
// snapshot feed for the debug page and the ops listener, with in-memory and
// Redis backends.
package spectate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cyberinferno/wordduel/game"
)

// snapshotKey is the single cache key the spectator snapshot lives under.
const snapshotKey = "wordduel:games"

// Source provides the authoritative list of active games. The registry
// satisfies it.
type Source interface {
	Snapshot() []game.Snapshot
}

// Cache is a TTL-cached view over a Source. Implementations must be safe for
// concurrent use; a cache miss fetches from the Source at most once per TTL
// window even under concurrent readers.
type Cache interface {
	// Games returns the active-game snapshot, cached or freshly fetched.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - The snapshot list, or an error if the backend fails
	Games(ctx context.Context) ([]game.Snapshot, error)

	// Invalidate drops the cached snapshot so the next Games call fetches.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - An error if the backend fails
	Invalidate(ctx context.Context) error
}

// NewCache selects a backend for the spectator snapshot: Redis when an
// address is configured, in-memory otherwise.
//
// Parameters:
//   - source: The snapshot provider, typically the registry
//   - redisAddr: Redis address, or empty for the in-memory backend
//   - ttl: How long a snapshot stays fresh
//
// Returns:
//   - The selected Cache
func NewCache(source Source, redisAddr string, ttl time.Duration) Cache {
	if redisAddr == "" {
		return NewMemory(source, ttl)
	}

	return NewRedis(redis.NewClient(&redis.Options{Addr: redisAddr}), source, ttl)
}

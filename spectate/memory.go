package spectate

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/cyberinferno/wordduel/game"
)

// MemoryCache is the in-memory Cache backend. It uses go-cache for storage
// and singleflight so concurrent misses hit the Source only once.
type MemoryCache struct {
	source Source
	ttl    time.Duration
	cache  *cache.Cache
	group  singleflight.Group
}

// NewMemory creates an in-memory snapshot cache with the given TTL.
//
// Parameters:
//   - source: The snapshot provider
//   - ttl: How long a snapshot stays fresh
//
// Returns:
//   - The new MemoryCache
func NewMemory(source Source, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		source: source,
		ttl:    ttl,
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Games implements Cache.
func (m *MemoryCache) Games(_ context.Context) ([]game.Snapshot, error) {
	if val, found := m.cache.Get(snapshotKey); found {
		if snaps, ok := val.([]game.Snapshot); ok {
			return snaps, nil
		}
	}

	val, err, _ := m.group.Do(snapshotKey, func() (interface{}, error) {
		// Double-check after acquiring the singleflight slot; another
		// goroutine may have populated the cache already.
		if cached, found := m.cache.Get(snapshotKey); found {
			if snaps, ok := cached.([]game.Snapshot); ok {
				return snaps, nil
			}
		}

		snaps := m.source.Snapshot()
		m.cache.Set(snapshotKey, snaps, m.ttl)
		return snaps, nil
	})
	if err != nil {
		return nil, err
	}

	snaps, ok := val.([]game.Snapshot)
	if !ok {
		return nil, fmt.Errorf("unexpected type cached for %s", snapshotKey)
	}

	return snaps, nil
}

// Invalidate implements Cache.
func (m *MemoryCache) Invalidate(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	m.cache.Delete(snapshotKey)
	return nil
}

package spectate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/cyberinferno/wordduel/game"
)

// RedisCache is the Redis-backed Cache. Snapshots are stored as JSON under a
// single key, so several server frontends can share one spectator view. The
// snapshot source lives in this process, so local singleflight is enough to
// keep concurrent misses from hammering the registry; no distributed lock is
// needed.
type RedisCache struct {
	source Source
	ttl    time.Duration
	client *redis.Client
	group  singleflight.Group
}

// NewRedis creates a Redis-backed snapshot cache with the given TTL.
//
// Parameters:
//   - client: The Redis client to store snapshots with
//   - source: The snapshot provider
//   - ttl: How long a snapshot stays fresh
//
// Returns:
//   - The new RedisCache
func NewRedis(client *redis.Client, source Source, ttl time.Duration) *RedisCache {
	return &RedisCache{
		source: source,
		ttl:    ttl,
		client: client,
	}
}

// Games implements Cache.
func (r *RedisCache) Games(ctx context.Context) ([]game.Snapshot, error) {
	val, err := r.client.Get(ctx, snapshotKey).Result()
	if err == nil {
		var snaps []game.Snapshot
		if err := json.Unmarshal([]byte(val), &snaps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
		}

		return snaps, nil
	}

	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	fetched, err, _ := r.group.Do(snapshotKey, func() (interface{}, error) {
		snaps := r.source.Snapshot()
		data, err := json.Marshal(snaps)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
		}

		if err := r.client.Set(ctx, snapshotKey, data, r.ttl).Err(); err != nil {
			return nil, fmt.Errorf("failed to cache snapshot: %w", err)
		}

		return snaps, nil
	})
	if err != nil {
		return nil, err
	}

	snaps, ok := fetched.([]game.Snapshot)
	if !ok {
		return nil, fmt.Errorf("unexpected type cached for %s", snapshotKey)
	}

	return snaps, nil
}

// Invalidate implements Cache.
func (r *RedisCache) Invalidate(ctx context.Context) error {
	if err := r.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to delete cached snapshot: %w", err)
	}

	return nil
}

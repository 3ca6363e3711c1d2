package inbox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a non-authoritative fast-path dedup check sitting in front of the
// Postgres unique constraint: a hit here saves a round trip to Store.Insert,
// but Store.Insert is still the ground truth (Redis can always be flushed).
type Cache interface {
	// Seen reports whether hashID was already marked, without marking it.
	Seen(ctx context.Context, hashID uint64) (bool, error)
	// Mark records hashID as seen for ttl.
	Mark(ctx context.Context, hashID uint64, ttl time.Duration) error
}

// RedisCache is a Cache backed by go-redis, adapted from the idempotency
// package's SetNX-based state tracker.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache returns a Cache using client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "inbox:"}
}

func (c *RedisCache) key(hashID uint64) string {
	return c.prefix + strconv.FormatUint(hashID, 36)
}

// Seen checks for a previously Mark-ed fingerprint.
func (c *RedisCache) Seen(ctx context.Context, hashID uint64) (bool, error) {
	_, err := c.client.Get(ctx, c.key(hashID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark records hashID so subsequent Seen calls return true until ttl
// elapses.
func (c *RedisCache) Mark(ctx context.Context, hashID uint64, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(hashID), "1", ttl).Err()
}

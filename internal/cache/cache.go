package cache

import (
	"context"
	"log"
	"time"

	"github.com/botblock/blocklist-api/internal/storage"
)

// Cache memoizes read-mostly responses for a bounded window. Writers
// never talk to it: entries simply age out, staleness up to the TTL is
// an accepted tradeoff.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Redis is the production cache. Any redis error degrades to a miss so
// callers fall through to the authoritative store.
type Redis struct {
	client *storage.RedisClient
}

func NewRedis(client *storage.RedisClient) *Redis {
	return &Redis{client: client}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key)
	if err != nil || val == "" {
		return nil, false
	}
	return []byte(val), true
}

func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl); err != nil {
		log.Printf("cache: failed to set %s: %v", key, err)
	}
}

// Disabled is a no-op cache for tests and cache-less deployments.
type Disabled struct{}

func (Disabled) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }

func (Disabled) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryCache is the in-process Cache used in tests and single-node
// deployments.
type MemoryCache struct {
	mu  sync.RWMutex
	ids map[string]bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{ids: make(map[string]bool)}
}

func (c *MemoryCache) Replace(_ context.Context, actionIDs []string) error {
	next := make(map[string]bool, len(actionIDs))
	for _, id := range actionIDs {
		next[id] = true
	}
	c.mu.Lock()
	c.ids = next
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Overdue(_ context.Context, actionID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ids[actionID], nil
}

func (c *MemoryCache) IDs(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.ids))
	for id := range c.ids {
		out = append(out, id)
	}
	return out, nil
}

// RedisCache shares the overdue set across nodes as a Redis set. The key
// expires at several sweep intervals so a dead sweeper does not leave a
// permanently stale set behind.
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisCache creates a cache on the given client. ttl should be a small
// multiple of the sweep interval.
func NewRedisCache(client *redis.Client, key string, ttl time.Duration) *RedisCache {
	if key == "" {
		key = "sentinel:overdue_actions"
	}
	return &RedisCache{client: client, key: key, ttl: ttl}
}

func (c *RedisCache) Replace(ctx context.Context, actionIDs []string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key)
	if len(actionIDs) > 0 {
		members := make([]any, len(actionIDs))
		for i, id := range actionIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, c.key, members...)
		if c.ttl > 0 {
			pipe.Expire(ctx, c.key, c.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) Overdue(ctx context.Context, actionID string) (bool, error) {
	return c.client.SIsMember(ctx, c.key, actionID).Result()
}

func (c *RedisCache) IDs(ctx context.Context) ([]string, error) {
	return c.client.SMembers(ctx, c.key).Result()
}

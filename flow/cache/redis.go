package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis implementation of flow.Cache, for deployments
// where multiple workers should share task results. Expiry is
// delegated to Redis TTLs.
type RedisCache struct {
	client *redis.Client
	prefix string
}

type redisEntry struct {
	Version string          `json:"version,omitempty"`
	Value   json.RawMessage `json:"value"`
}

// NewRedisCache creates a Redis-backed cache.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache := cache.NewRedisCache(client)
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "duraflow:cache:"}
}

// GetResult implements flow.Cache.
func (c *RedisCache) GetResult(ctx context.Context, taskID, version string) (json.RawMessage, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is a miss, not a failure.
		return nil, false, nil
	}
	if entry.Version != version {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// SetResult implements flow.Cache.
func (c *RedisCache) SetResult(ctx context.Context, taskID, version string, value json.RawMessage, ttl time.Duration) error {
	data, err := json.Marshal(redisEntry{Version: version, Value: value})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+taskID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Package cache provides task-result cache backends.
package cache

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value   json.RawMessage
	version string
	expires time.Time // zero means no expiry
}

// MemoryCache is an in-process LRU implementation of flow.Cache.
// Suited to single-process deployments; entries are lost on restart,
// which is safe because a cache miss just re-executes the task.
type MemoryCache struct {
	entries *lru.Cache[string, memoryEntry]
}

// NewMemoryCache creates an LRU cache holding up to size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries}, nil
}

// GetResult implements flow.Cache.
func (c *MemoryCache) GetResult(_ context.Context, taskID, version string) (json.RawMessage, bool, error) {
	entry, ok := c.entries.Get(taskID)
	if !ok {
		return nil, false, nil
	}
	if entry.version != version {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.entries.Remove(taskID)
		return nil, false, nil
	}
	return entry.value, true, nil
}

// SetResult implements flow.Cache.
func (c *MemoryCache) SetResult(_ context.Context, taskID, version string, value json.RawMessage, ttl time.Duration) error {
	entry := memoryEntry{value: value, version: version}
	if ttl > 0 {
		entry.expires = time.Now().Add(ttl)
	}
	c.entries.Add(taskID, entry)
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int { return c.entries.Len() }

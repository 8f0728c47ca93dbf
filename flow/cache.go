package flow

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the task-result cache consulted before live execution.
//
// Entries are keyed by the stable task id, so a cache hit is
// guaranteed to correspond to the same (name, input) pair. Each entry
// carries an optional version tag: a lookup with a different version
// misses, which is how task authors invalidate stale results after a
// behavior change. Eviction policy is backend-defined.
//
// Implementations must be safe for concurrent use.
//
// Implementations:
//   - cache.MemoryCache — in-process LRU
//   - cache.FileCache — files under the configured cache path
//   - cache.RedisCache — shared cache via Redis
type Cache interface {
	// GetResult returns the cached value for the task id when present
	// and version-compatible. The second return is false on a miss;
	// backend failures are reported as errors and treated as misses
	// by the task runtime.
	GetResult(ctx context.Context, taskID, version string) (json.RawMessage, bool, error)

	// SetResult stores a task result. A zero ttl means no expiry.
	SetResult(ctx context.Context, taskID, version string, value json.RawMessage, ttl time.Duration) error
}

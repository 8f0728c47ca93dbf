package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores cached task results as JSON files under a base
// directory, one file per task id. It survives restarts and is shared
// by processes on the same host.
type FileCache struct {
	dir string
}

type fileEntry struct {
	Version   string          `json:"version,omitempty"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// NewFileCache creates a file cache rooted at dir, creating it when
// missing.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// GetResult implements flow.Cache.
func (c *FileCache) GetResult(_ context.Context, taskID, version string) (json.RawMessage, bool, error) {
	data, err := os.ReadFile(c.path(taskID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is a miss, not a failure.
		return nil, false, nil
	}
	if entry.Version != version {
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		_ = os.Remove(c.path(taskID))
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// SetResult implements flow.Cache. The entry is written to a temp file
// and renamed so readers never observe a partial write.
func (c *FileCache) SetResult(_ context.Context, taskID, version string, value json.RawMessage, ttl time.Duration) error {
	entry := fileEntry{Version: version, Value: value}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(c.dir, ".cache-*")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(taskID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

// path maps a task id to a filesystem-safe file name.
func (c *FileCache) path(taskID string) string {
	sum := sha256.Sum256([]byte(taskID))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c, err := NewMemoryCache(16)
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}
	ctx := context.Background()

	if err := c.SetResult(ctx, "charge_ab", "v1", json.RawMessage(`{"ok":true}`), 0); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}

	value, hit, err := c.GetResult(ctx, "charge_ab", "v1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if !hit {
		t.Fatal("expected a cache hit")
	}
	if string(value) != `{"ok":true}` {
		t.Errorf("expected cached value, got %s", value)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c, err := NewMemoryCache(16)
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}

	_, hit, err := c.GetResult(context.Background(), "missing", "v1")
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if hit {
		t.Error("expected a miss for an unknown task id")
	}
}

// Bumping a task's version invalidates its cached result without
// touching the entry.
func TestMemoryCacheVersionMismatch(t *testing.T) {
	c, err := NewMemoryCache(16)
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}
	ctx := context.Background()

	if err := c.SetResult(ctx, "charge_ab", "v1", json.RawMessage(`1`), 0); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	if _, hit, _ := c.GetResult(ctx, "charge_ab", "v2"); hit {
		t.Error("version mismatch should miss")
	}
	if _, hit, _ := c.GetResult(ctx, "charge_ab", "v1"); !hit {
		t.Error("original version should still hit")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c, err := NewMemoryCache(16)
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}
	ctx := context.Background()

	if err := c.SetResult(ctx, "charge_ab", "v1", json.RawMessage(`1`), 10*time.Millisecond); err != nil {
		t.Fatalf("SetResult failed: %v", err)
	}
	if _, hit, _ := c.GetResult(ctx, "charge_ab", "v1"); !hit {
		t.Fatal("entry should be live before the TTL elapses")
	}

	time.Sleep(20 * time.Millisecond)
	if _, hit, _ := c.GetResult(ctx, "charge_ab", "v1"); hit {
		t.Error("entry should expire after the TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted, got %d entries", c.Len())
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	c, err := NewMemoryCache(2)
	if err != nil {
		t.Fatalf("NewMemoryCache failed: %v", err)
	}
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := c.SetResult(ctx, id, "v1", json.RawMessage(`1`), 0); err != nil {
			t.Fatalf("SetResult %s failed: %v", id, err)
		}
	}

	if _, hit, _ := c.GetResult(ctx, "a", "v1"); hit {
		t.Error("oldest entry should have been evicted")
	}
	if _, hit, _ := c.GetResult(ctx, "c", "v1"); !hit {
		t.Error("newest entry should survive")
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

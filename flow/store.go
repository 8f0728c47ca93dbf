package flow

import (
	"context"
	"encoding/json"
	"sync"
)

// ContextStore provides transactional persistence for execution
// contexts and their event lists.
//
// Save is an upsert with append-with-deduplication semantics: a new
// context is inserted with all of its events; an existing context has
// its output refreshed and gains only those events whose
// (source_id, type) pair is not already present. The composite key
// (execution_id, source_id, type) is the dedup primitive that makes
// replay idempotent — saving the same context twice leaves storage
// unchanged.
//
// Concurrent saves to the same execution id must be serialized by the
// implementation (a per-context lock or database transaction).
//
// Implementations:
//   - MemoryStore (this package) — development and tests
//   - store.SQLiteStore — single-file durability, WAL mode
//   - store.MySQLStore — shared relational durability
type ContextStore interface {
	// Save upserts the context and appends its missing events
	// atomically. On a constraint violation the transaction rolls
	// back and the error surfaces to the caller.
	Save(ctx context.Context, ec *ExecutionContext) error

	// Get loads a context by execution id. Returns
	// ErrContextNotFound when absent.
	Get(ctx context.Context, executionID string) (*ExecutionContext, error)
}

// MemoryStore is an in-memory ContextStore.
//
// Data is lost when the process exits; use the durable stores under
// flow/store for anything beyond tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	contexts map[string]*storedContext
}

type storedContext struct {
	name   string
	input  json.RawMessage
	output json.RawMessage
	events []ExecutionEvent
	seen   map[string]struct{} // "sourceID\x00type"
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: make(map[string]*storedContext)}
}

// Save implements ContextStore.
func (s *MemoryStore) Save(_ context.Context, ec *ExecutionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.contexts[ec.ExecutionID()]
	if !ok {
		rec = &storedContext{
			name: ec.Name(),
			seen: make(map[string]struct{}),
		}
		s.contexts[ec.ExecutionID()] = rec
	}
	// Input is rewritten by pause-with-input resumes, so it refreshes
	// on every save alongside output, matching the durable stores.
	rec.input = cloneRaw(ec.Input())
	rec.output = cloneRaw(ec.Output())
	for _, ev := range ec.Events() {
		key := ev.SourceID + "\x00" + string(ev.Type)
		if _, dup := rec.seen[key]; dup {
			continue
		}
		rec.seen[key] = struct{}{}
		rec.events = append(rec.events, ev)
	}
	return nil
}

// Get implements ContextStore.
func (s *MemoryStore) Get(_ context.Context, executionID string) (*ExecutionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.contexts[executionID]
	if !ok {
		return nil, ErrContextNotFound
	}
	events := make([]ExecutionEvent, len(rec.events))
	copy(events, rec.events)
	return RestoreExecutionContext(executionID, rec.name, cloneRaw(rec.input), events), nil
}

// Len returns the number of stored contexts.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

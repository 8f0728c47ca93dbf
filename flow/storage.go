package flow

import (
	"context"
	"encoding/json"
)

// OutputStorage is the indirection for stored task and workflow
// results. A result routed through a storage backend is persisted in
// the event log as a StorageRef instead of the literal value; the
// engine treats the two transparently and dereferences only when a
// consumer asks for the value.
//
// Implementations must be safe for concurrent use: parallel task
// branches store results simultaneously.
//
// Implementations:
//   - InlineStorage (this package) — the value itself, no indirection
//   - blob.LocalStorage — files under a base directory
//   - blob.S3Storage — S3 objects
type OutputStorage interface {
	// Store persists value under the logical key and returns the
	// payload to embed in the event log: the literal value for inline
	// storage, a tagged StorageRef otherwise.
	Store(ctx context.Context, key string, value json.RawMessage) (json.RawMessage, error)

	// Load resolves a payload previously produced by Store back to
	// the literal value.
	Load(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// StorageRef is the tagged reference shape embedded in event payloads
// for out-of-band results. The "$ref" tag distinguishes a reference
// from an inline value that happens to be an object.
type StorageRef struct {
	Ref      string            `json:"$ref"`
	Key      string            `json:"key"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ParseStorageRef decodes payload as a StorageRef. The second return
// is false when the payload is an inline value.
func ParseStorageRef(payload json.RawMessage) (StorageRef, bool) {
	var ref StorageRef
	if err := json.Unmarshal(payload, &ref); err != nil || ref.Ref == "" {
		return StorageRef{}, false
	}
	return ref, true
}

// InlineStorage stores values inline in the event log. It is the
// default when no output storage is configured.
type InlineStorage struct{}

// Store returns the value unchanged.
func (InlineStorage) Store(_ context.Context, _ string, value json.RawMessage) (json.RawMessage, error) {
	return value, nil
}

// Load returns the payload unchanged.
func (InlineStorage) Load(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return payload, nil
}

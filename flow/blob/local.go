// Package blob provides out-of-band OutputStorage backends. Large task
// and workflow results live in the backend; the event log carries only
// a tagged reference.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/duraflow-go/flow"
)

// Serializer names for LocalStorage files.
const (
	SerializerJSON   = "json"
	SerializerBinary = "binary"
)

// LocalStorage implements flow.OutputStorage over files beneath a base
// directory. One file per result key; the event log carries a "local"
// reference with the file path and encoding in its metadata.
type LocalStorage struct {
	dir        string
	serializer string
}

// NewLocalStorage creates a local storage rooted at dir, creating it
// when missing. serializer selects the file encoding: SerializerJSON
// writes the payload verbatim, SerializerBinary gob-encodes it.
func NewLocalStorage(dir, serializer string) (*LocalStorage, error) {
	switch serializer {
	case SerializerJSON, SerializerBinary:
	case "":
		serializer = SerializerJSON
	default:
		return nil, fmt.Errorf("unknown serializer %q (want json or binary)", serializer)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{dir: dir, serializer: serializer}, nil
}

// Store implements flow.OutputStorage.
func (s *LocalStorage) Store(_ context.Context, key string, value json.RawMessage) (json.RawMessage, error) {
	data, err := s.encode(value)
	if err != nil {
		return nil, err
	}
	path := s.path(key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write stored result: %w", err)
	}
	ref := flow.StorageRef{
		Ref: "local",
		Key: key,
		Metadata: map[string]string{
			"path":       path,
			"serializer": s.serializer,
		},
	}
	return json.Marshal(ref)
}

// Load implements flow.OutputStorage. Inline payloads pass through
// unchanged. The reference's recorded serializer wins over the store's
// current one, so a storage reconfigured from json to binary still
// reads its old files.
func (s *LocalStorage) Load(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	ref, ok := flow.ParseStorageRef(payload)
	if !ok {
		return payload, nil
	}
	path := ref.Metadata["path"]
	if path == "" {
		path = s.path(ref.Key)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stored result %s: %w", ref.Key, err)
	}
	serializer := ref.Metadata["serializer"]
	if serializer == "" {
		serializer = s.serializer
	}
	return decode(serializer, data)
}

func (s *LocalStorage) encode(value json.RawMessage) ([]byte, error) {
	if s.serializer != SerializerBinary {
		return value, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode([]byte(value)); err != nil {
		return nil, fmt.Errorf("encode stored result: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(serializer string, data []byte) (json.RawMessage, error) {
	if serializer != SerializerBinary {
		return data, nil
	}
	var raw []byte
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode stored result: %w", err)
	}
	return raw, nil
}

// path maps a result key to a filesystem-safe file name.
func (s *LocalStorage) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	ext := ".json"
	if s.serializer == SerializerBinary {
		ext = ".bin"
	}
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+ext)
}

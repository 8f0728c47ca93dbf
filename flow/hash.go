package flow

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// TaskID computes the stable invocation id for a task call:
//
//	<name>_<first 16 hex chars of sha256(name || canonical JSON input)>
//
// The id must be identical across restarts and across machines for the
// same (name, input) pair — it is the dedup and replay key, so any
// instability here breaks replay. Canonical JSON guarantees stability:
// object keys are emitted in sorted order regardless of map iteration
// or field declaration order, which is the Go rendition of hashing the
// sorted keyword-argument tuple.
//
// Two calls with the same name and an identical input share an id and
// therefore replay as a single invocation. Tasks invoked repeatedly
// with identical inputs inside one workflow should carry the
// distinguishing datum (an index, a key) in their input.
func TaskID(name string, input any) (string, error) {
	canon, err := canonicalJSON(input)
	if err != nil {
		return "", fmt.Errorf("hash task input: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(canon)
	return name + "_" + hex.EncodeToString(h.Sum(nil))[:16], nil
}

// canonicalJSON renders v as JSON with all object keys sorted.
//
// encoding/json already sorts map keys, but struct fields marshal in
// declaration order; round-tripping through any normalizes both forms
// so renaming-neutral refactors (field reordering) do not shift ids.
// Numbers decode as json.Number, not float64: an int64 beyond 2^53
// would otherwise collide with its neighbors and merge distinct
// invocations into one id.
func canonicalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return marshalCanonical(generic)
}

func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		return append(out, '}'), nil
	case []any:
		out := []byte{'['}
		for i, item := range val {
			if i > 0 {
				out = append(out, ',')
			}
			vb, err := marshalCanonical(item)
			if err != nil {
				return nil, err
			}
			out = append(out, vb...)
		}
		return append(out, ']'), nil
	case json.Number:
		return []byte(val), nil
	default:
		return json.Marshal(val)
	}
}

// workflowSourceID builds the workflow-level source id
// "<name>_<execution_id>".
func workflowSourceID(name, executionID string) string {
	return name + "_" + executionID
}

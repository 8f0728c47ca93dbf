package flow

import (
	"context"
	"fmt"
)

// SecretManager provides keyed fetch of opaque secrets. Secret values
// are injected into task invocations at execution time and are never
// written to the event log: a replayed task is served its recorded
// output, so secrets are only ever needed on live execution.
//
// Implementations must be safe for concurrent use.
//
// Implementations:
//   - StaticSecrets (this package) — fixed map, tests and embedding
//   - secrets.EnvManager — environment variables
//   - secrets.EncryptedFileManager — AES-GCM vault on disk
type SecretManager interface {
	// GetSecret returns the secret for name, or an error when the
	// secret is unknown.
	GetSecret(ctx context.Context, name string) (string, error)
}

// StaticSecrets is a SecretManager over a fixed map. The map is read
// only after construction, so no locking is needed.
type StaticSecrets map[string]string

// GetSecret implements SecretManager.
func (s StaticSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", fmt.Errorf("secret %q not found", name)
	}
	return v, nil
}

// Secrets is the bundle of resolved secret values handed to a task
// body, keyed by request name.
type Secrets map[string]string

// Get returns the secret for name, empty when absent.
func (s Secrets) Get(name string) string { return s[name] }

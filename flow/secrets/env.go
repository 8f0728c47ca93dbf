// Package secrets provides SecretManager backends.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvManager resolves secrets from environment variables, optionally
// under a prefix: with prefix "DURAFLOW_SECRET_", the secret
// "api_key" reads DURAFLOW_SECRET_API_KEY.
type EnvManager struct {
	prefix string
}

// NewEnvManager creates an environment-backed secret manager.
func NewEnvManager(prefix string) *EnvManager {
	return &EnvManager{prefix: prefix}
}

// GetSecret implements flow.SecretManager.
func (m *EnvManager) GetSecret(_ context.Context, name string) (string, error) {
	key := m.prefix + strings.ToUpper(name)
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret %q not found (env %s unset)", name, key)
	}
	return v, nil
}

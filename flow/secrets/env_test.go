package secrets

import (
	"context"
	"testing"
)

func TestEnvManagerLookup(t *testing.T) {
	t.Setenv("DURAFLOW_SECRET_API_KEY", "sk-test")

	m := NewEnvManager("DURAFLOW_SECRET_")
	got, err := m.GetSecret(context.Background(), "api_key")
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if got != "sk-test" {
		t.Errorf("expected sk-test, got %q", got)
	}
}

func TestEnvManagerNoPrefix(t *testing.T) {
	t.Setenv("DB_PASSWORD", "hunter2")

	m := NewEnvManager("")
	got, err := m.GetSecret(context.Background(), "db_password")
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("expected hunter2, got %q", got)
	}
}

func TestEnvManagerMissing(t *testing.T) {
	m := NewEnvManager("DURAFLOW_SECRET_")
	_, err := m.GetSecret(context.Background(), "definitely_not_set")
	if err == nil {
		t.Fatal("expected an error for a missing secret")
	}
}

// An empty value is still a value; only an unset variable is an error.
func TestEnvManagerEmptyValue(t *testing.T) {
	t.Setenv("DURAFLOW_SECRET_EMPTY", "")

	m := NewEnvManager("DURAFLOW_SECRET_")
	got, err := m.GetSecret(context.Background(), "empty")
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

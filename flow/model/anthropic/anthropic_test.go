package anthropic

import "testing"

func TestNewChatModel(t *testing.T) {
	t.Run("creates model with API key", func(t *testing.T) {
		m := NewChatModel("test-api-key", "claude-sonnet-4-5-20250929")
		if m == nil {
			t.Fatal("expected non-nil model")
		}
		if m.defaultModel != "claude-sonnet-4-5-20250929" {
			t.Errorf("expected explicit model name, got %q", m.defaultModel)
		}
	})

	t.Run("empty model name uses package default", func(t *testing.T) {
		m := NewChatModel("test-api-key", "")
		if m.defaultModel != defaultModel {
			t.Errorf("expected %q, got %q", defaultModel, m.defaultModel)
		}
	})
}

package google

import (
	"context"
	"testing"

	"github.com/dshills/duraflow-go/flow/model"
)

func TestNewChatModel(t *testing.T) {
	t.Run("creates model with API key", func(t *testing.T) {
		m := NewChatModel("test-api-key", "gemini-2.5-pro")
		if m == nil {
			t.Fatal("expected non-nil model")
		}
		if m.defaultModel != "gemini-2.5-pro" {
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

func TestChatRequiresAPIKey(t *testing.T) {
	m := NewChatModel("", "")
	_, err := m.Chat(context.Background(), model.ChatRequest{
		Messages: []model.Message{{Role: model.RoleUser, Content: "hello"}},
	})
	if err == nil {
		t.Fatal("expected error for empty API key")
	}
}

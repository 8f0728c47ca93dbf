// Package model provides LLM chat adapters and the durable task
// wrapper that makes their calls replayable.
package model

import "context"

// Message is one turn of an LLM conversation.
type Message struct {
	// Role is one of the Role* constants.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Standard role constants, aligned with the conventions of the major
// providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest is a provider-neutral chat completion request. All
// fields are JSON-serializable, which is what lets a request double as
// a durable task input.
type ChatRequest struct {
	// Messages is the conversation history.
	Messages []Message `json:"messages"`

	// Model overrides the adapter's default model name.
	Model string `json:"model,omitempty"`

	// MaxTokens bounds the completion length. Zero uses the adapter
	// default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness. Zero means provider
	// default.
	Temperature float64 `json:"temperature,omitempty"`
}

// ChatOut is a provider-neutral chat completion result.
type ChatOut struct {
	// Text is the generated response.
	Text string `json:"text"`

	// Model is the model that produced the response.
	Model string `json:"model,omitempty"`

	// InputTokens and OutputTokens report usage when the provider
	// supplies it.
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
}

// ChatModel is the provider abstraction. Implementations handle
// authentication, request translation, and response parsing, and must
// respect context cancellation.
//
// Implementations:
//   - anthropic.ChatModel — Claude models
//   - openai.ChatModel — GPT models
//   - google.ChatModel — Gemini models
//   - MockChatModel (this package) — tests
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (ChatOut, error)
}

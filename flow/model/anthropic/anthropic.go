// Package anthropic adapts the Anthropic Messages API to
// model.ChatModel.
package anthropic

import (
	"context"
	"fmt"

	anth "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/duraflow-go/flow/model"
)

const defaultModel = "claude-sonnet-4-5-20250929"
const defaultMaxTokens = 4096

// ChatModel implements model.ChatModel for Claude models.
//
// Example:
//
//	apiKey := os.Getenv("ANTHROPIC_API_KEY")
//	claude := anthropic.NewChatModel(apiKey, "")
//	out, err := claude.Chat(ctx, model.ChatRequest{
//	    Messages: []model.Message{{Role: model.RoleUser, Content: "hello"}},
//	})
type ChatModel struct {
	client       anth.Client
	defaultModel string
}

// NewChatModel creates the adapter. An empty modelName uses the
// package default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = defaultModel
	}
	return &ChatModel{
		client:       anth.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: modelName,
	}
}

// Chat implements model.ChatModel. System messages fold into the
// Messages API system prompt; the rest map positionally.
func (m *ChatModel) Chat(ctx context.Context, req model.ChatRequest) (model.ChatOut, error) {
	var system string
	msgs := make([]anth.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := anth.MessageParamRoleUser
		switch msg.Role {
		case model.RoleSystem:
			system += msg.Content
			continue
		case model.RoleAssistant:
			role = anth.MessageParamRoleAssistant
		}
		msgs = append(msgs, anth.MessageParam{
			Role: role,
			Content: []anth.ContentBlockParamUnion{
				{OfText: &anth.TextBlockParam{Text: msg.Content}},
			},
		})
	}

	modelName := req.Model
	if modelName == "" {
		modelName = m.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anth.MessageNewParams{
		Model:     anth.Model(modelName),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anth.TextBlockParam{{Text: system}}
	}
	if req.Temperature > 0 {
		params.Temperature = anth.Float(req.Temperature)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("anthropic chat: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		text += block.Text
	}
	return model.ChatOut{
		Text:         text,
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

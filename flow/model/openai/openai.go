// Package openai adapts the OpenAI Chat Completions API to
// model.ChatModel.
package openai

import (
	"context"
	"fmt"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/dshills/duraflow-go/flow/model"
)

const defaultModel = "gpt-4o"

// ChatModel implements model.ChatModel for GPT models.
//
// Example:
//
//	apiKey := os.Getenv("OPENAI_API_KEY")
//	gpt := openai.NewChatModel(apiKey, "")
//	out, err := gpt.Chat(ctx, model.ChatRequest{
//	    Messages: []model.Message{{Role: model.RoleUser, Content: "hello"}},
//	})
type ChatModel struct {
	client       oa.Client
	defaultModel string
}

// NewChatModel creates the adapter. An empty modelName uses the
// package default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = defaultModel
	}
	return &ChatModel{
		client:       oa.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: modelName,
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, req model.ChatRequest) (model.ChatOut, error) {
	msgs := make([]oa.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleSystem:
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{
				OfSystem: &oa.ChatCompletionSystemMessageParam{
					Content: oa.ChatCompletionSystemMessageParamContentUnion{
						OfString: oa.String(msg.Content),
					},
				},
			})
		case model.RoleAssistant:
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{
				OfAssistant: &oa.ChatCompletionAssistantMessageParam{
					Content: oa.ChatCompletionAssistantMessageParamContentUnion{
						OfString: oa.String(msg.Content),
					},
				},
			})
		default:
			msgs = append(msgs, oa.ChatCompletionMessageParamUnion{
				OfUser: &oa.ChatCompletionUserMessageParam{
					Content: oa.ChatCompletionUserMessageParamContentUnion{
						OfString: oa.String(msg.Content),
					},
				},
			})
		}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = m.defaultModel
	}

	params := oa.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelName),
		Messages: msgs,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = oa.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = oa.Float(req.Temperature)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.ChatOut{}, fmt.Errorf("openai chat: empty response")
	}

	return model.ChatOut{
		Text:         resp.Choices[0].Message.Content,
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

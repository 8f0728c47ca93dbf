// Package google adapts the Google Gemini API to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/duraflow-go/flow/model"
)

const defaultModel = "gemini-2.5-flash"

// ChatModel implements model.ChatModel for Gemini models.
//
// Example:
//
//	apiKey := os.Getenv("GOOGLE_API_KEY")
//	gemini := google.NewChatModel(apiKey, "")
//	out, err := gemini.Chat(ctx, model.ChatRequest{
//	    Messages: []model.Message{{Role: model.RoleUser, Content: "hello"}},
//	})
type ChatModel struct {
	apiKey       string
	defaultModel string
}

// NewChatModel creates the adapter. An empty modelName uses the
// package default. The client itself is created per call; the Gemini
// SDK ties clients to a context.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = defaultModel
	}
	return &ChatModel{apiKey: apiKey, defaultModel: modelName}
}

// Chat implements model.ChatModel. System messages become the model's
// system instruction; the rest are sent as ordered text parts.
func (m *ChatModel) Chat(ctx context.Context, req model.ChatRequest) (model.ChatOut, error) {
	if m.apiKey == "" {
		return model.ChatOut{}, errors.New("google chat: API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(m.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google chat: create client: %w", err)
	}
	defer func() { _ = client.Close() }()

	modelName := req.Model
	if modelName == "" {
		modelName = m.defaultModel
	}
	gm := client.GenerativeModel(modelName)

	if req.MaxTokens > 0 {
		mt := int32(req.MaxTokens)
		gm.MaxOutputTokens = &mt
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		gm.Temperature = &t
	}

	var system string
	var parts []genai.Part
	for _, msg := range req.Messages {
		if msg.Role == model.RoleSystem {
			system += msg.Content
			continue
		}
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	resp, err := gm.GenerateContent(ctx, parts...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google chat: %w", err)
	}

	out := model.ChatOut{Model: modelName}
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				out.Text += string(txt)
			}
		}
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

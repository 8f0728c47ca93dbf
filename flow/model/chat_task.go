package model

import (
	"github.com/dshills/duraflow-go/flow"
)

// NewChatTask wraps a ChatModel in a durable task: live runs call the
// provider, replayed runs serve the recorded completion, so a resumed
// workflow never pays for (or re-randomizes) an LLM call it already
// made.
//
// Chain task options for production hardening:
//
//	chat := model.NewChatTask("summarize", claude).
//	    WithRetry(3, 2*time.Second, 2.0).
//	    WithTimeout(60 * time.Second)
//
//	out, err := chat.Call(c, model.ChatRequest{
//	    Messages: []model.Message{{Role: model.RoleUser, Content: doc}},
//	})
//
// Identity caveat: two calls with an identical request share a source
// id and replay as one invocation. Include a distinguishing datum in
// the messages when the same prompt must run twice.
func NewChatTask(name string, m ChatModel) *flow.Task[ChatRequest, ChatOut] {
	return flow.NewTask(name, func(c *flow.Ctx, req ChatRequest) (ChatOut, error) {
		return m.Chat(c.Context(), req)
	})
}

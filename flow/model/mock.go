package model

import (
	"context"
	"sync"
)

// MockChatModel is a test double for ChatModel. It returns the
// configured response (or error) and records every request it
// receives.
type MockChatModel struct {
	mu sync.Mutex

	// Response is returned from every Chat call.
	Response ChatOut

	// Err, when set, is returned instead of Response.
	Err error

	// Requests accumulates every request received.
	Requests []ChatRequest
}

// Chat implements ChatModel.
func (m *MockChatModel) Chat(_ context.Context, req ChatRequest) (ChatOut, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	return m.Response, nil
}

// CallCount returns the number of Chat calls received.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

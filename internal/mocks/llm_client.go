package mocks

import (
	"context"
	"strings"
	"sync"

	"discovery/pkg/llm"
)

// MockLLMClient implements llm.Client for testing.
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockLLMClient struct {
	// CompleteFunc is called when Complete is invoked. Override to customize behavior.
	CompleteFunc func(ctx context.Context, req llm.Request) (llm.Response, error)

	// CompleteCalls tracks all calls to Complete for verification.
	CompleteCalls []llm.Request

	modelName string

	// mu protects call tracking and CompleteFunc
	mu sync.Mutex
}

// NewMockLLMClient creates a new mock client that answers "Mock response".
func NewMockLLMClient() *MockLLMClient {
	m := &MockLLMClient{modelName: "mock-model"}
	m.CompleteFunc = func(_ context.Context, _ llm.Request) (llm.Response, error) {
		return llm.Response{Content: "Mock response", StopReason: "end_turn"}, nil
	}
	return m
}

// Complete implements llm.Client.
//
//nolint:gocritic // Request passed by value to match interface
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	m.CompleteCalls = append(m.CompleteCalls, req)
	fn := m.CompleteFunc
	m.mu.Unlock()
	return fn(ctx, req)
}

// ModelName implements llm.Client.
func (m *MockLLMClient) ModelName() string {
	return m.modelName
}

// OnComplete sets a custom handler for Complete calls.
func (m *MockLLMClient) OnComplete(fn func(ctx context.Context, req llm.Request) (llm.Response, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteFunc = fn
}

// OnPrompt answers based on the last user message, which is where llm.Complete puts
// the prompt.
func (m *MockLLMClient) OnPrompt(fn func(prompt string) (string, error)) {
	m.OnComplete(func(_ context.Context, req llm.Request) (llm.Response, error) {
		content, err := fn(LastUserMessage(req))
		if err != nil {
			return llm.Response{}, err
		}
		return llm.Response{Content: content, StopReason: "end_turn"}, nil
	})
}

// FailCompleteWith configures Complete to return the specified error.
func (m *MockLLMClient) FailCompleteWith(err error) {
	m.OnComplete(func(_ context.Context, _ llm.Request) (llm.Response, error) {
		return llm.Response{}, err
	})
}

// RespondWith configures Complete to return the specified content.
func (m *MockLLMClient) RespondWith(content string) {
	m.OnComplete(func(_ context.Context, _ llm.Request) (llm.Response, error) {
		return llm.Response{Content: content, StopReason: "end_turn"}, nil
	})
}

// --- Verification helpers ---

// GetCompleteCallCount returns the number of times Complete was called.
func (m *MockLLMClient) GetCompleteCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.CompleteCalls)
}

// LastCompleteCall returns the most recent Complete call request, or nil if none.
func (m *MockLLMClient) LastCompleteCall() *llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CompleteCalls) == 0 {
		return nil
	}
	return &m.CompleteCalls[len(m.CompleteCalls)-1]
}

// AssertCompleteCalledWith reports whether any call carried a message containing substr.
func (m *MockLLMClient) AssertCompleteCalledWith(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, call := range m.CompleteCalls {
		for _, msg := range call.Messages {
			if strings.Contains(msg.Content, substr) {
				return true
			}
		}
	}
	return false
}

// LastUserMessage returns the content of the final user message of req.
//
//nolint:gocritic // Request passed by value for convenience in handlers
func LastUserMessage(req llm.Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

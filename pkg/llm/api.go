// Package llm provides the text completion abstraction used by the adaptive interview
// activities, plus middleware chaining and token counting.
package llm

import (
	"context"
	"fmt"
)

// Role represents the role of a message in a conversation.
type Role string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem Role = "system"
	// RoleUser indicates a message from the human user.
	RoleUser Role = "user"
	// RoleAssistant indicates a message from the AI assistant.
	RoleAssistant Role = "assistant"
)

const (
	// DefaultMaxTokens bounds completions when the caller does not.
	DefaultMaxTokens = 2048

	// TemperatureDefault suits open-ended question generation.
	TemperatureDefault = 0.7

	// TemperatureDeterministic suits verdicts and structured JSON.
	TemperatureDeterministic = 0.2
)

// Message is one entry of a completion request.
type Message struct {
	Role    Role
	Content string
}

// Request represents a request to generate a completion.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Response represents a response from a completion request.
type Response struct {
	Content    string
	StopReason string
}

// Client defines the interface for language model interactions.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, req Request) (Response, error)

	// ModelName returns the model name for this client.
	ModelName() string
}

// NewRequest creates a request with default limits.
func NewRequest(messages ...Message) Request {
	return Request{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureDefault,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Validate checks request limits before a provider call.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages")
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if r.Temperature < 0.0 || r.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}

// SplitSystem separates system messages from the conversation, joining their content.
func SplitSystem(messages []Message) (system string, rest []Message) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

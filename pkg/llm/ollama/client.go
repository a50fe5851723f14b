// Package ollama implements llm.Client against a local Ollama runtime.
package ollama

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"discovery/pkg/llm"
)

// DefaultHost is the Ollama default listen address.
const DefaultHost = "http://localhost:11434"

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
	model  string
}

// New creates a raw client. An unparsable host falls back to DefaultHost.
func New(hostURL, model string) *Client {
	parsedURL, err := url.Parse(hostURL)
	if hostURL == "" || err != nil {
		parsedURL, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}
}

// Complete implements llm.Client.
//
//nolint:gocritic // Request passed by value to match interface
func (o *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	messages := make([]api.Message, 0, len(in.Messages))
	for i := range in.Messages {
		messages = append(messages, api.Message{
			Role:    string(in.Messages[i].Role),
			Content: in.Messages[i].Content,
		})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.MaxTokens,
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.Response{}, classifyError(err)
	}
	return llm.Response{Content: response.Message.Content, StopReason: stopReason(&response)}, nil
}

// ModelName implements llm.Client.
func (o *Client) ModelName() string {
	return o.model
}

func stopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "stop", "":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

func classifyError(err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return llm.NewErrorWithCause(llm.ErrorTypeTransient, err, "Ollama server not reachable")
	case strings.Contains(errStr, "model") && strings.Contains(errStr, "not found"):
		return llm.NewErrorWithCause(llm.ErrorTypeBadPrompt, err, "Ollama model not found")
	default:
		return llm.Classify(err)
	}
}

// Package openai implements llm.Client on the OpenAI Responses API.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"discovery/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-5"

// Client wraps the official OpenAI client.
type Client struct {
	client openai.Client
	model  string
}

// New creates a raw client; middleware is applied by the caller.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements llm.Client. The Responses API takes a single input string, so
// the conversation is flattened with role prefixes.
//
//nolint:gocritic // Request passed by value to match interface
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	var input strings.Builder
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case llm.RoleSystem:
			fmt.Fprintf(&input, "System: %s\n\n", msg.Content)
		case llm.RoleAssistant:
			fmt.Fprintf(&input, "Assistant: %s\n\n", msg.Content)
		default:
			input.WriteString(msg.Content)
		}
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(input.String())},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.Response{}, llm.Classify(fmt.Errorf("OpenAI Responses API failed: %w", err))
	}
	if resp == nil {
		return llm.Response{}, llm.NewError(llm.ErrorTypeEmptyResponse, "empty response from OpenAI Responses API")
	}
	return llm.Response{Content: resp.OutputText(), StopReason: string(resp.Status)}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string {
	return c.model
}

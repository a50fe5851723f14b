// Package anthropic implements llm.Client on the Anthropic Messages API.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"discovery/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Client wraps the Anthropic API client.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

// New creates a raw client; middleware is applied by the caller.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Complete implements llm.Client.
//
//nolint:gocritic // Request passed by value to match interface
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	system, rest := llm.SplitSystem(in.Messages)

	messages := make([]anthropic.MessageParam, 0, len(rest))
	for i := range rest {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(rest[i].Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(rest[i].Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{
			Text: system,
			Type: "text",
		}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, llm.Classify(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var text string
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return llm.Response{Content: text, StopReason: string(resp.StopReason)}, nil
}

// ModelName implements llm.Client.
func (c *Client) ModelName() string {
	return string(c.model)
}

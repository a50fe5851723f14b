// Package google implements llm.Client on the Gemini API.
package google

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"discovery/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Client wraps the Gemini client, created lazily on first use.
type Client struct {
	apiKey string
	model  string

	mu     sync.Mutex
	client *genai.Client
}

// New creates a raw client; middleware is applied by the caller.
func New(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{apiKey: apiKey, model: model}
}

func (g *Client) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, llm.NewErrorWithCause(llm.ErrorTypeAuth, err, "failed to create Gemini client")
	}
	g.client = client
	return client, nil
}

// Complete implements llm.Client.
//
//nolint:gocritic // Request passed by value to match interface
func (g *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return llm.Response{}, err
	}

	system, rest := llm.SplitSystem(in.Messages)
	contents := make([]*genai.Content, 0, len(rest))
	for i := range rest {
		role := "user"
		if rest[i].Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: rest[i].Content}},
		})
	}

	temperature := in.Temperature
	//nolint:gosec // MaxTokens validated by Request.Validate
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(in.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.Response{}, llm.Classify(fmt.Errorf("gemini generate content: %w", err))
	}
	if result == nil {
		return llm.Response{}, llm.NewError(llm.ErrorTypeEmptyResponse, "nil response from Gemini")
	}
	return llm.Response{Content: result.Text(), StopReason: "end_turn"}, nil
}

// ModelName implements llm.Client.
func (g *Client) ModelName() string {
	return g.model
}

package llm

import (
	"context"
	"strings"
)

// BaseSystemPrompt frames every completion made for the interview activities.
const BaseSystemPrompt = "You are an expert discovery consultant. You interview people to understand " +
	"their situation, then turn what you learned into structured, actionable analysis. " +
	"Be concise and concrete."

// Complete sends a single prompt and returns the trimmed text. systemPromptSuffix is
// appended to BaseSystemPrompt; maxTokens <= 0 uses DefaultMaxTokens. Every failure,
// including an empty answer, matches ErrCompletion.
func Complete(ctx context.Context, c Client, prompt, systemPromptSuffix string, maxTokens int, temperature float32) (string, error) {
	system := BaseSystemPrompt
	if s := strings.TrimSpace(systemPromptSuffix); s != "" {
		system += "\n\n" + s
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	req := Request{
		Messages:    []Message{NewSystemMessage(system), NewUserMessage(prompt)},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
	if err := req.Validate(); err != nil {
		return "", NewErrorWithCause(ErrorTypeBadPrompt, err, "invalid request")
	}

	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", Classify(err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", NewError(ErrorTypeEmptyResponse, "completion returned no text")
	}
	return text, nil
}

package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts prompt tokens. Every supported provider is approximated with the
// GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter using the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// Count returns the number of tokens in text. A nil counter, or a codec failure,
// falls back to four characters per token.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// FitTail keeps the longest suffix of items whose joined token count stays within
// budget. The newest entries of a transcript are the ones worth keeping.
func (tc *TokenCounter) FitTail(items []string, budget int) []string {
	if budget <= 0 {
		return nil
	}
	total := 0
	start := len(items)
	for i := len(items) - 1; i >= 0; i-- {
		n := tc.Count(items[i])
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	return items[start:]
}

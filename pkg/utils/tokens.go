// Package utils provides token counting, filesystem, and hashing helpers
// shared across the codebase.
package utils

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides token counting for budget and context accounting.
// All supported models approximate well with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a counter for the given model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in text, falling back to a 4
// chars per token estimate when encoding fails.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// EstimateTokens counts tokens without constructing a counter.
func EstimateTokens(text string) int {
	counter, err := NewTokenCounter("gpt-4")
	if err != nil {
		return len(text) / 4
	}
	return counter.CountTokens(text)
}

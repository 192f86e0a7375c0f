package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken does not know, which is
// most models behind OpenAI-compatible gateways. Counts are approximate
// for them but close enough for a limit.
const fallbackEncoding = "cl100k_base"

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// TokenCounter counts prompt tokens using tiktoken
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a new token counter for the specified model.
// Unknown models fall back to cl100k_base.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	return &TokenCounter{encoding: encoding}, nil
}

// NewTokenCounterWithTokenizer creates a counter around an existing tokenizer.
func NewTokenCounterWithTokenizer(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountTokens counts the tokens in text.
func (tc *TokenCounter) CountTokens(text string) (int, error) {
	if tc == nil || tc.encoding == nil {
		return 0, fmt.Errorf("token counter not initialized")
	}
	return len(tc.encoding.Encode(text, nil, nil)), nil
}

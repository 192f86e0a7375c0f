// Package mocks provides test doubles for the LLM client.
package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
)

// MockLLM implements the gateway's Generator for tests without making API
// calls. Every prompt it receives is recorded.
//
// Example usage:
//
//	mockLLM := NewMockLLM(func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
//	    return "<think>hmm</think>fmt.Println(1)", nil
//	})
type MockLLM struct {
	GenerateFunc func(context.Context, *gollm.Prompt) (string, error)

	mu      sync.Mutex
	prompts []*gollm.Prompt
}

// NewMockLLM creates a new MockLLM with optional generate function.
// If generateFunc is nil, Generate will return empty string with no error.
func NewMockLLM(generateFunc func(context.Context, *gollm.Prompt) (string, error)) *MockLLM {
	return &MockLLM{GenerateFunc: generateFunc}
}

// Respond returns a MockLLM that always answers with response.
func Respond(response string) *MockLLM {
	return NewMockLLM(func(context.Context, *gollm.Prompt) (string, error) {
		return response, nil
	})
}

// Fail returns a MockLLM whose every call fails with err.
func Fail(err error) *MockLLM {
	return NewMockLLM(func(context.Context, *gollm.Prompt) (string, error) {
		return "", err
	})
}

// Generate records the prompt and delegates to GenerateFunc.
// The opts parameter is ignored.
func (m *MockLLM) Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "", nil
}

// Calls returns how many times Generate was called.
func (m *MockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the text of the last prompt received as the provider
// would send it, or "".
func (m *MockLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1].String()
}

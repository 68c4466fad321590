// Package llm provides the language-model collaborator: prompt in, text out,
// or failure.
package llm

import (
	"context"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for the LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// NewClient creates a new LLM client based on provider.
func NewClient(provider Provider, apiKey string) (Client, error) {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	default:
		return NewAnthropicClient(apiKey)
	}
}

// SelectClient picks a provider by preference and key availability. The
// preferred provider wins when its key is present; otherwise whichever
// provider has a key is used. No key at all yields a nil client.
func SelectClient(preferred Provider, anthropicKey, openaiKey string) (Client, error) {
	keyFor := func(p Provider) string {
		if p == ProviderOpenAI {
			return openaiKey
		}
		return anthropicKey
	}

	order := []Provider{ProviderAnthropic, ProviderOpenAI}
	if preferred == ProviderOpenAI {
		order = []Provider{ProviderOpenAI, ProviderAnthropic}
	}

	for _, p := range order {
		if keyFor(p) != "" {
			return NewClient(p, keyFor(p))
		}
	}
	return nil, nil
}

// PromptRequest wraps a single composed prompt as a one-message request. The
// portal sends the entire context on every turn as one user message.
func PromptRequest(model, prompt string, temperature float64) *CompletionRequest {
	return &CompletionRequest{
		Model:       model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	}
}

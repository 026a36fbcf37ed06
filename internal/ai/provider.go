package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/thinkscotty/podcaster/internal/config"
)

// Provider is the interface that all model backends must implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string // "openai" or "gemini"
}

// ChatRequest is a provider-agnostic request.
type ChatRequest struct {
	Model       string // empty uses the provider's configured model
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// ChatResponse is a provider-agnostic response.
type ChatResponse struct {
	Content    string
	TokensUsed int
	Model      string
	Provider   string
}

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// NewProvider builds the backend selected by cfg.Provider.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		return NewOpenAIProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/thinkscotty/podcaster/internal/config"
)

// Request is one text-generation call.
type Request struct {
	System    string // optional instruction
	Prompt    string
	MaxTokens int  // zero leaves the ceiling to the provider
	Thinking  bool // prefer the configured thinking model
}

// Client routes generation requests to the configured provider.
type Client struct {
	provider      Provider
	model         string
	thinkingModel string
	logger        *slog.Logger
}

// NewClient creates a client for the provider selected in cfg.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) (*Client, error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	return NewClientWithProvider(p, cfg.Model, cfg.ThinkingModel, logger), nil
}

func NewClientWithProvider(p Provider, model, thinkingModel string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: p, model: model, thinkingModel: thinkingModel, logger: logger}
}

// Generate returns the model's text reply. An empty reply is an error.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	model := c.model
	if req.Thinking && c.thinkingModel != "" {
		model = c.thinkingModel
	}

	var msgs []Message
	if strings.TrimSpace(req.System) != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, Message{Role: "user", Content: req.Prompt})

	resp, err := c.provider.Chat(ctx, ChatRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from %s", c.provider.Name())
	}

	c.logger.Debug("Model call completed", "provider", resp.Provider, "model", resp.Model, "tokens", resp.TokensUsed, "chars", len(text))
	return text, nil
}

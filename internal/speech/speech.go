// Package speech turns podcast script lines into audio through an
// OpenAI-compatible text-to-speech endpoint.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/thinkscotty/podcaster/internal/config"
	"github.com/thinkscotty/podcaster/internal/models"
)

// ErrEmptyAudio is returned when the service answers with a zero-length payload.
var ErrEmptyAudio = errors.New("speech service returned empty audio")

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Client calls POST <base>/audio/speech.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maleVoice   string
	femaleVoice string
}

func NewClient(cfg config.SpeechConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		maleVoice:   cfg.MaleVoice,
		femaleVoice: cfg.FemaleVoice,
	}
}

// Voice maps a gender hint to the configured voice name.
func (c *Client) Voice(g models.Gender) string {
	if g == models.GenderMale {
		return c.maleVoice
	}
	return c.femaleVoice
}

// Synthesize returns MP3 audio for text spoken in the voice for gender.
func (c *Client) Synthesize(ctx context.Context, text string, gender models.Gender) ([]byte, error) {
	jsonData, err := json.Marshal(speechRequest{
		Model:          c.model,
		Input:          text,
		Voice:          c.Voice(gender),
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech service returned status %d: %s", resp.StatusCode, truncate(string(audio), 200))
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

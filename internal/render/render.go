// Package render talks to the external audio concatenation service.
package render

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
)

// ErrEmptyResult is returned when the service answers without audio.
var ErrEmptyResult = errors.New("render service returned empty audio")

type concatRequest struct {
	AudioFiles []string `json:"audioFiles"`
	WorkerURL  string   `json:"workerUrl,omitempty"`
}

// Client posts an ordered list of audio URLs and receives the combined file.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	callbackURL string
}

// New returns nil when no render service is configured.
func New(cfg config.RenderConfig) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		endpoint:    strings.TrimRight(cfg.BaseURL, "/"),
		callbackURL: cfg.CallbackURL,
	}
}

// Concat returns the audio files joined in the given order.
func (c *Client) Concat(ctx context.Context, audioURLs []string) ([]byte, error) {
	if len(audioURLs) == 0 {
		return nil, errors.New("no audio files to concatenate")
	}

	jsonData, err := json.Marshal(concatRequest{AudioFiles: audioURLs, WorkerURL: c.callbackURL})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(audio)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("render service returned status %d: %s", resp.StatusCode, msg)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyResult
	}
	return audio, nil
}

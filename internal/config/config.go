package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thinkscotty/podcaster/internal/models"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Database DatabaseConfig  `yaml:"database"`
	Storage  StorageConfig   `yaml:"storage"`
	Logging  LoggingConfig   `yaml:"logging"`
	Pipeline PipelineConfig  `yaml:"pipeline"`
	Retry    RetryConfig     `yaml:"retry"`
	Sources  []models.Source `yaml:"sources"`
	LLM      LLMConfig       `yaml:"llm"`
	Speech   SpeechConfig    `yaml:"speech"`
	Reader   ReaderConfig    `yaml:"reader"`
	Render   RenderConfig    `yaml:"render"`
	Prompts  PromptsConfig   `yaml:"prompts"`
}

type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	// TriggerKeyHash is a bcrypt hash of the bearer key accepted by POST /api/cron.
	TriggerKeyHash string `yaml:"trigger_key_hash"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type StorageConfig struct {
	BlobDir   string `yaml:"blob_dir"`
	PublicURL string `yaml:"public_url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type PipelineConfig struct {
	Name               string `yaml:"name"`
	Title              string `yaml:"title"`
	Environment        string `yaml:"environment"`
	MaxStories         int    `yaml:"max_stories"`
	SpeechConcurrency  int    `yaml:"speech_concurrency"`
	Schedule           string `yaml:"schedule"` // local "HH:MM"; empty disables the scheduler
	SummaryTTLHours    int    `yaml:"summary_ttl_hours"`
	CheckpointTTLHours int    `yaml:"checkpoint_ttl_hours"`
}

type RetryConfig struct {
	Limit                int `yaml:"limit"`
	DelaySeconds         int `yaml:"delay_seconds"`
	TimeoutMinutes       int `yaml:"timeout_minutes"`
	SpeechTimeoutMinutes int `yaml:"speech_timeout_minutes"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider"` // "openai" or "gemini"
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	ThinkingModel  string `yaml:"thinking_model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type SpeechConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaleVoice      string `yaml:"male_voice"`
	FemaleVoice    string `yaml:"female_voice"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// MaleMarkers extend the built-in speaker label markers that select the male voice.
	MaleMarkers []string `yaml:"male_markers"`
}

type ReaderConfig struct {
	// BaseURL of a remote reader service (e.g. https://r.jina.ai). Empty uses local extraction.
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	MaxChars       int    `yaml:"max_chars"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RenderConfig struct {
	// BaseURL of the audio concatenation service. Empty means text-only bundles.
	BaseURL        string `yaml:"base_url"`
	CallbackURL    string `yaml:"callback_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PromptsConfig overrides the built-in instructions. Empty fields keep the defaults.
type PromptsConfig struct {
	Filter  string `yaml:"filter"`
	Story   string `yaml:"story"`
	Podcast string `yaml:"podcast"`
	Blog    string `yaml:"blog"`
	Intro   string `yaml:"intro"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8787,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
		},
		Database: DatabaseConfig{
			Path: "./podcaster.db",
		},
		Storage: StorageConfig{
			BlobDir:   "./blobs",
			PublicURL: "http://localhost:8787/static",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		Pipeline: PipelineConfig{
			Name:               "daily-podcast",
			Title:              "Daily Briefing",
			Environment:        "production",
			MaxStories:         15,
			SpeechConcurrency:  1,
			Schedule:           "06:00",
			SummaryTTLHours:    24,
			CheckpointTTLHours: 72,
		},
		Retry: RetryConfig{
			Limit:                1,
			DelaySeconds:         1,
			TimeoutMinutes:       30,
			SpeechTimeoutMinutes: 5,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 600,
		},
		Speech: SpeechConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "tts-1",
			MaleVoice:      "onyx",
			FemaleVoice:    "nova",
			TimeoutSeconds: 120,
		},
		Reader: ReaderConfig{
			MaxChars:       4000,
			TimeoutSeconds: 60,
		},
		Render: RenderConfig{
			TimeoutSeconds: 600,
		},
	}
}

// Load reads a YAML config file and merges it over defaults.
// If the file does not exist, defaults are returned without error.
// Environment variables fill in secrets and endpoints the file leaves empty.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
		slog.Info("No config file found, using defaults", "path", path)
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnv(os.Getenv)
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) {
	setIfEmpty := func(dst *string, key string) {
		if strings.TrimSpace(*dst) == "" {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				*dst = v
			}
		}
	}
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	setIfEmpty(&c.LLM.APIKey, "OPENAI_API_KEY")
	override(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	override(&c.LLM.Model, "OPENAI_MODEL")
	setIfEmpty(&c.LLM.ThinkingModel, "OPENAI_THINKING_MODEL")
	setIfEmpty(&c.Speech.APIKey, "TTS_API_KEY")
	setIfEmpty(&c.Speech.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&c.Reader.APIKey, "READER_API_KEY")
	override(&c.Pipeline.Environment, "PODCASTER_ENV")

	c.LLM.BaseURL = strings.TrimRight(c.LLM.BaseURL, "/")
	c.Speech.BaseURL = strings.TrimRight(c.Speech.BaseURL, "/")
	c.Storage.PublicURL = strings.TrimRight(c.Storage.PublicURL, "/")
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pipeline.Name) == "" {
		return errors.New("pipeline.name must not be empty")
	}
	if strings.TrimSpace(c.Pipeline.Environment) == "" {
		return errors.New("pipeline.environment must not be empty")
	}
	if c.Pipeline.MaxStories <= 0 {
		return fmt.Errorf("pipeline.max_stories must be positive, got %d", c.Pipeline.MaxStories)
	}
	if c.Pipeline.Schedule != "" {
		if _, err := time.Parse("15:04", c.Pipeline.Schedule); err != nil {
			return fmt.Errorf("pipeline.schedule %q: want HH:MM", c.Pipeline.Schedule)
		}
	}
	if c.Retry.Limit < 0 {
		return fmt.Errorf("retry.limit must not be negative, got %d", c.Retry.Limit)
	}
	if c.Retry.TimeoutMinutes <= 0 || c.Retry.SpeechTimeoutMinutes <= 0 {
		return errors.New("retry timeouts must be positive")
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider %q: want openai or gemini", c.LLM.Provider)
	}
	for i, src := range c.Sources {
		if strings.TrimSpace(src.URL) == "" {
			return fmt.Errorf("sources[%d]: url is required", i)
		}
		switch src.Format {
		case "", "rss":
		case "html":
			if src.ItemSelector == "" {
				return fmt.Errorf("sources[%d] (%s): html format needs item_selector", i, src.Name)
			}
		default:
			return fmt.Errorf("sources[%d] (%s): unknown format %q", i, src.Name, src.Format)
		}
	}
	return nil
}

// RetryDelay is the base delay between attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.DelaySeconds) * time.Second
}

// StepTimeout bounds a single attempt of an ordinary step.
func (c *Config) StepTimeout() time.Duration {
	return time.Duration(c.Retry.TimeoutMinutes) * time.Minute
}

// SpeechTimeout bounds a single speech-synthesis attempt.
func (c *Config) SpeechTimeout() time.Duration {
	return time.Duration(c.Retry.SpeechTimeoutMinutes) * time.Minute
}

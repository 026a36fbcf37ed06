package models

import "time"

// Source is one statically configured feed endpoint.
type Source struct {
	Name   string `yaml:"name" json:"name"`
	URL    string `yaml:"url" json:"url"`
	Format string `yaml:"format" json:"format"` // "rss" or "html"

	// Selectors are only consulted for the "html" format.
	ItemSelector        string `yaml:"item_selector" json:"item_selector,omitempty"`
	TitleSelector       string `yaml:"title_selector" json:"title_selector,omitempty"`
	LinkSelector        string `yaml:"link_selector" json:"link_selector,omitempty"`
	DescriptionSelector string `yaml:"description_selector" json:"description_selector,omitempty"`
}

// RawItem is a single entry extracted from a feed source.
type RawItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	PublishedAt time.Time `json:"published_at"`
	SourceName  string    `json:"source"`
}

// FilteredStory is a RawItem the relevance filter kept (or the synthetic fallback).
type FilteredStory struct {
	RawItem
	Fallback bool `json:"fallback,omitempty"`
}

// StorySummary is the per-story output of the enricher.
type StorySummary struct {
	StoryKey    string `json:"story_key"`
	SummaryText string `json:"summary"`
}

// Gender is the binary voice hint handed to speech synthesis.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// Utterance is one speaker-attributed line of the podcast script.
type Utterance struct {
	Index       int    `json:"index"`
	SpeakerName string `json:"speaker"`
	Gender      Gender `json:"gender"`
	Text        string `json:"text"`
}

// AudioArtifact points at the synthesized audio for one utterance.
type AudioArtifact struct {
	UtteranceIndex int    `json:"index"`
	StorageKey     string `json:"storage_key"`
	PublicURL      string `json:"public_url"`
}

// RunContext identifies one pipeline execution. It is never mutated after creation.
type RunContext struct {
	RunID       string `json:"run_id"`
	RunDate     string `json:"date"`
	Environment string `json:"environment"`
}

// RunBundle is the persisted result of a completed run.
type RunBundle struct {
	RunID         string          `json:"run_id"`
	Date          string          `json:"date"`
	Title         string          `json:"title"`
	Stories       []FilteredStory `json:"stories"`
	PodcastScript string          `json:"podcast_script"`
	BlogPost      string          `json:"blog_post"`
	IntroText     string          `json:"intro_text"`
	FinalAudioKey string          `json:"final_audio_key,omitempty"`
	Utterances    int             `json:"utterances"`
	AudioSegments int             `json:"audio_segments"`
	CompletedAt   time.Time       `json:"completed_at"`
}

// Package pipeline runs the daily news-to-podcast workflow: collect feeds,
// filter for relevance, summarize stories, write the script, blog post and
// intro, synthesize speech, assemble the audio and record the run.
//
// Every stage goes through durable steps keyed by run id, so a run restarted
// with the same id skips the work it already finished.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thinkscotty/podcaster/internal/ai"
	"github.com/thinkscotty/podcaster/internal/config"
	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/speech"
)

// CheckpointStore is the key-value store holding step results and run records.
type CheckpointStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// BlobStore holds utterance and final audio.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	URL(key string) string
}

type Collector interface {
	Collect(ctx context.Context, sources []models.Source) []models.RawItem
}

type Model interface {
	Generate(ctx context.Context, req ai.Request) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

type Speaker interface {
	Synthesize(ctx context.Context, text string, gender models.Gender) ([]byte, error)
}

type Renderer interface {
	Concat(ctx context.Context, audioURLs []string) ([]byte, error)
}

// Env is every capability the stages use. Renderer may be nil, in which case
// runs produce text-only bundles.
type Env struct {
	Checkpoints CheckpointStore
	Blobs       BlobStore
	Collector   Collector
	Model       Model
	Extractor   Extractor
	Speaker     Speaker
	Renderer    Renderer
	Logger      *slog.Logger
}

// Settings are the tunables of a pipeline, usually derived from config.
type Settings struct {
	Name              string
	Title             string
	Sources           []models.Source
	MaxStories        int
	SpeechConcurrency int
	Policy            durable.Policy
	SpeechTimeout     time.Duration
	SummaryTTL        time.Duration
	CheckpointTTL     time.Duration
	Prompts           ai.Prompts
	Voicer            speech.Voicer

	// Sleep replaces the retry backoff wait; nil uses real timers.
	Sleep func(context.Context, time.Duration) error
}

// SettingsFromConfig maps configuration onto pipeline settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Name:              cfg.Pipeline.Name,
		Title:             cfg.Pipeline.Title,
		Sources:           cfg.Sources,
		MaxStories:        cfg.Pipeline.MaxStories,
		SpeechConcurrency: cfg.Pipeline.SpeechConcurrency,
		Policy: durable.Policy{
			Retries: cfg.Retry.Limit,
			Delay:   cfg.RetryDelay(),
			Timeout: cfg.StepTimeout(),
		},
		SpeechTimeout: cfg.SpeechTimeout(),
		SummaryTTL:    time.Duration(cfg.Pipeline.SummaryTTLHours) * time.Hour,
		CheckpointTTL: time.Duration(cfg.Pipeline.CheckpointTTLHours) * time.Hour,
		Prompts:       ai.ResolvePrompts(cfg.Prompts),
		Voicer:        speech.NewVoicer(cfg.Speech.MaleMarkers...),
	}
}

// RunOptions carry per-run overrides from the trigger.
type RunOptions struct {
	// CustomScript, when set, replaces the model-generated podcast script.
	CustomScript string
}

type Pipeline struct {
	env      Env
	settings Settings
	now      func() time.Time
}

func New(env Env, settings Settings) *Pipeline {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if settings.MaxStories <= 0 {
		settings.MaxStories = 15
	}
	if settings.SpeechConcurrency <= 0 {
		settings.SpeechConcurrency = 1
	}
	if len(settings.Voicer.Markers()) == 0 {
		settings.Voicer = speech.NewVoicer()
	}
	if settings.Prompts == (ai.Prompts{}) {
		settings.Prompts = ai.DefaultPrompts()
	}
	return &Pipeline{env: env, settings: settings, now: time.Now}
}

// Name is the pipeline name used in record and audio keys.
func (p *Pipeline) Name() string { return p.settings.Name }

// run carries the per-execution state shared by the stages.
type run struct {
	*Pipeline
	rc     models.RunContext
	opts   RunOptions
	steps  *durable.Runner

	// variant scopes the script-dependent steps; see scriptVariant.
	variant string
	logger *slog.Logger
}

// Run executes every stage in order and returns the recorded bundle. A
// required stage failing aborts the run without writing a bundle.
func (p *Pipeline) Run(ctx context.Context, rc models.RunContext, opts RunOptions) (*models.RunBundle, error) {
	logger := p.env.Logger.With("run_id", rc.RunID, "date", rc.RunDate, "environment", rc.Environment)
	r := &run{
		Pipeline: p,
		rc:       rc,
		opts:     opts,
		variant:  scriptVariant(opts.CustomScript),
		logger:   logger,
		steps: durable.NewRunner(p.env.Checkpoints, rc.RunID,
			durable.WithLogger(logger),
			durable.WithTTL(p.settings.CheckpointTTL),
			durable.WithSleep(p.settings.Sleep),
		),
	}

	start := time.Now()
	logger.Info("Run started", "pipeline", p.settings.Name, "sources", len(p.settings.Sources))

	var (
		raw        []models.RawItem
		stories    []models.FilteredStory
		summaries  []models.StorySummary
		texts      Texts
		artifacts  []models.AudioArtifact
		utterances []models.Utterance
		finalKey   string
		bundle     *models.RunBundle
	)

	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"collect", func(ctx context.Context) (err error) { raw, err = r.collect(ctx); return err }},
		{"filter", func(ctx context.Context) (err error) { stories, err = r.filter(ctx, raw); return err }},
		{"enrich", func(ctx context.Context) (err error) { summaries, err = r.enrich(ctx, stories); return err }},
		{"synthesize", func(ctx context.Context) (err error) { texts, err = r.synthesize(ctx, stories, summaries); return err }},
		{"speech", func(ctx context.Context) (err error) {
			utterances, artifacts, err = r.speak(ctx, texts.Podcast)
			return err
		}},
		{"assemble", func(ctx context.Context) (err error) { finalKey, err = r.assemble(ctx, len(utterances)); return err }},
		{"record", func(ctx context.Context) (err error) {
			bundle, err = r.record(ctx, stories, texts, finalKey, len(utterances), len(artifacts))
			return err
		}},
	}

	for _, st := range stages {
		if err := r.stage(ctx, st.name, st.fn); err != nil {
			logger.Error("Run failed", "stage", st.name, "error", err, "duration", time.Since(start).String())
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
	}

	logger.Info("Run completed",
		"stories", len(bundle.Stories),
		"utterances", bundle.Utterances,
		"audio_segments", bundle.AudioSegments,
		"final_audio", bundle.FinalAudioKey,
		"duration", time.Since(start).String(),
	)
	return bundle, nil
}

func (r *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	logger := r.logger.With("stage", name)
	logger.Info("Stage started")
	start := time.Now()
	if err := fn(ctx); err != nil {
		logger.Error("Stage failed", "error", err, "duration", time.Since(start).String())
		return err
	}
	logger.Info("Stage completed", "duration", time.Since(start).String())
	return nil
}

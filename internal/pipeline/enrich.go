package pipeline

import (
	"context"
	"strings"

	"github.com/thinkscotty/podcaster/internal/ai"
	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
)

const noContentMarker = "No article text available."

// enrich summarizes stories one at a time. A story whose summary is already
// checkpointed for this run is skipped outright.
func (r *run) enrich(ctx context.Context, stories []models.FilteredStory) ([]models.StorySummary, error) {
	for _, story := range stories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.enrichStory(ctx, story); err != nil {
			return nil, err
		}
	}
	return r.loadSummaries(ctx)
}

func (r *run) enrichStory(ctx context.Context, story models.FilteredStory) error {
	storyKey := StoryKey(story.Title)
	key := summaryKey(r.rc.RunID, storyKey)
	logger := r.logger.With("story", storyKey, "title", story.Title)

	if _, ok, err := r.env.Checkpoints.Get(ctx, key); err != nil {
		return err
	} else if ok {
		logger.Debug("Story already summarized")
		return nil
	}

	content, err := durable.Do(ctx, r.steps, "read story "+storyKey, r.settings.Policy, func(ctx context.Context) (string, error) {
		return r.readStory(ctx, story)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("Story read failed, using description", "error", err)
		content = ai.BuildStoryInput(story.Title, storyFallbackText(story))
	}

	summary, err := durable.Do(ctx, r.steps, "summarize "+storyKey, r.settings.Policy, func(ctx context.Context) (string, error) {
		return r.env.Model.Generate(ctx, ai.Request{
			System: r.settings.Prompts.Story,
			Prompt: content,
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Warn("Story summary failed, keeping article text", "error", err)
		summary = content
	}

	if err := r.env.Checkpoints.Put(ctx, key, summary, r.settings.SummaryTTL); err != nil {
		return err
	}
	logger.Info("Story summarized", "chars", len(summary))
	return nil
}

// readStory returns the summarizer input: extracted article text when the
// extractor succeeds, the feed description otherwise.
func (r *run) readStory(ctx context.Context, story models.FilteredStory) (string, error) {
	if story.Fallback || story.URL == "" {
		return ai.BuildStoryInput(story.Title, storyFallbackText(story)), nil
	}

	text, err := r.env.Extractor.Extract(ctx, story.URL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("Content extraction failed", "url", story.URL, "error", err)
		text = storyFallbackText(story)
	}
	return ai.BuildStoryInput(story.Title, text), nil
}

func storyFallbackText(story models.FilteredStory) string {
	if d := strings.TrimSpace(story.Description); d != "" {
		return d
	}
	return noContentMarker
}

// loadSummaries reads back every summary stored for the run in key order.
func (r *run) loadSummaries(ctx context.Context) ([]models.StorySummary, error) {
	prefix := summaryPrefix(r.rc.RunID)
	keys, err := r.env.Checkpoints.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.StorySummary, 0, len(keys))
	for _, key := range keys {
		text, ok, err := r.env.Checkpoints.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		summaries = append(summaries, models.StorySummary{
			StoryKey:    strings.TrimPrefix(key, prefix),
			SummaryText: text,
		})
	}
	r.logger.Info("Loaded story summaries", "count", len(summaries))
	return summaries, nil
}

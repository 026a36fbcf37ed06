package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/thinkscotty/podcaster/internal/ai"
	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
)

const fallbackStoryID = "fallback-001"

func (r *run) collect(ctx context.Context) ([]models.RawItem, error) {
	items, err := durable.Do(ctx, r.steps, "fetch raw news", r.settings.Policy, func(ctx context.Context) ([]models.RawItem, error) {
		return r.env.Collector.Collect(ctx, r.settings.Sources), nil
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("Collected raw stories", "count", len(items))
	return items, nil
}

// filter never fails: model errors and unusable replies fall back to the
// synthetic story.
func (r *run) filter(ctx context.Context, raw []models.RawItem) ([]models.FilteredStory, error) {
	selected, err := durable.Do(ctx, r.steps, "ai filtering", r.settings.Policy, func(ctx context.Context) ([]models.FilteredStory, error) {
		if len(raw) == 0 {
			return []models.FilteredStory{}, nil
		}
		reply, err := r.env.Model.Generate(ctx, ai.Request{
			Prompt: ai.BuildFilterPrompt(r.settings.Prompts.Filter, raw),
		})
		if err != nil {
			return nil, err
		}
		indices, err := ai.ExtractIndexArray(reply)
		if errors.Is(err, ai.ErrNoArray) {
			r.logger.Warn("Filter reply had no index array", "reply_chars", len(reply))
			return []models.FilteredStory{}, nil
		}
		return SelectStories(raw, indices), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		r.logger.Warn("Relevance filter failed", "error", err)
		selected = nil
	}

	if len(selected) == 0 {
		r.logger.Warn("No relevant stories selected, using fallback story")
		selected = []models.FilteredStory{r.fallbackStory()}
	}
	if len(selected) > r.settings.MaxStories {
		selected = selected[:r.settings.MaxStories]
	}

	titles := make([]string, len(selected))
	for i, s := range selected {
		titles[i] = s.Title
	}
	r.logger.Info("Selected stories", "count", len(selected), "titles", titles)
	return selected, nil
}

// SelectStories maps model-chosen indices onto items in the order the model
// gave them, skipping out-of-range and repeated indices.
func SelectStories(items []models.RawItem, indices []int) []models.FilteredStory {
	seen := make(map[int]bool, len(indices))
	out := make([]models.FilteredStory, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(items) || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, models.FilteredStory{RawItem: items[i]})
	}
	return out
}

func (r *run) fallbackStory() models.FilteredStory {
	published, err := time.Parse(time.DateOnly, r.rc.RunDate)
	if err != nil {
		published = time.Time{}
	}
	return models.FilteredStory{
		RawItem: models.RawItem{
			ID:          fallbackStoryID,
			Title:       "Industry insight: technology shifts and compliance challenges in the beauty market",
			URL:         "",
			Description: "No major news today. Suggested topics: the rollout of the recombinant collagen group standard, and opportunities for domestic brands expanding into Southeast Asia.",
			PublishedAt: published,
			SourceName:  "editorial",
		},
		Fallback: true,
	}
}

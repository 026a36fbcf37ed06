package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/thinkscotty/podcaster/internal/ai"
	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
)

const (
	podcastMaxTokens = 8192
	blogMaxTokens    = 4096
	summarySeparator = "\n\n---\n\n"
)

// Texts are the aggregate artifacts of a run.
type Texts struct {
	Podcast string
	Blog    string
	Intro   string
}

// synthesize produces the script, blog post and intro. All three are
// required; any of them failing fails the run.
func (r *run) synthesize(ctx context.Context, stories []models.FilteredStory, summaries []models.StorySummary) (Texts, error) {
	input := aggregateInput(stories, summaries)
	var texts Texts

	podcast, err := durable.Do(ctx, r.steps, withVariant("create podcast", r.variant), r.settings.Policy, func(ctx context.Context) (string, error) {
		if script := strings.TrimSpace(r.opts.CustomScript); script != "" {
			r.logger.Info("Using supplied podcast script", "chars", len(script))
			return script, nil
		}
		return r.env.Model.Generate(ctx, ai.Request{
			System:    r.settings.Prompts.Podcast,
			Prompt:    input,
			MaxTokens: podcastMaxTokens,
			Thinking:  true,
		})
	})
	if err != nil {
		return texts, err
	}
	texts.Podcast = podcast

	blog, err := durable.Do(ctx, r.steps, "create blog", r.settings.Policy, func(ctx context.Context) (string, error) {
		return r.env.Model.Generate(ctx, ai.Request{
			System:    r.settings.Prompts.Blog,
			Prompt:    input,
			MaxTokens: blogMaxTokens,
			Thinking:  true,
		})
	})
	if err != nil {
		return texts, err
	}
	texts.Blog = blog

	intro, err := durable.Do(ctx, r.steps, withVariant("create intro", r.variant), r.settings.Policy, func(ctx context.Context) (string, error) {
		return r.env.Model.Generate(ctx, ai.Request{
			System: r.settings.Prompts.Intro,
			Prompt: podcast,
		})
	})
	if err != nil {
		return texts, err
	}
	texts.Intro = intro

	r.logger.Info("Aggregate texts ready", "podcast_chars", len(podcast), "blog_chars", len(blog), "intro_chars", len(intro))
	return texts, nil
}

// aggregateInput joins the summaries, or falls back to the story list as JSON
// when nothing was summarized.
func aggregateInput(stories []models.FilteredStory, summaries []models.StorySummary) string {
	if len(summaries) > 0 {
		parts := make([]string, len(summaries))
		for i, s := range summaries {
			parts[i] = "<story>" + s.SummaryText + "</story>"
		}
		return strings.Join(parts, summarySeparator)
	}
	data, _ := json.Marshal(stories)
	return string(data)
}

package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/thinkscotty/podcaster/internal/config"
	"github.com/thinkscotty/podcaster/internal/models"
)

const defaultFilterPrompt = `You are the managing editor of a cosmetics and beauty industry news desk.
Below is a list of headlines. Keep only the stories that genuinely belong to the
cosmetics, beauty, aesthetic medicine, raw materials or skincare industry.

Exclude:
1. Cars, consumer electronics, stock market moves, games and semiconductors.
2. Unrelated consumer goods.
3. Pure e-commerce promotions with no industry news value.

Keep:
1. Results and strategy news from major beauty groups.
2. Regulatory decisions, new ingredient filings and biotech developments.
3. Aesthetic medicine and skincare market analysis.

Return a plain JSON array containing only the index values of the stories to keep,
for example [0, 5, 12]. If nothing is relevant, return [].`

const defaultStoryPrompt = `You are a research editor preparing material for a daily industry podcast.
Summarize the article below in a few short paragraphs. Keep concrete facts:
companies, ingredients, concentrations, regulators, dates and numbers.
Note any controversy or open question the article raises.
Do not invent facts that are not in the text.`

const defaultPodcastPrompt = `You write the script for a daily two-host industry news podcast.
The hosts are Mia (the anchor) and Dr. Chen (a formulation scientist).

Write a natural conversation that walks through the stories provided, most
important first. Every line of the script must have the form

Speaker: what they say

using exactly the names "Mia" and "Dr. Chen". Do not add stage directions,
headings, sound cues or markdown. Open with a short greeting and close with a
brief sign-off.`

const defaultBlogPrompt = `You write the companion blog post for a daily industry news podcast.
Turn the story summaries below into a well-structured markdown article with a
headline per story, the key facts, and a one-line takeaway for each.`

const defaultIntroPrompt = `Write a two or three sentence introduction for the podcast episode below,
suitable for a podcast feed description. Plain text, no markdown.`

// Prompts holds the instruction templates used by each model call.
type Prompts struct {
	Filter  string
	Story   string
	Podcast string
	Blog    string
	Intro   string
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Filter:  defaultFilterPrompt,
		Story:   defaultStoryPrompt,
		Podcast: defaultPodcastPrompt,
		Blog:    defaultBlogPrompt,
		Intro:   defaultIntroPrompt,
	}
}

// ResolvePrompts applies configured overrides to the defaults.
func ResolvePrompts(cfg config.PromptsConfig) Prompts {
	p := DefaultPrompts()
	override := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	override(&p.Filter, cfg.Filter)
	override(&p.Story, cfg.Story)
	override(&p.Podcast, cfg.Podcast)
	override(&p.Blog, cfg.Blog)
	override(&p.Intro, cfg.Intro)
	return p
}

type filterEntry struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// BuildFilterPrompt renders the compact (index, title, source) listing the
// relevance filter sends to the model.
func BuildFilterPrompt(instruction string, items []models.RawItem) string {
	entries := make([]filterEntry, len(items))
	for i, it := range items {
		entries[i] = filterEntry{Index: i, Title: it.Title, Source: it.SourceName}
	}
	listing, _ := json.Marshal(entries)

	var sb strings.Builder
	sb.WriteString(instruction)
	sb.WriteString("\n\nStories:\n")
	sb.Write(listing)
	return sb.String()
}

// BuildStoryInput renders the text handed to the summarizer for one story.
func BuildStoryInput(title, content string) string {
	return fmt.Sprintf("Title: %s\nContent:\n%s", title, content)
}

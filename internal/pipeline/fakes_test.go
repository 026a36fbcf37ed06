package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/thinkscotty/podcaster/internal/ai"
	"github.com/thinkscotty/podcaster/internal/durable"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/speech"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Put(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) keysWithPrefix(prefix string) []string {
	keys, _ := m.List(context.Background(), prefix)
	return keys
}

type memBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (b *memBlobs) Put(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = data
	return nil
}

func (b *memBlobs) URL(key string) string { return "https://cdn.example.com/" + key }

type staticCollector struct {
	items []models.RawItem
	calls int
}

func (c *staticCollector) Collect(context.Context, []models.Source) []models.RawItem {
	c.calls++
	return c.items
}

// fakeModel answers by prompt kind. Tests use the short prompts in testPrompts.
type fakeModel struct {
	mu         sync.Mutex
	filterResp string
	filterErr  error
	script     string
	podcastErr error
	calls      map[string]int
	storyTexts []string
}

var testPrompts = ai.Prompts{Filter: "FILTER", Story: "STORY", Podcast: "PODCAST", Blog: "BLOG", Intro: "INTRO"}

func newFakeModel(filterResp, script string) *fakeModel {
	return &fakeModel{filterResp: filterResp, script: script, calls: map[string]int{}}
}

func (f *fakeModel) Generate(_ context.Context, req ai.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := req.System
	if strings.HasPrefix(req.Prompt, "FILTER") {
		kind = "FILTER"
	}
	f.calls[kind]++

	switch kind {
	case "FILTER":
		return f.filterResp, f.filterErr
	case "STORY":
		f.storyTexts = append(f.storyTexts, req.Prompt)
		title, _, _ := strings.Cut(strings.TrimPrefix(req.Prompt, "Title: "), "\n")
		return "summary of " + title, nil
	case "PODCAST":
		if req.MaxTokens != podcastMaxTokens || !req.Thinking {
			return "", errors.New("podcast request missing ceiling or thinking model")
		}
		return f.script, f.podcastErr
	case "BLOG":
		return "blog post", nil
	case "INTRO":
		if req.Prompt != f.script {
			return "", errors.New("intro must be generated from the script")
		}
		return "intro text", nil
	}
	return "", fmt.Errorf("unexpected prompt kind %q", kind)
}

func (f *fakeModel) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (e *fakeExtractor) Extract(_ context.Context, pageURL string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail {
		return "", errors.New("reader unavailable")
	}
	return "full text of " + pageURL, nil
}

type fakeSpeaker struct {
	mu     sync.Mutex
	calls  map[string]int
	silent string // texts containing this return zero bytes
	delay  func(text string) time.Duration
}

func newFakeSpeaker() *fakeSpeaker { return &fakeSpeaker{calls: map[string]int{}} }

func (s *fakeSpeaker) Synthesize(ctx context.Context, text string, gender models.Gender) ([]byte, error) {
	if s.delay != nil {
		select {
		case <-time.After(s.delay(text)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	s.calls[text]++
	s.mu.Unlock()
	if s.silent != "" && strings.Contains(text, s.silent) {
		return []byte{}, nil
	}
	return []byte(string(gender) + ":" + text), nil
}

func (s *fakeSpeaker) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type fakeRenderer struct {
	urls  []string
	calls int
	err   error
}

func (r *fakeRenderer) Concat(_ context.Context, urls []string) ([]byte, error) {
	r.calls++
	r.urls = append([]string(nil), urls...)
	if r.err != nil {
		return nil, r.err
	}
	return []byte("episode"), nil
}

const eightLineScript = `Mia: Good morning, this is the daily beauty briefing.
Dr. Chen: Morning Mia. Three stories today.

[intro music]
Mia: First up, a regulator opinion.
Dr. Chen：The limit is 0.01% in face products.
Mia: That seems low.
Dr. Chen: It is, for a peptide.
Mia: Next, results season.
Dr. Chen: That is all for today.`

func testSettings() Settings {
	return Settings{
		Name:              "beauty-podcast",
		Title:             "Beauty Daily",
		MaxStories:        15,
		SpeechConcurrency: 1,
		Policy:            durable.Policy{Retries: 1, Delay: time.Second, Timeout: time.Minute},
		SpeechTimeout:     5 * time.Second,
		Prompts:           testPrompts,
		Voicer:            speech.NewVoicer(),
		Sleep:             func(context.Context, time.Duration) error { return nil },
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRunContext() models.RunContext {
	return models.RunContext{RunID: "run-1", RunDate: "2025-10-14", Environment: "production"}
}

func rawItems(n int) []models.RawItem {
	items := make([]models.RawItem, n)
	for i := range items {
		items[i] = models.RawItem{
			ID:          fmt.Sprintf("https://news.example.com/%d", i),
			Title:       fmt.Sprintf("Story %d", i),
			URL:         fmt.Sprintf("https://news.example.com/%d", i),
			Description: fmt.Sprintf("about story %d", i),
			SourceName:  "wire",
		}
	}
	return items
}

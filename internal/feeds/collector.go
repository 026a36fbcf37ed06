// Package feeds fetches the configured news sources and turns them into RawItems.
package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/thinkscotty/podcaster/internal/models"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultTimeout   = 20 * time.Second
	maxBodyBytes     = 10 << 20
)

// Collector fetches every source concurrently. A failing source contributes
// zero items and never affects the others.
type Collector struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	parallel  int
	logger    *slog.Logger
	now       func() time.Time
}

// SourceResult is the outcome of fetching one source.
type SourceResult struct {
	Source   models.Source
	Items    []models.RawItem
	Err      error
	Duration time.Duration
}

func NewCollector(client *http.Client, logger *slog.Logger) *Collector {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:    client,
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		parallel:  8,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect fetches all sources and returns their items merged in source order,
// with one item per distinct title.
func (c *Collector) Collect(ctx context.Context, sources []models.Source) []models.RawItem {
	var merged []models.RawItem
	for _, res := range c.FetchAll(ctx, sources) {
		if res.Err != nil {
			c.logger.Warn("Feed source failed", "source", res.Source.Name, "error", res.Err)
			continue
		}
		c.logger.Info("Feed source fetched", "source", res.Source.Name, "items", len(res.Items), "duration", res.Duration.String())
		merged = append(merged, res.Items...)
	}
	return Dedupe(merged)
}

// FetchAll fetches every source concurrently. Results are returned in the same
// order as sources regardless of completion order.
func (c *Collector) FetchAll(ctx context.Context, sources []models.Source) []SourceResult {
	results := make([]SourceResult, len(sources))
	sem := make(chan struct{}, c.parallel)
	var wg sync.WaitGroup

	for i, src := range sources {
		results[i].Source = src
		wg.Add(1)
		go func(i int, src models.Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i].Err = fmt.Errorf("panic while fetching: %v", r)
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			items, err := c.Fetch(ctx, src)
			results[i].Items = items
			results[i].Err = err
			results[i].Duration = time.Since(start)
		}(i, src)
	}

	wg.Wait()
	return results
}

// Fetch retrieves and parses a single source under the collector's timeout.
func (c *Collector) Fetch(ctx context.Context, src models.Source) ([]models.RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", src.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned %s", src.URL, resp.Status)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	now := c.now()

	switch strings.ToLower(src.Format) {
	case "html":
		seq, err := ParseHTML(body, src, now)
		if err != nil {
			return nil, err
		}
		return slices.Collect(seq), nil
	default:
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return slices.Collect(ParseRSS(string(data), src.Name, now)), nil
	}
}

// Dedupe keeps one item per title. A repeated title replaces the earlier item's
// value but keeps the position where the title was first seen.
func Dedupe(items []models.RawItem) []models.RawItem {
	pos := make(map[string]int, len(items))
	out := make([]models.RawItem, 0, len(items))
	for _, item := range items {
		if i, ok := pos[item.Title]; ok {
			out[i] = item
			continue
		}
		pos[item.Title] = len(out)
		out = append(out, item)
	}
	return out
}

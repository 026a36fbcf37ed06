// Package scraper extracts readable article text for the summarizer, either
// through a remote reader service or locally with colly.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/thinkscotty/podcaster/internal/config"
)

const userAgent = "Mozilla/5.0 (compatible; Podcaster/1.0; +https://github.com/thinkscotty/podcaster)"

// ErrBlocked means the page came back as a bot challenge or with no usable text.
var ErrBlocked = errors.New("content blocked or empty")

// minContentChars is the shortest response treated as real content.
const minContentChars = 50

var blockSignatures = []string{
	"Just a moment",
	"cf-browser-verification",
	"Attention Required! | Cloudflare",
}

// Extractor returns best-effort readable text for a document URL.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// New returns a remote reader when cfg.BaseURL is set and a local scraper otherwise.
func New(cfg config.ReaderConfig) Extractor {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		return &Reader{
			httpClient: &http.Client{Timeout: timeout},
			baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			apiKey:     strings.TrimSpace(cfg.APIKey),
			maxChars:   cfg.MaxChars,
		}
	}
	return &Scraper{
		requestTimeout: timeout,
		maxChars:       cfg.MaxChars,
		converter:      md.NewConverter("", true, nil),
	}
}

// Reader calls a jina-style reader service: GET <base>/<document URL>.
type Reader struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxChars   int
}

func (r *Reader) Extract(ctx context.Context, pageURL string) (string, error) {
	if err := ValidateURL(pageURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Return-Format", "markdown")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reader request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reader returned status %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return finish(string(body), r.maxChars)
}

// Scraper fetches the page itself and converts the main content to markdown.
type Scraper struct {
	requestTimeout time.Duration
	maxChars       int
	converter      *md.Converter
}

var contentSelectors = []string{
	"article", "main", ".article", ".entry-content", ".post", ".content", "#content", "#main",
}

func (s *Scraper) Extract(ctx context.Context, pageURL string) (string, error) {
	if err := ValidateURL(pageURL); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxDepth(1),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.requestTimeout)

	var (
		mu       sync.Mutex
		best     string
		bestRank = len(contentSelectors)
		body     string
	)

	for rank, selector := range contentSelectors {
		c.OnHTML(selector, func(e *colly.HTMLElement) {
			html, err := goquery.OuterHtml(e.DOM)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if rank < bestRank && len(strings.TrimSpace(e.Text)) > 100 {
				best, bestRank = html, rank
			}
		})
	}

	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("script, style, nav, header, footer, aside, form").Remove()
		html, err := goquery.OuterHtml(e.DOM)
		if err != nil {
			return
		}
		mu.Lock()
		body = html
		mu.Unlock()
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("scrape %s: %w (status: %d)", pageURL, err, r.StatusCode)
	})

	if err := c.Visit(pageURL); err != nil {
		return "", fmt.Errorf("visit %s: %w", pageURL, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return "", scrapeErr
	}

	html := best
	if html == "" {
		html = body
	}
	markdown, err := s.converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert %s to markdown: %w", pageURL, err)
	}
	return finish(markdown, s.maxChars)
}

// ValidateURL checks that a URL is absolute and uses http or https.
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL must use http or https scheme: %q", urlStr)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host: %q", urlStr)
	}
	return nil
}

// finish rejects challenge pages and trims text to maxChars runes.
func finish(text string, maxChars int) (string, error) {
	text = strings.TrimSpace(text)
	if IsBlocked(text) {
		return "", ErrBlocked
	}
	if maxChars > 0 {
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}
	return text, nil
}

// IsBlocked reports whether text looks like a bot challenge or is too short to use.
func IsBlocked(text string) bool {
	if len(text) <= minContentChars {
		return true
	}
	for _, sig := range blockSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

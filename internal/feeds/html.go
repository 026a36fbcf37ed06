package feeds

import (
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/thinkscotty/podcaster/internal/models"
)

// ParseHTML extracts items from a listing page using the source's CSS selectors.
// Title and link default to the first anchor inside each item. Relative links
// are resolved against the source URL.
func ParseHTML(r io.Reader, src models.Source, now time.Time) (iter.Seq[models.RawItem], error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	base, _ := url.Parse(src.URL)

	titleSel := selectorOr(src.TitleSelector, "a")
	linkSel := selectorOr(src.LinkSelector, "a")

	return func(yield func(models.RawItem) bool) {
		doc.Find(src.ItemSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title := cleanText(s.Find(titleSel).First().Text())
			href, _ := s.Find(linkSel).First().Attr("href")
			link := resolveURL(base, strings.TrimSpace(href))
			if title == "" || link == "" {
				return true
			}

			var desc string
			if src.DescriptionSelector != "" {
				desc = cleanText(s.Find(src.DescriptionSelector).First().Text())
			}

			return yield(models.RawItem{
				ID:          link,
				Title:       title,
				URL:         link,
				Description: truncateRunes(desc, MaxDescriptionRunes),
				PublishedAt: now,
				SourceName:  src.Name,
			})
		})
	}, nil
}

func selectorOr(sel, fallback string) string {
	if strings.TrimSpace(sel) == "" {
		return fallback
	}
	return sel
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

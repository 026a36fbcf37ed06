package feeds

import (
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/thinkscotty/podcaster/internal/models"
)

// MaxDescriptionRunes caps the description handed to the relevance filter.
const MaxDescriptionRunes = 100

var (
	cdataMarkers = strings.NewReplacer("<![CDATA[", "", "]]>", "")
	tagPattern   = regexp.MustCompile(`<[^>]+>`)
)

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02 15:04:05",
}

// ParseRSS lazily yields the items of an RSS-like document. It never fails:
// malformed or truncated markup simply yields fewer items. Items without both
// a title and a link are skipped. now stamps items with no parseable pubDate.
func ParseRSS(body, sourceName string, now time.Time) iter.Seq[models.RawItem] {
	return func(yield func(models.RawItem) bool) {
		for block := range elements(body, "item") {
			title := strings.TrimSpace(cdataMarkers.Replace(firstElement(block, "title")))
			link := strings.TrimSpace(cdataMarkers.Replace(firstElement(block, "link")))
			if title == "" || link == "" {
				continue
			}
			desc := cdataMarkers.Replace(firstElement(block, "description"))
			desc = strings.TrimSpace(tagPattern.ReplaceAllString(desc, ""))

			item := models.RawItem{
				ID:          link,
				Title:       title,
				URL:         link,
				Description: truncateRunes(desc, MaxDescriptionRunes),
				PublishedAt: parsePubDate(firstElement(block, "pubDate"), now),
				SourceName:  sourceName,
			}
			if !yield(item) {
				return
			}
		}
	}
}

// elements yields the inner text of each <name>...</name> element in doc,
// in document order. Attributes on the opening tag are tolerated.
func elements(doc, name string) iter.Seq[string] {
	open, closing := "<"+name, "</"+name+">"
	return func(yield func(string) bool) {
		rest := doc
		for {
			start := indexOpenTag(rest, open)
			if start < 0 {
				return
			}
			gt := strings.IndexByte(rest[start:], '>')
			if gt < 0 {
				return
			}
			bodyStart := start + gt + 1
			end := strings.Index(rest[bodyStart:], closing)
			if end < 0 {
				return
			}
			if !yield(rest[bodyStart : bodyStart+end]) {
				return
			}
			rest = rest[bodyStart+end+len(closing):]
		}
	}
}

// indexOpenTag finds "<name>" or "<name " but not "<namespace>".
func indexOpenTag(s, open string) int {
	offset := 0
	for {
		i := strings.Index(s[offset:], open)
		if i < 0 {
			return -1
		}
		i += offset
		next := i + len(open)
		if next < len(s) {
			switch s[next] {
			case '>', ' ', '\t', '\n', '\r':
				return i
			}
		}
		offset = next
	}
}

func firstElement(doc, name string) string {
	for inner := range elements(doc, name) {
		return inner
	}
	return ""
}

func parsePubDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(cdataMarkers.Replace(raw))
	if raw == "" {
		return now
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return now
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

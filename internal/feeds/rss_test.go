package feeds

import (
	"slices"
	"strings"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Beauty wire</title>
<item>
  <title><![CDATA[L'Oréal posts Q3 results]]></title>
  <link>https://example.com/loreal</link>
  <description><![CDATA[<p>Revenue <b>up</b> 8%</p>]]></description>
  <pubDate>Tue, 14 Oct 2025 08:30:00 +0800</pubDate>
</item>
<item>
  <title>No link here</title>
  <description>dropped</description>
</item>
<item id="x">
  <title>Hexapeptide-11 opinion</title>
  <link> https://example.com/sccs </link>
  <pubDate>not a date</pubDate>
</item>
</channel></rss>`

func TestParseRSS(t *testing.T) {
	now := time.Date(2025, 10, 14, 0, 0, 0, 0, time.UTC)
	items := slices.Collect(ParseRSS(sampleRSS, "wire", now))

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}

	first := items[0]
	if first.Title != "L'Oréal posts Q3 results" {
		t.Errorf("title = %q", first.Title)
	}
	if first.ID != "https://example.com/loreal" || first.URL != first.ID {
		t.Errorf("id/url = %q/%q", first.ID, first.URL)
	}
	if first.Description != "Revenue up 8%" {
		t.Errorf("description = %q", first.Description)
	}
	if first.PublishedAt.UTC().Hour() != 0 || first.PublishedAt.Day() != 14 {
		t.Errorf("pubDate = %v", first.PublishedAt)
	}
	if first.SourceName != "wire" {
		t.Errorf("source = %q", first.SourceName)
	}

	second := items[1]
	if second.URL != "https://example.com/sccs" {
		t.Errorf("link not trimmed: %q", second.URL)
	}
	if !second.PublishedAt.Equal(now) {
		t.Errorf("unparseable pubDate should fall back to now, got %v", second.PublishedAt)
	}
}

func TestParseRSSTolerance(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", 0},
		{"html page", "<html><body>Just a moment...</body></html>", 0},
		{"truncated item", "<item><title>a</title><link>b</link>", 0},
		{"lookalike tag", "<itemize><title>a</title><link>b</link></itemize>", 0},
		{"two items", "<item><title>a</title><link>x</link></item><item><title>b</title><link>y</link></item>", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(ParseRSS(tt.body, "s", time.Now()))
			if len(got) != tt.want {
				t.Errorf("got %d items, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseRSSDescriptionCap(t *testing.T) {
	long := strings.Repeat("美", 150)
	body := "<item><title>t</title><link>l</link><description>" + long + "</description></item>"
	items := slices.Collect(ParseRSS(body, "s", time.Now()))
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	if n := len([]rune(items[0].Description)); n != MaxDescriptionRunes {
		t.Errorf("description has %d runes, want %d", n, MaxDescriptionRunes)
	}
}

func TestParseRSSStopsEarly(t *testing.T) {
	body := strings.Repeat("<item><title>t</title><link>l</link></item>", 5)
	n := 0
	for range ParseRSS(body, "s", time.Now()) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("n = %d", n)
	}
}

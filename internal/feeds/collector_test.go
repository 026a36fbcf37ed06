package feeds

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thinkscotty/podcaster/internal/models"
)

func rssWith(titles ...string) string {
	var b strings.Builder
	b.WriteString("<rss><channel>")
	for _, t := range titles {
		fmt.Fprintf(&b, "<item><title>%s</title><link>https://news.example.com/%s</link><description>about %s</description></item>", t, strings.ReplaceAll(t, " ", "-"), t)
	}
	b.WriteString("</channel></rss>")
	return b.String()
}

func testCollector() *Collector {
	c := NewCollector(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.timeout = 200 * time.Millisecond
	return c
}

func TestCollectIsolatesFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent")
		}
		io.WriteString(w, rssWith("one", "two"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{\"not\": \"xml\"}")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sources := []models.Source{
		{Name: "slow", URL: srv.URL + "/slow"},
		{Name: "ok", URL: srv.URL + "/ok"},
		{Name: "broken", URL: srv.URL + "/broken"},
		{Name: "garbage", URL: srv.URL + "/garbage"},
	}

	c := testCollector()
	results := c.FetchAll(context.Background(), sources)
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	for i, want := range []struct {
		name  string
		items int
		err   bool
	}{
		{"slow", 0, true},
		{"ok", 2, false},
		{"broken", 0, true},
		{"garbage", 0, false},
	} {
		res := results[i]
		if res.Source.Name != want.name {
			t.Errorf("results[%d] = %s, want %s", i, res.Source.Name, want.name)
		}
		if (res.Err != nil) != want.err {
			t.Errorf("%s: err = %v", want.name, res.Err)
		}
		if len(res.Items) != want.items {
			t.Errorf("%s: %d items, want %d", want.name, len(res.Items), want.items)
		}
	}

	items := c.Collect(context.Background(), sources)
	if len(items) != 2 {
		t.Errorf("Collect returned %d items, want 2", len(items))
	}
}

func TestCollectDeduplicatesAcrossSources(t *testing.T) {
	bodies := map[string]string{
		"/a": rssWith("s1", "s2", "s3"),
		"/b": rssWith("s4", "s5", "s2"),
		"/c": rssWith("s6", "s7", "s8"),
		"/d": rssWith("s9", "s10", "s7"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, bodies[r.URL.Path])
	}))
	defer srv.Close()

	var sources []models.Source
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		sources = append(sources, models.Source{Name: p, URL: srv.URL + p})
	}

	items := testCollector().Collect(context.Background(), sources)
	if len(items) != 10 {
		t.Fatalf("got %d unique items, want 10", len(items))
	}
	seen := map[string]bool{}
	for _, it := range items {
		if seen[it.Title] {
			t.Errorf("duplicate title %q", it.Title)
		}
		seen[it.Title] = true
	}
}

func TestDedupe(t *testing.T) {
	in := []models.RawItem{
		{ID: "1", Title: "a", SourceName: "x"},
		{ID: "2", Title: "b", SourceName: "x"},
		{ID: "3", Title: "a", SourceName: "y"},
		{ID: "4", Title: "c", SourceName: "y"},
	}
	got := Dedupe(in)

	want := []string{"3", "2", "4"}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("got[%d].ID = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestFetchHTMLSource(t *testing.T) {
	page := `<html><body><ul>
<li class="news"><a href="/story/1"> Estée Lauder  restructures </a><span class="sum">Layoffs announced</span></li>
<li class="news"><a href="https://other.example.com/2">Collagen standard adopted</a></li>
<li class="news"><span>no anchor</span></li>
</ul></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, page)
	}))
	defer srv.Close()

	src := models.Source{
		Name:                "listing",
		URL:                 srv.URL + "/news/",
		Format:              "html",
		ItemSelector:        "li.news",
		DescriptionSelector: ".sum",
	}
	items, err := testCollector().Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Title != "Estée Lauder restructures" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].URL != srv.URL+"/story/1" {
		t.Errorf("relative link not resolved: %q", items[0].URL)
	}
	if items[0].Description != "Layoffs announced" {
		t.Errorf("description = %q", items[0].Description)
	}
	if items[1].URL != "https://other.example.com/2" {
		t.Errorf("absolute link changed: %q", items[1].URL)
	}
}

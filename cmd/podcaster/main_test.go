package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thinkscotty/podcaster/internal/auth"
	"github.com/thinkscotty/podcaster/internal/database"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/pipeline"
)

func TestKeygenSkipsConfig(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", "/nonexistent/dir/config.yaml", "keygen"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("keygen: %v", err)
	}

	var key, hash string
	for _, line := range strings.Split(out.String(), "\n") {
		if v, ok := strings.CutPrefix(line, "Key:  "); ok {
			key = v
		}
		if v, ok := strings.CutPrefix(line, "Hash: "); ok {
			hash = v
		}
	}
	if err := auth.CheckKey(key, hash); err != nil {
		t.Fatalf("printed key does not match printed hash: %v", err)
	}
}

func TestRenderBundle(t *testing.T) {
	b := &models.RunBundle{
		RunID: "run-1",
		Title: "Beauty Daily 2025-10-14",
		Stories: []models.FilteredStory{
			{RawItem: models.RawItem{Title: "Regulator opinion", SourceName: "wire"}},
			{RawItem: models.RawItem{Title: "Industry insight"}, Fallback: true},
		},
		PodcastScript: "Mia: Hello.",
		IntroText:     "Today on the show.",
		Utterances:    1,
		CompletedAt:   time.Date(2025, 10, 14, 6, 30, 0, 0, time.UTC),
	}

	got := renderBundle(b, false)
	for _, want := range []string{"Beauty Daily 2025-10-14", "Regulator opinion", "Industry insight (fallback)", "none (text only)", "Today on the show."} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Mia: Hello.") {
		t.Error("script printed without --script")
	}
	if !strings.Contains(renderBundle(b, true), "Mia: Hello.") {
		t.Error("script missing with --script")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(out, "only") || strings.Contains(out, "<nil>") {
		t.Errorf("table = %s", out)
	}
}

func TestShowCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "podcaster.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "database:\n  path: " + dbPath + "\nlogging:\n  level: error\n  format: text\npipeline:\n  name: beauty-podcast\n  environment: staging\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	show := func() (string, error) {
		cmd := newRootCommand()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--config", cfgPath, "show", "2025-10-14"})
		err := cmd.Execute()
		return out.String(), err
	}

	if _, err := show(); err == nil || !strings.Contains(err.Error(), "no run recorded for 2025-10-14 in staging") {
		t.Fatalf("show on empty database err = %v", err)
	}

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(models.RunBundle{RunID: "run-1", Date: "2025-10-14", Title: "Beauty Daily 2025-10-14"})
	if err != nil {
		t.Fatal(err)
	}
	key := pipeline.RecordKey("staging", "beauty-podcast", "2025-10-14")
	if err := db.Put(context.Background(), key, string(data), 0); err != nil {
		t.Fatal(err)
	}
	db.Close()

	out, err := show()
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Beauty Daily 2025-10-14") || !strings.Contains(out, "Run run-1") {
		t.Errorf("output = %s", out)
	}
}

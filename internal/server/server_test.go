package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thinkscotty/podcaster/internal/auth"
	"github.com/thinkscotty/podcaster/internal/config"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/pipeline"
	"github.com/thinkscotty/podcaster/internal/scheduler"
	"github.com/thinkscotty/podcaster/internal/storage"
)

type fakeTrigger struct {
	busy   bool
	panics bool
	dates  []string
	opts   []pipeline.RunOptions
}

func (f *fakeTrigger) Start(_ context.Context, date string, fresh bool, opts pipeline.RunOptions) (models.RunContext, error) {
	if f.panics {
		panic("boom")
	}
	rc := pipeline.NewRunContext("production", "beauty-podcast", date, fresh)
	if f.busy {
		return rc, scheduler.ErrRunInProgress
	}
	f.dates = append(f.dates, date)
	f.opts = append(f.opts, opts)
	return rc, nil
}

type mapRecords map[string]string

func (m mapRecords) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

type testEnv struct {
	handler http.Handler
	trigger *fakeTrigger
	records mapRecords
	blobs   *storage.FileStore
}

func newTestEnv(t *testing.T, keyHash string) *testEnv {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Pipeline.Name = "beauty-podcast"
	cfg.Server.TriggerKeyHash = keyHash

	blobs, err := storage.NewFileStore(t.TempDir(), "http://localhost/static")
	if err != nil {
		t.Fatal(err)
	}
	env := &testEnv{trigger: &fakeTrigger{}, records: mapRecords{}, blobs: blobs}
	srv := New(context.Background(), &cfg, env.trigger, env.records, blobs, slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, r)
	return rec
}

func newCronRequest(body, remote, key string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/cron", strings.NewReader(body))
	if remote != "" {
		r.RemoteAddr = remote
	}
	if key != "" {
		r.Header.Set("Authorization", "Bearer "+key)
	}
	return r
}

func TestCronWithoutKeyHashIsLoopbackOnly(t *testing.T) {
	env := newTestEnv(t, "")

	if rec := env.do(newCronRequest("", "203.0.113.9:4000", "")); rec.Code != http.StatusForbidden {
		t.Errorf("remote status = %d, want 403", rec.Code)
	}

	rec := env.do(newCronRequest(`{"today":"2025-10-14"}`, "127.0.0.1:4000", ""))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("loopback status = %d, body %s", rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["date"] != "2025-10-14" || resp["run_id"] == "" {
		t.Errorf("response = %v", resp)
	}
}

func TestCronRequiresValidKey(t *testing.T) {
	key, hash, err := auth.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, hash)

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "pod_wrong", http.StatusUnauthorized},
		{"valid", key, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(newCronRequest(`{"custom_script":"Mia: Hi."}`, "127.0.0.1:4000", tt.key))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if len(env.trigger.opts) != 1 || env.trigger.opts[0].CustomScript != "Mia: Hi." {
		t.Errorf("trigger options = %+v", env.trigger.opts)
	}
	if env.trigger.dates[0] != "" {
		t.Errorf("date = %q, want empty (today)", env.trigger.dates[0])
	}
}

func TestCronRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, "")
	for _, body := range []string{`{"today":"14/10/2025"}`, `{not json`} {
		if rec := env.do(newCronRequest(body, "127.0.0.1:1", "")); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
	if len(env.trigger.dates) != 0 {
		t.Error("trigger called for bad input")
	}
}

func TestCronConflictWhileRunning(t *testing.T) {
	env := newTestEnv(t, "")
	env.trigger.busy = true
	if rec := env.do(newCronRequest("", "127.0.0.1:1", "")); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t, "")
	env.trigger.panics = true
	if rec := env.do(newCronRequest("", "127.0.0.1:1", "")); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestGetRun(t *testing.T) {
	env := newTestEnv(t, "")

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/2025-10-14", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d, want 404", rec.Code)
	}
	if rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/yesterday", nil)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}

	data, _ := json.Marshal(models.RunBundle{Date: "2025-10-14", Title: "Beauty Daily 2025-10-14", BlogPost: "post"})
	env.records[pipeline.RecordKey("production", "beauty-podcast", "2025-10-14")] = string(data)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/runs/2025-10-14", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var bundle models.RunBundle
	if err := json.NewDecoder(rec.Body).Decode(&bundle); err != nil {
		t.Fatal(err)
	}
	if bundle.Title != "Beauty Daily 2025-10-14" || bundle.BlogPost != "post" {
		t.Errorf("bundle = %+v", bundle)
	}
}

func TestStaticServesBlobs(t *testing.T) {
	env := newTestEnv(t, "")
	key := "tmp/2025/10/14/production/beauty-podcast-2025-10-14.mp3-0.mp3"
	if err := env.blobs.Put(context.Background(), key, []byte("ID3audio")); err != nil {
		t.Fatal(err)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/"+key, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ID3audio" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}

	if rec := env.do(httptest.NewRequest(http.MethodGet, "/static/missing.mp3", nil)); rec.Code != http.StatusNotFound {
		t.Errorf("missing blob status = %d, want 404", rec.Code)
	}
}

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetOverwrite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Put(ctx, "content:production:daily:2025-01-01", "v1", 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Put(ctx, "content:production:daily:2025-01-01", "v2", 0); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	got, ok, err := db.Get(ctx, "content:production:daily:2025-01-01")
	if err != nil || !ok {
		t.Fatalf("Get = %q, %v, %v", got, ok, err)
	}
	if got != "v2" {
		t.Errorf("Get = %q, want v2", got)
	}

	keys, err := db.List(ctx, "content:")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 {
		t.Errorf("overwrite should not duplicate keys, got %v", keys)
	}
}

func TestGetMissing(t *testing.T) {
	db := openTestDB(t)
	_, ok, err := db.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("Get missing = %v, %v", ok, err)
	}
	if _, err := db.MustGet(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MustGet err = %v, want ErrNotFound", err)
	}
}

func TestListPrefixIsolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, key := range []string{
		"tmp:run-a:story:bbb",
		"tmp:run-a:story:aaa",
		"tmp:run-a:audio:0",
		"tmp:run-ab:story:ccc",
		"tmp:run-b:story:ddd",
	} {
		if err := db.Put(ctx, key, "x", 0); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := db.List(ctx, "tmp:run-a:story:")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"tmp:run-a:story:aaa", "tmp:run-a:story:bbb"}
	if len(keys) != len(want) {
		t.Fatalf("List = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("keys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return now }

	if err := db.Put(ctx, "tmp:r:story:a", "short", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := db.Put(ctx, "tmp:r:story:b", "forever", 0); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)

	if _, ok, _ := db.Get(ctx, "tmp:r:story:a"); ok {
		t.Error("expired key should not be returned")
	}
	keys, _ := db.List(ctx, "tmp:r:")
	if len(keys) != 1 || keys[0] != "tmp:r:story:b" {
		t.Errorf("List after expiry = %v", keys)
	}

	n, err := db.DeleteExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired removed %d, want 1", n)
	}
}

func TestDescribe(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Put(ctx, "step:r:fetch raw news", `[{"id":"x"}]`, time.Hour); err != nil {
		t.Fatal(err)
	}
	entries, err := db.Describe(ctx, "step:r:")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Size != 12 || entries[0].ExpiresAt == nil {
		t.Fatalf("Describe = %+v", entries)
	}
}

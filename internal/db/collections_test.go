package db

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "collections.db"))
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}

func TestCollectionVersioning(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	if _, err := database.GetCollection(ctx, "availability"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	ok, err := database.InsertCollection(ctx, "availability", []byte("[]"))
	if err != nil || !ok {
		t.Fatalf("insert: ok=%v err=%v", ok, err)
	}
	ok, err = database.InsertCollection(ctx, "availability", []byte("[1]"))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if ok {
		t.Fatal("expected duplicate insert to be rejected")
	}

	ok, err = database.UpdateCollection(ctx, "availability", 1, []byte(`[{"date":"2025-03-10"}]`))
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	ok, err = database.UpdateCollection(ctx, "availability", 1, []byte("[]"))
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatal("expected stale version to be rejected")
	}

	row, err := database.GetCollection(ctx, "availability")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Version != 2 {
		t.Fatalf("version: %d", row.Version)
	}
	if string(row.Body) != `[{"date":"2025-03-10"}]` {
		t.Fatalf("body: %s", row.Body)
	}
}

func TestEnsureDSNOptions(t *testing.T) {
	got := ensureDSNOptions("data/app.db")
	if got != "data/app.db?_busy_timeout=5000&_journal_mode=WAL" {
		t.Fatalf("dsn: %s", got)
	}
	got = ensureDSNOptions("data/app.db?_journal_mode=DELETE")
	if got != "data/app.db?_journal_mode=DELETE&_busy_timeout=5000" {
		t.Fatalf("dsn: %s", got)
	}
}

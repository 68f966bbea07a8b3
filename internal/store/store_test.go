package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/codr1/folio/internal/testutil"
)

func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()

	factories := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemory() },
		"file": func(t *testing.T) Store {
			s, err := NewFile(filepath.Join(t.TempDir(), "data"))
			if err != nil {
				t.Fatalf("file store: %v", err)
			}
			return s
		},
		"sqlite": func(t *testing.T) Store {
			return NewSQLite(testutil.NewTestDB(t))
		},
	}

	if addr := os.Getenv("REDIS_TEST_ADDR"); addr != "" {
		factories["redis"] = func(t *testing.T) Store {
			s, err := NewRedis(context.Background(), RedisOptions{Addr: addr, KeyPrefix: "folio-test:" + t.Name()})
			if err != nil {
				t.Fatalf("redis store: %v", err)
			}
			return s
		}
	}
	return factories
}

func TestStoreCompareAndSwap(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			snap, err := s.Load(ctx, "availability")
			if err != nil {
				t.Fatalf("load empty: %v", err)
			}
			if snap.Version != "" || len(snap.Data) != 0 {
				t.Fatalf("expected empty snapshot, got %+v", snap)
			}

			v1, err := s.CompareAndSwap(ctx, "availability", "", []byte(`[]`))
			if err != nil {
				t.Fatalf("first write: %v", err)
			}
			if v1 == "" {
				t.Fatal("expected version token")
			}

			if _, err := s.CompareAndSwap(ctx, "availability", "", []byte(`[1]`)); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("expected conflict on stale create, got %v", err)
			}

			v2, err := s.CompareAndSwap(ctx, "availability", v1, []byte(`[{"date":"2025-03-10"}]`))
			if err != nil {
				t.Fatalf("second write: %v", err)
			}
			if v2 == v1 {
				t.Fatal("expected version to change")
			}

			if _, err := s.CompareAndSwap(ctx, "availability", v1, []byte(`[]`)); !errors.Is(err, ErrVersionConflict) {
				t.Fatalf("expected conflict on stale version, got %v", err)
			}

			snap, err = s.Load(ctx, "availability")
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if snap.Version != v2 {
				t.Fatalf("version: %s want %s", snap.Version, v2)
			}
			if string(snap.Data) != `[{"date":"2025-03-10"}]` {
				t.Fatalf("data: %s", snap.Data)
			}

			other, err := s.Load(ctx, "templates")
			if err != nil {
				t.Fatalf("load other: %v", err)
			}
			if other.Version != "" {
				t.Fatalf("collections must be independent, got %+v", other)
			}
		})
	}
}

func TestStoreConcurrentWritersOnlyOneWins(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			base, err := s.CompareAndSwap(ctx, "availability", "", []byte(`[]`))
			if err != nil {
				t.Fatalf("seed: %v", err)
			}

			const writers = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := s.CompareAndSwap(ctx, "availability", base, []byte{'[', byte('0' + i), ']'})
					if err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					} else if !errors.Is(err, ErrVersionConflict) {
						t.Errorf("writer %d: %v", i, err)
					}
				}(i)
			}
			wg.Wait()

			if wins != 1 {
				t.Fatalf("expected exactly one winning writer, got %d", wins)
			}
		})
	}
}

func TestFileStoreWritesReferenceLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := NewFile(dir)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	if _, err := s.CompareAndSwap(context.Background(), "availability", "", []byte(`[]`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "availability.json"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("file contents: %s", data)
	}
}

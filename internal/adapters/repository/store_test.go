package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "scores.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]Store{"memory": NewMemoryStore(), "sqlite": sq}
}

func TestStore_PutListClear(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			entries := []model.ScoreEntry{
				{Session: "s1", Competitor: "bo", Route: "T2", Score: 9.5, RecordedAt: at},
				{Session: "s1", Competitor: "ana", Route: "T1", Score: 25, RecordedAt: at},
				{Session: "s1", Competitor: "ana", Route: "T2", Score: 0, RecordedAt: at},
				{Session: "s2", Competitor: "ana", Route: "T1", Score: 10, RecordedAt: at},
			}
			for _, e := range entries {
				if err := store.Put(ctx, e); err != nil {
					t.Fatalf("put: %v", err)
				}
			}

			got, err := store.List(ctx, "s1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 entries, got %d", len(got))
			}
			if got[0].Competitor != "ana" || got[0].Route != "T1" || got[0].Score != 25 {
				t.Errorf("unexpected first entry %+v", got[0])
			}
			if got[1].Score != 0 {
				t.Errorf("expected a stored zero, got %v", got[1].Score)
			}
			if !got[0].RecordedAt.Equal(at) {
				t.Errorf("expected recorded_at %v, got %v", at, got[0].RecordedAt)
			}

			// A second entry for the same route replaces the first.
			if err := store.Put(ctx, model.ScoreEntry{Session: "s1", Competitor: "ana", Route: "T1", Score: 24.9, RecordedAt: at}); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, _ = store.List(ctx, "s1")
			if len(got) != 3 || got[0].Score != 24.9 {
				t.Errorf("expected replaced score 24.9, got %+v", got)
			}

			if err := store.Clear(ctx, "s1"); err != nil {
				t.Fatalf("clear: %v", err)
			}
			got, _ = store.List(ctx, "s1")
			if len(got) != 0 {
				t.Errorf("expected no entries after clear, got %d", len(got))
			}
			other, _ := store.List(ctx, "s2")
			if len(other) != 1 {
				t.Errorf("clear touched another session: %d entries", len(other))
			}
		})
	}
}

func TestStore_RejectsIncompleteEntries(t *testing.T) {
	ctx := context.Background()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Put(ctx, model.ScoreEntry{Session: "s1", Route: "T1"})
			if !errors.Is(err, ErrInvalidEntry) {
				t.Errorf("expected ErrInvalidEntry, got %v", err)
			}
		})
	}
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.List(ctx, "s1"); !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	}
}

func TestSQLiteStore_ReopenKeepsScores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scores.db")

	first, err := OpenSQLite(ctx, path, WithBusyTimeout(time.Second))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Put(ctx, model.ScoreEntry{Session: "s1", Competitor: "ana", Route: "T1", Score: 25}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := first.Put(ctx, model.ScoreEntry{Session: "s1", Competitor: "ana", Route: "T1", Score: 1}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}

	second, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Score != 25 {
		t.Errorf("expected persisted score, got %+v", got)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), "  "); err == nil {
		t.Error("expected an error for an empty path")
	}
}

func TestMemoryStore_Count(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Put(ctx, model.ScoreEntry{Session: "a", Competitor: "x", Route: "T1"})
	_ = m.Put(ctx, model.ScoreEntry{Session: "b", Competitor: "x", Route: "T1"})
	if m.Count() != 2 {
		t.Errorf("expected 2, got %d", m.Count())
	}
}

func TestOpenSQLite_AppliesPragmas(t *testing.T) {
	ctx := context.Background()
	sq, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "scores.db"), WithBusyTimeout(7*time.Second))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sq.Close()

	var mode string
	if err := sq.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected wal journal, got %q", mode)
	}

	var busy int
	if err := sq.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if busy != 7000 {
		t.Errorf("expected busy_timeout 7000, got %d", busy)
	}

	var fk int
	if err := sq.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign keys on, got %d", fk)
	}
}

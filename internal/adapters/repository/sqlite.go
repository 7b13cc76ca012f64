package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	session     TEXT NOT NULL,
	competitor  TEXT NOT NULL,
	route       TEXT NOT NULL,
	score       REAL NOT NULL,
	recorded_at INTEGER NOT NULL,
	PRIMARY KEY (session, competitor, route)
)`

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db          *sql.DB
	busyTimeout time.Duration
	logger      logger.Logger
	closed      atomic.Bool
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	s := &SQLiteStore{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("scores")
	}

	// modernc.org/sqlite applies _pragma parameters on every new connection.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)",
		filepath.Clean(path), s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	s.db = db
	s.logger.Info(ctx, "score store opened", logger.String("path", path))
	return s, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil || !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) usable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Put inserts or replaces an entry.
func (s *SQLiteStore) Put(ctx context.Context, e model.ScoreEntry) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if err := validate(e); err != nil {
		return err
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO scores (session, competitor, route, score, recorded_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (session, competitor, route) DO UPDATE SET
	score = excluded.score,
	recorded_at = excluded.recorded_at
`,
		e.Session, e.Competitor, e.Route, e.Score, e.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put score: %w", err)
	}
	return nil
}

// List returns the session's entries ordered by competitor then route.
func (s *SQLiteStore) List(ctx context.Context, session string) ([]model.ScoreEntry, error) {
	if err := s.usable(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT competitor, route, score, recorded_at
FROM scores
WHERE session = ?
ORDER BY competitor, route
`, session)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []model.ScoreEntry
	for rows.Next() {
		var (
			e  model.ScoreEntry
			ms int64
		)
		if err := rows.Scan(&e.Competitor, &e.Route, &e.Score, &ms); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		e.Session = session
		e.RecordedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return out, nil
}

// Clear drops every entry of the session.
func (s *SQLiteStore) Clear(ctx context.Context, session string) error {
	if err := s.usable(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scores WHERE session = ?`, session); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	return nil
}

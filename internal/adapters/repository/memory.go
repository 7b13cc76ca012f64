package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/belay/internal/domain/model"
)

type scoreKey struct {
	competitor string
	route      string
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[scoreKey]model.ScoreEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]map[scoreKey]model.ScoreEntry)}
}

// Put inserts or replaces an entry.
func (m *MemoryStore) Put(ctx context.Context, e model.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(e); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey := m.sessions[e.Session]
	if byKey == nil {
		byKey = make(map[scoreKey]model.ScoreEntry)
		m.sessions[e.Session] = byKey
	}
	byKey[scoreKey{e.Competitor, e.Route}] = e
	return nil
}

// List returns the session's entries ordered by competitor then route.
func (m *MemoryStore) List(ctx context.Context, session string) ([]model.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]model.ScoreEntry, 0, len(m.sessions[session]))
	for _, e := range m.sessions[session] {
		out = append(out, e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Competitor != out[j].Competitor {
			return out[i].Competitor < out[j].Competitor
		}
		return out[i].Route < out[j].Route
	})
	return out, nil
}

// Clear drops every entry of the session.
func (m *MemoryStore) Clear(ctx context.Context, session string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, session)
	m.mu.Unlock()
	return nil
}

// Count returns the number of stored entries across sessions.
func (m *MemoryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, byKey := range m.sessions {
		n += len(byKey)
	}
	return n
}

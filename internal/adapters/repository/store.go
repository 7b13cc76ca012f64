// Package repository stores recorded scores. MemoryStore keeps them for the
// life of the process; SQLiteStore persists them across restarts.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/belay/internal/domain/model"
)

// Store persists score entries keyed by session, competitor and route.
type Store interface {
	Put(ctx context.Context, e model.ScoreEntry) error
	List(ctx context.Context, session string) ([]model.ScoreEntry, error)
	Clear(ctx context.Context, session string) error
}

func validate(e model.ScoreEntry) error {
	switch {
	case strings.TrimSpace(e.Session) == "":
		return fmt.Errorf("%w: session is required", ErrInvalidEntry)
	case strings.TrimSpace(e.Competitor) == "":
		return fmt.Errorf("%w: competitor is required", ErrInvalidEntry)
	case strings.TrimSpace(e.Route) == "":
		return fmt.Errorf("%w: route is required", ErrInvalidEntry)
	}
	return nil
}

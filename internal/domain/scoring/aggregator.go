package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/pkg/logger"
)

// Store persists score entries. A later entry for the same session,
// competitor and route replaces the earlier one.
type Store interface {
	Put(ctx context.Context, e model.ScoreEntry) error
	List(ctx context.Context, session string) ([]model.ScoreEntry, error)
	Clear(ctx context.Context, session string) error
}

// Sheet maps competitor to route to score. Absent routes were not attempted.
type Sheet map[string]map[string]float64

// Total sums a competitor's scores over routes. Missing and non-finite
// values count as zero.
func (sh Sheet) Total(competitor string, routes []string) float64 {
	var total float64
	byRoute := sh[competitor]
	for _, r := range routes {
		v, ok := byRoute[r]
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total += v
	}
	return total
}

// Totals returns Total for every competitor of the session.
func (sh Sheet) Totals(s *model.Session) map[string]float64 {
	out := make(map[string]float64, len(s.Competitors))
	for _, c := range s.Competitors {
		out[c.Name] = sh.Total(c.Name, s.Routes)
	}
	return out
}

// Aggregator validates, scores and stores judge entries.
type Aggregator struct {
	scorer Scorer
	store  Store
	now    func() time.Time
	logger logger.Logger
}

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithNow sets the timestamp source for recorded entries.
func WithNow(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAggregatorLogger sets a custom logger.
func WithAggregatorLogger(l logger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator returns an aggregator writing through to store.
func NewAggregator(scorer Scorer, store Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{scorer: scorer, store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("scoring")
	}
	return a
}

// RecordScore scores in and stores it for the session. Unknown competitors
// or routes return ErrNotFound and store nothing.
func (a *Aggregator) RecordScore(ctx context.Context, s *model.Session, in Input) (Result, error) {
	if _, ok := s.Competitor(in.Competitor); !ok {
		a.logger.Warn(ctx, "score for unknown competitor ignored", logger.String("competitor", in.Competitor))
		return Result{}, fmt.Errorf("%w: competitor %q", model.ErrNotFound, in.Competitor)
	}
	if !s.HasRoute(in.Route) {
		a.logger.Warn(ctx, "score for unknown route ignored", logger.String("route", in.Route))
		return Result{}, fmt.Errorf("%w: route %q", model.ErrNotFound, in.Route)
	}

	res, err := a.scorer.Score(ctx, in)
	if err != nil {
		return Result{}, err
	}
	entry := model.ScoreEntry{
		Session:    s.ID,
		Competitor: in.Competitor,
		Route:      in.Route,
		Score:      res.Score,
		RecordedAt: a.now(),
	}
	if err := a.store.Put(ctx, entry); err != nil {
		return Result{}, fmt.Errorf("store score: %w", err)
	}
	return res, nil
}

// Sheet loads every stored score of the session.
func (a *Aggregator) Sheet(ctx context.Context, s *model.Session) (Sheet, error) {
	entries, err := a.store.List(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	sh := make(Sheet, len(s.Competitors))
	for _, e := range entries {
		if sh[e.Competitor] == nil {
			sh[e.Competitor] = make(map[string]float64)
		}
		sh[e.Competitor][e.Route] = e.Score
	}
	return sh, nil
}

// Total returns one competitor's total.
func (a *Aggregator) Total(ctx context.Context, s *model.Session, competitor string) (float64, error) {
	sh, err := a.Sheet(ctx, s)
	if err != nil {
		return 0, err
	}
	return sh.Total(competitor, s.Routes), nil
}

// Clear removes every stored score of the session.
func (a *Aggregator) Clear(ctx context.Context, s *model.Session) error {
	if err := a.store.Clear(ctx, s.ID); err != nil {
		return fmt.Errorf("clear scores: %w", err)
	}
	return nil
}

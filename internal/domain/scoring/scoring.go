// Package scoring converts raw top/zone attempt counts into route points and
// aggregates them per competitor.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/belay/internal/domain/model"
)

// Default point scale: a top on the first attempt is worth 25, a zone 10,
// and every further attempt costs a tenth of a point.
const (
	defaultTopPoints      = 25.0
	defaultZonePoints     = 10.0
	defaultAttemptPenalty = 0.1
)

// Basis tells which result a score was computed from.
type Basis string

// Score bases.
const (
	BasisTop  Basis = "top"
	BasisZone Basis = "zone"
	BasisNone Basis = "none"
)

// Input is a judge's entry for one competitor on one route. Top and Zone
// hold the attempt numbers as typed; empty means not reached.
type Input struct {
	Competitor string
	Route      string
	Top        string
	Zone       string
}

// Result contains the computed score.
type Result struct {
	Competitor string
	Route      string
	Score      float64
	Basis      Basis
}

// Scorer computes a score from an input.
type Scorer interface {
	Score(ctx context.Context, in Input) (Result, error)
}

// Option applies a configuration option to the BoulderScorer.
type Option func(*BoulderScorer)

// WithTopPoints sets the points for a first-attempt top.
func WithTopPoints(p float64) Option {
	return func(s *BoulderScorer) {
		if p > 0 {
			s.topPoints = p
		}
	}
}

// WithZonePoints sets the points for a first-attempt zone.
func WithZonePoints(p float64) Option {
	return func(s *BoulderScorer) {
		if p > 0 {
			s.zonePoints = p
		}
	}
}

// WithAttemptPenalty sets the deduction per extra attempt.
func WithAttemptPenalty(p float64) Option {
	return func(s *BoulderScorer) {
		if p >= 0 {
			s.attemptPenalty = p
		}
	}
}

// BoulderScorer implements Scorer with the top/zone attempt formula.
type BoulderScorer struct {
	topPoints      float64
	zonePoints     float64
	attemptPenalty float64
}

// NewBoulderScorer creates a scorer with the standard point scale.
func NewBoulderScorer(opts ...Option) *BoulderScorer {
	s := &BoulderScorer{
		topPoints:      defaultTopPoints,
		zonePoints:     defaultZonePoints,
		attemptPenalty: defaultAttemptPenalty,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score converts the entry. A top takes precedence over a zone; an attempt
// value of 0 means the hold was not reached and scores 0.
func (s *BoulderScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("score cancelled: %w", err)
	}
	res := Result{Competitor: in.Competitor, Route: in.Route, Basis: BasisNone}

	top, hasTop, err := attempts(in.Top)
	if err != nil {
		return Result{}, fmt.Errorf("top: %w", err)
	}
	zone, hasZone, err := attempts(in.Zone)
	if err != nil {
		return Result{}, fmt.Errorf("zone: %w", err)
	}

	switch {
	case hasTop:
		res.Basis = BasisTop
		res.Score = s.points(s.topPoints, top)
	case hasZone:
		res.Basis = BasisZone
		res.Score = s.points(s.zonePoints, zone)
	}
	return res, nil
}

func (s *BoulderScorer) points(base, n float64) float64 {
	if n == 0 {
		return 0
	}
	return math.Max(0, base-(n-1)*s.attemptPenalty)
}

// attempts parses an attempt count. Empty input is "not supplied".
func attempts(raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("%w: %q is not a number", model.ErrInvalidInput, raw)
	}
	if v < 0 {
		return 0, false, fmt.Errorf("%w: %q is negative", model.ErrInvalidInput, raw)
	}
	return v, true, nil
}

// Package rotation assigns competitors to routes at each rotation boundary.
//
// The engine is stateless: everything it needs lives on the session it is
// handed, and it must be called from the session's owning goroutine.
package rotation

import (
	"context"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/pkg/logger"
)

// Engine advances competitors through their group's route sequence.
type Engine struct {
	logger logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns a rotation engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("rotation")
	}
	return e
}

// Advance processes one rotation boundary for every group and then
// increments the session's rotation counter.
//
// Per group, the first competitor in queue order who has not started is
// started at the current counter. Every started competitor is then placed
// from its elapsed rotations: one route per dwell boundaries, isolation on
// the boundaries between routes, and Finished once the last route's dwell
// has begun to elapse. Finishing takes precedence over isolation.
func (e *Engine) Advance(ctx context.Context, s *model.Session) {
	for _, g := range s.Groups {
		e.advanceGroup(s, g)
	}
	s.Rotation++
	e.logger.Debug(ctx, "rotation advanced",
		logger.Int("rotation", s.Rotation),
		logger.Int("round", s.Round),
	)
}

func (e *Engine) advanceGroup(s *model.Session, g *model.Group) {
	dwell := s.Type.Dwell()
	for _, c := range g.Competitors {
		if !c.Started() {
			c.Start(s.Rotation)
			break
		}
	}

	last := len(g.Routes) - 1
	for _, c := range g.Competitors {
		if !c.Started() {
			continue
		}
		c.Transit = false
		delta := s.Rotation - *c.StartRotation
		idx := delta / dwell
		phase := delta % dwell

		if idx < len(g.Routes) {
			c.State = model.RouteState(g.Routes[idx])
		}
		if idx >= last && phase >= 1 {
			c.State = model.State{Kind: model.Finished}
			continue
		}
		if c.State.Kind == model.Finished {
			continue
		}
		switch s.Type {
		case model.Qualifiers, model.Semifinals:
			if phase == 1 {
				c.State = model.State{Kind: model.Isolation}
			}
		case model.Finals:
			if phase >= 1 && phase <= 3 {
				c.State = model.State{Kind: model.Isolation}
			}
		}
	}
}

// UpdateTransit runs when an active round ends. Competitors on their group's
// last route, or already finished, become Finished. Competitors on any other
// route keep their route and are flagged as in transit when inTransit is
// set. Everyone else is not in transit.
func (e *Engine) UpdateTransit(ctx context.Context, s *model.Session, inTransit bool) {
	finished := 0
	for _, g := range s.Groups {
		last := g.LastRoute()
		for _, c := range g.Competitors {
			switch {
			case c.State.Kind == model.Finished || (last != "" && c.State.On(last)):
				c.State = model.State{Kind: model.Finished}
				c.Transit = false
				finished++
			case c.State.Kind == model.OnRoute:
				c.Transit = inTransit
			default:
				c.Transit = false
			}
		}
	}
	e.logger.Debug(ctx, "transit status updated",
		logger.Bool("in_transit", inTransit),
		logger.Int("finished", finished),
	)
}

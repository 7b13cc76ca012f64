package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/belay/internal/adapters/auth"
	"github.com/okian/belay/internal/adapters/feed"
	"github.com/okian/belay/internal/adapters/roster"
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/scoring"
	"github.com/okian/belay/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum number of pending commands.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many score submission ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets where recorded scores are kept. The service closes it on
// Stop when it has a Close method.
func WithStore(store scoring.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithPublisher sets the display feed for snapshots and alerts.
func WithPublisher(p feed.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithRoster sets the competitor list used when a setup names no competitors.
func WithRoster(r roster.Store) Option {
	return func(s *Service) {
		if r != nil {
			s.roster = r
		}
	}
}

// WithGate guards Reset behind an operator password.
func WithGate(g *auth.Gate) Option {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithClock sets the time source for the countdown and its timers.
func WithClock(clk clockwork.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clk = clk
		}
	}
}

// WithDurations overrides the phase lengths. Zero fields keep their defaults.
func WithDurations(d clock.Durations) Option {
	return func(s *Service) {
		s.durations = d
	}
}

// WithMinTickDelay floors the drift-compensated tick delay.
func WithMinTickDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.minDelay = d
		}
	}
}

// WithContestDefaults fills the route count and pause length of setups that
// leave them out.
func WithContestDefaults(routes, pauseMinutes int) Option {
	return func(s *Service) {
		if routes > 0 {
			s.defaultRoutes = routes
		}
		if pauseMinutes > 0 {
			s.defaultPause = pauseMinutes
		}
	}
}

// WithBootContest sets up a contest as soon as the service starts.
func WithBootContest(req SetupRequest) Option {
	return func(s *Service) {
		if req.Type != "" {
			s.boot = &req
		}
	}
}

package contest

import (
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/rotation"
	"github.com/okian/belay/pkg/logger"
)

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithClockOptions passes options to the clock the orchestrator creates.
func WithClockOptions(opts ...clock.Option) Option {
	return func(o *Orchestrator) {
		o.clockOpts = append(o.clockOpts, opts...)
	}
}

// WithEngine sets the rotation engine.
func WithEngine(e *rotation.Engine) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithObserver receives ticks and alerts.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithIDGenerator sets the session id source.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

package clock

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/belay/pkg/logger"
)

// Option applies a configuration option to the Clock.
type Option func(*Clock)

// WithClock sets the time source used to measure tick handling time.
func WithClock(clk clockwork.Clock) Option {
	return func(c *Clock) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithDurations overrides the phase lengths. Zero fields keep their defaults.
func WithDurations(d Durations) Option {
	return func(c *Clock) {
		if d.Preview > 0 {
			c.durations.Preview = d.Preview
		}
		if d.ActiveRound > 0 {
			c.durations.ActiveRound = d.ActiveRound
		}
		if d.Transit > 0 {
			c.durations.Transit = d.Transit
		}
		if d.Pause > 0 {
			c.durations.Pause = d.Pause
		}
	}
}

// WithAlerts replaces the remaining-seconds alert table.
func WithAlerts(alerts map[int]time.Duration) Option {
	return func(c *Clock) {
		if alerts != nil {
			c.alerts = alerts
		}
	}
}

// WithMinDelay floors the compensated tick delay.
func WithMinDelay(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.minDelay = d
		}
	}
}

// WithLogger sets a custom logger for the clock.
func WithLogger(l logger.Logger) Option {
	return func(c *Clock) {
		if l != nil {
			c.logger = l
		}
	}
}

// Package clock implements the contest countdown: a phase state machine that
// ticks once per second, fires alerts at fixed remaining-second marks and
// hands phase completions to a listener.
//
// A Clock is not safe for concurrent use. All methods, including Fire, must
// be called from the goroutine that owns it; the Scheduler is responsible for
// bringing timer expirations back to that goroutine.
package clock

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

const (
	defaultInterval = time.Second
	defaultMinDelay = time.Millisecond
	finalAlert      = time.Second
)

// DefaultAlerts maps remaining seconds to alert length.
func DefaultAlerts() map[int]time.Duration {
	return map[int]time.Duration{
		60: time.Second,
		3:  500 * time.Millisecond,
		2:  500 * time.Millisecond,
		1:  500 * time.Millisecond,
	}
}

// Listener receives clock events on the owning goroutine.
type Listener interface {
	// OnTick is called with every displayed value.
	OnTick(ctx context.Context, st State)
	// OnAlert asks for an audible signal of length d.
	OnAlert(ctx context.Context, d time.Duration)
	// OnPhaseComplete is called once when ended reaches zero, after the clock
	// has moved to the next phase. The listener may restart or stop the clock.
	OnPhaseComplete(ctx context.Context, ended Phase)
}

// Clock is the contest countdown.
type Clock struct {
	listener  Listener
	scheduler Scheduler
	clock     clockwork.Clock
	durations Durations
	alerts    map[int]time.Duration
	interval  time.Duration
	minDelay  time.Duration
	logger    logger.Logger

	mode       model.ContestType
	configured bool

	remaining int
	phase     Phase
	running   bool
	armed     bool

	// manual holds a value set by Adjust or SetManual that the next Start
	// uses instead of the nominal duration.
	manual          bool
	manualRemaining int

	token  uint64
	cancel Cancel
}

// New returns an unconfigured clock. Until Configure is called Start is a no-op.
func New(listener Listener, scheduler Scheduler, opts ...Option) *Clock {
	c := &Clock{
		listener:  listener,
		scheduler: scheduler,
		clock:     clockwork.NewRealClock(),
		durations: DefaultDurations(),
		alerts:    DefaultAlerts(),
		interval:  defaultInterval,
		minDelay:  defaultMinDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("clock")
	}
	return c
}

// Configure sets the contest type and the pause length, and resets the clock.
func (c *Clock) Configure(ctx context.Context, mode model.ContestType, pause time.Duration) {
	c.mode = mode
	c.configured = true
	if pause > 0 {
		c.durations.Pause = pause
	}
	c.Reset(ctx)
}

// State returns the current reading.
func (c *Clock) State() State {
	return State{Remaining: c.remaining, Phase: c.phase, Running: c.running, ManuallyAdjusted: c.manual}
}

// Phase returns the current phase.
func (c *Clock) Phase() Phase { return c.phase }

// Armed reports whether a timed start is counting down in Idle.
func (c *Clock) Armed() bool { return c.armed }

// Start begins phase from its nominal duration, or from the manually set
// value when one is pending. It is a no-op on an unconfigured clock.
func (c *Clock) Start(ctx context.Context, phase Phase) error {
	if !c.configured {
		c.logger.Warn(ctx, "start ignored: no contest type configured")
		return nil
	}
	switch phase {
	case Preview, ActiveRound, Pause:
	default:
		return fmt.Errorf("%w: cannot start phase %s", model.ErrInvalidInput, phase)
	}

	c.stopPending()
	c.phase = phase
	c.armed = false
	if c.manual {
		c.remaining = c.manualRemaining
		c.manual = false
	} else {
		c.remaining = c.nominal(phase)
	}
	c.running = true
	c.logger.Info(ctx, "clock started", logger.String("phase", phase.String()), logger.Int("remaining", c.remaining))
	c.tick(ctx, c.clock.Now())
	return nil
}

// StartAt arms a start for wall-clock time at. Until then the clock counts
// down in the Idle phase; reaching zero completes Idle. A pending manual
// value survives the countdown.
func (c *Clock) StartAt(ctx context.Context, at time.Time) error {
	if !c.configured {
		return fmt.Errorf("%w: no contest type", model.ErrConfiguration)
	}
	until := at.Sub(c.clock.Now())
	if until <= 0 {
		return fmt.Errorf("%w: start time is in the past", model.ErrInvalidInput)
	}

	c.stopPending()
	c.phase = Idle
	c.remaining = int(math.Ceil(until.Seconds()))
	c.running = true
	c.armed = true
	c.listener.OnTick(ctx, c.State())
	// The first decrement lands on the sub-second remainder so zero falls on at.
	first := until - time.Duration(c.remaining-1)*c.interval
	c.token++
	c.cancel = c.scheduler.Schedule(first, c.token)
	c.logger.Info(ctx, "timed start armed", logger.Duration("in", until))
	return nil
}

// Pause freezes the countdown, keeping the remaining value.
func (c *Clock) Pause(ctx context.Context) {
	if !c.running {
		return
	}
	c.stopPending()
	c.running = false
	c.listener.OnTick(ctx, c.State())
}

// Resume continues the paused phase or timed-start countdown; the next
// decrement happens one interval later.
func (c *Clock) Resume(ctx context.Context) {
	if c.running || !c.configured || c.phase == Stopped || (c.phase == Idle && !c.armed) {
		return
	}
	c.running = true
	c.listener.OnTick(ctx, c.State())
	c.schedule(ctx, c.clock.Now())
}

// Adjust sets the remaining seconds. Values are clamped at zero and, during
// Transit, at the transit length. A pending tick is cancelled first; a running
// clock continues from the new value one interval later. During a timed-start
// countdown only the countdown changes.
func (c *Clock) Adjust(ctx context.Context, seconds int) {
	c.stopPending()
	if seconds < 0 {
		seconds = 0
	}
	if limit := int(c.durations.Transit / time.Second); c.phase == Transit && seconds > limit {
		seconds = limit
	}
	c.remaining = seconds
	if !c.armed {
		c.manual = true
		c.manualRemaining = seconds
	}
	c.listener.OnTick(ctx, c.State())
	if c.running {
		c.schedule(ctx, c.clock.Now())
	}
}

// SetManual sets the length of the next started phase. While a timed start
// is armed the countdown is left alone.
func (c *Clock) SetManual(ctx context.Context, seconds int) {
	if !c.armed {
		c.Adjust(ctx, seconds)
		return
	}
	if seconds < 0 {
		seconds = 0
	}
	c.manual = true
	c.manualRemaining = seconds
	c.listener.OnTick(ctx, c.State())
}

// Stop halts the clock for good; only Reset or Start revive it.
func (c *Clock) Stop(ctx context.Context) {
	c.stopPending()
	c.running = false
	c.phase = Stopped
	c.listener.OnTick(ctx, c.State())
}

// Reset cancels any pending tick and returns to Idle showing the opening
// phase's duration.
func (c *Clock) Reset(ctx context.Context) {
	c.stopPending()
	c.running = false
	c.armed = false
	c.manual = false
	c.manualRemaining = 0
	c.phase = Idle
	c.remaining = c.nominal(Idle)
	c.listener.OnTick(ctx, c.State())
}

// Fire handles a scheduler delivery. Tokens from cancelled schedules are ignored.
func (c *Clock) Fire(ctx context.Context, token uint64) {
	if token != c.token || !c.running || c.cancel == nil {
		return
	}
	c.cancel = nil
	start := c.clock.Now()
	if c.remaining > 0 {
		c.remaining--
	}
	c.tick(ctx, start)
}

// tick publishes the current value, fires alerts and either completes the
// phase or schedules the next decrement.
func (c *Clock) tick(ctx context.Context, start time.Time) {
	c.listener.OnTick(ctx, c.State())
	if d, ok := c.alerts[c.remaining]; ok {
		c.alert(ctx, d)
	}
	if c.remaining == 0 {
		c.complete(ctx)
		return
	}
	c.schedule(ctx, start)
}

// schedule arms the next decrement, subtracting the time already spent
// handling this tick and flooring at minDelay.
func (c *Clock) schedule(_ context.Context, start time.Time) {
	elapsed := c.clock.Since(start)
	metrics.RecordTick(float64(elapsed.Microseconds()) / 1000)
	delay := c.interval - elapsed
	if delay < c.minDelay {
		delay = c.minDelay
	}
	c.token++
	c.cancel = c.scheduler.Schedule(delay, c.token)
}

func (c *Clock) complete(ctx context.Context) {
	ended := c.phase
	c.alert(ctx, finalAlert)
	if ended == Idle {
		c.armed = false
	} else {
		c.manual = false
	}
	metrics.RecordPhaseTransition(ended.String())

	switch {
	case ended == Idle || ended == Pause:
		c.running = false
	case c.mode.Manual():
		c.running = false
		c.phase = Stopped
	case ended == ActiveRound:
		c.enter(Transit)
	default:
		c.enter(ActiveRound)
	}
	c.logger.Debug(ctx, "phase complete", logger.String("ended", ended.String()), logger.String("next", c.phase.String()))

	token := c.token
	c.listener.OnPhaseComplete(ctx, ended)
	if c.token != token || !c.running {
		return
	}
	c.tick(ctx, c.clock.Now())
}

func (c *Clock) enter(phase Phase) {
	c.phase = phase
	c.remaining = c.nominal(phase)
	c.running = true
}

func (c *Clock) alert(ctx context.Context, d time.Duration) {
	metrics.RecordBeep()
	c.listener.OnAlert(ctx, d)
}

// stopPending cancels the scheduled tick and invalidates its token.
func (c *Clock) stopPending() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.token++
}

func (c *Clock) nominal(phase Phase) int {
	var d time.Duration
	switch phase {
	case Idle:
		if !c.configured {
			return 0
		}
		if c.mode.HasPreview() {
			d = c.durations.Preview
		} else {
			d = c.durations.ActiveRound
		}
	case Preview:
		d = c.durations.Preview
	case ActiveRound:
		d = c.durations.ActiveRound
	case Transit:
		d = c.durations.Transit
	case Pause:
		d = c.durations.Pause
	}
	return int(d / time.Second)
}

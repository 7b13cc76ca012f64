// Package contest runs the round lifecycle of a bouldering contest. The
// Orchestrator owns the session and the clock, turns clock phase
// completions into rotation advances, and moves the contest from round one
// through the pause into round two and on to its end.
//
// An Orchestrator is not safe for concurrent use; the host serializes every
// call, including Fire, onto one goroutine.
package contest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/ranking"
	"github.com/okian/belay/internal/domain/rotation"
	"github.com/okian/belay/internal/domain/scoring"
	"github.com/okian/belay/internal/domain/types"
	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// Observer is told about every displayed clock value and every alert.
// Both are called on the owning goroutine and must not block.
type Observer interface {
	OnTick(ctx context.Context, st clock.State)
	OnAlert(ctx context.Context, d time.Duration, st clock.State)
}

// Orchestrator glues the clock to the rotation engine.
type Orchestrator struct {
	clock    *clock.Clock
	engine   *rotation.Engine
	scores   *scoring.Aggregator
	observer Observer
	newID    func() string
	logger   logger.Logger

	clockOpts []clock.Option
	session   *model.Session
}

// New returns an orchestrator whose clock schedules ticks on scheduler and
// whose scores go through scores. Until Setup succeeds every operation fails
// with model.ErrConfiguration.
func New(scheduler clock.Scheduler, scores *scoring.Aggregator, opts ...Option) *Orchestrator {
	o := &Orchestrator{scores: scores, newID: uuid.NewString}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("contest")
	}
	if o.engine == nil {
		o.engine = rotation.New()
	}
	o.clock = clock.New(o, scheduler, o.clockOpts...)
	return o
}

// Setup validates settings and replaces the current contest with a fresh
// one. On error the previous contest is left untouched.
func (o *Orchestrator) Setup(ctx context.Context, settings model.Settings) (*model.Session, error) {
	s, err := model.NewSession(o.newID(), settings)
	if err != nil {
		return nil, err
	}
	o.session = s
	o.clock.Configure(ctx, s.Type, time.Duration(s.PauseMinutes)*time.Minute)
	o.logger.Info(ctx, "contest set up",
		logger.String("session", s.ID),
		logger.String("type", string(s.Type)),
		logger.Int("routes", len(s.Routes)),
		logger.Int("competitors", len(s.Competitors)),
	)
	return s, nil
}

// Configured reports whether Setup has succeeded.
func (o *Orchestrator) Configured() bool { return o.session != nil }

// Session returns the current session, or nil before Setup. The caller must
// not retain it beyond the current command.
func (o *Orchestrator) Session() *model.Session { return o.session }

// ClockState returns the current clock reading.
func (o *Orchestrator) ClockState() clock.State { return o.clock.State() }

func (o *Orchestrator) ready() error {
	if o.session == nil {
		return fmt.Errorf("%w: contest not set up", model.ErrConfiguration)
	}
	return nil
}

// Start opens the contest: qualifiers and CRB go straight to the active
// round, the other types begin with the route preview.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.startable(); err != nil {
		return err
	}
	return o.begin(ctx)
}

// StartAt arms Start for wall-clock time at.
func (o *Orchestrator) StartAt(ctx context.Context, at time.Time) error {
	if err := o.startable(); err != nil {
		return err
	}
	return o.clock.StartAt(ctx, at)
}

func (o *Orchestrator) startable() error {
	if err := o.ready(); err != nil {
		return err
	}
	if o.session.Finished {
		return fmt.Errorf("%w: contest finished, reset first", model.ErrConfiguration)
	}
	if st := o.clock.State(); st.Phase != clock.Idle || o.session.Rotation > 0 {
		return fmt.Errorf("%w: contest already started", model.ErrConfiguration)
	}
	return nil
}

func (o *Orchestrator) begin(ctx context.Context) error {
	s := o.session
	switch {
	case s.Type.Manual():
		return o.clock.Start(ctx, clock.ActiveRound)
	case s.Type.HasPreview():
		return o.clock.Start(ctx, clock.Preview)
	default:
		o.advance(ctx)
		return o.clock.Start(ctx, clock.ActiveRound)
	}
}

// Pause freezes the clock, including an armed timed start.
func (o *Orchestrator) Pause(ctx context.Context) error {
	if err := o.counting(); err != nil {
		return err
	}
	o.clock.Pause(ctx)
	return nil
}

// Resume continues a paused clock or a paused timed-start countdown.
func (o *Orchestrator) Resume(ctx context.Context) error {
	if err := o.counting(); err != nil {
		return err
	}
	o.clock.Resume(ctx)
	return nil
}

// counting rejects pause and resume when no countdown exists.
func (o *Orchestrator) counting() error {
	if err := o.ready(); err != nil {
		return err
	}
	switch o.clock.Phase() {
	case clock.Stopped:
		return fmt.Errorf("%w: clock stopped", model.ErrConfiguration)
	case clock.Idle:
		if !o.clock.Armed() {
			return fmt.Errorf("%w: contest not started", model.ErrConfiguration)
		}
	}
	return nil
}

// Adjust overrides the remaining seconds of the current phase.
func (o *Orchestrator) Adjust(ctx context.Context, seconds int) error {
	if err := o.ready(); err != nil {
		return err
	}
	o.clock.Adjust(ctx, seconds)
	return nil
}

// SetManualTime sets the countdown a CRB contest will run. Other contest
// types use Adjust.
func (o *Orchestrator) SetManualTime(ctx context.Context, seconds int) error {
	if err := o.ready(); err != nil {
		return err
	}
	if !o.session.Type.Manual() {
		return fmt.Errorf("%w: manual time applies to crb contests only", model.ErrInvalidInput)
	}
	if seconds <= 0 {
		return fmt.Errorf("%w: manual time must be positive", model.ErrInvalidInput)
	}
	o.clock.SetManual(ctx, seconds)
	return nil
}

// Fire delivers a scheduled tick to the clock.
func (o *Orchestrator) Fire(ctx context.Context, token uint64) {
	o.clock.Fire(ctx, token)
}

// OnRotationBoundary runs when an active round begins after the preview or
// a transit. A completed round ends here; otherwise the engine advances.
func (o *Orchestrator) OnRotationBoundary(ctx context.Context) error {
	if err := o.ready(); err != nil {
		return err
	}
	done, err := o.CheckRoundComplete(ctx)
	if err != nil || done {
		return err
	}
	o.advance(ctx)
	return nil
}

// OnActiveRoundComplete settles competitors as the clock enters transit.
// A CRB contest ends with its single countdown.
func (o *Orchestrator) OnActiveRoundComplete(ctx context.Context) error {
	if err := o.ready(); err != nil {
		return err
	}
	if o.session.Type.Manual() {
		o.finish(ctx)
		return nil
	}
	o.engine.UpdateTransit(ctx, o.session, o.clock.Phase() == clock.Transit)
	return nil
}

// CheckRoundComplete ends the round once every competitor has finished:
// round one of a two-round contest goes into the pause, any other round
// ends the contest. It reports whether the round was complete.
func (o *Orchestrator) CheckRoundComplete(ctx context.Context) (bool, error) {
	if err := o.ready(); err != nil {
		return false, err
	}
	s := o.session
	if s.Finished {
		return true, nil
	}
	if !s.AllFinished() {
		return false, nil
	}
	if o.clock.Phase() == clock.Pause {
		return true, nil
	}
	metrics.RecordRoundCompleted()
	if s.Round < s.Type.Rounds() {
		o.logger.Info(ctx, "round complete, pause begins", logger.Int("round", s.Round))
		return true, o.clock.Start(ctx, clock.Pause)
	}
	o.finish(ctx)
	return true, nil
}

// OnPauseComplete starts the next round: the groups swap routes, everyone
// returns to the call zone and the first boundary is processed at once.
func (o *Orchestrator) OnPauseComplete(ctx context.Context) error {
	if err := o.ready(); err != nil {
		return err
	}
	s := o.session
	if s.Round >= s.Type.Rounds() {
		return fmt.Errorf("%w: no round after %d", model.ErrConfiguration, s.Round)
	}
	s.SwapGroups()
	s.Round++
	o.logger.Info(ctx, "next round begins", logger.Int("round", s.Round))
	o.advance(ctx)
	return o.clock.Start(ctx, clock.ActiveRound)
}

// Reset stops the clock, returns every competitor to the call zone and
// drops the recorded scores.
func (o *Orchestrator) Reset(ctx context.Context) error {
	if err := o.ready(); err != nil {
		return err
	}
	o.clock.Reset(ctx)
	o.session.Reset()
	if err := o.scores.Clear(ctx, o.session); err != nil {
		return err
	}
	o.logger.Info(ctx, "contest reset", logger.String("session", o.session.ID))
	return nil
}

// RecordScore scores a judge entry for the current contest.
func (o *Orchestrator) RecordScore(ctx context.Context, in scoring.Input) (scoring.Result, error) {
	if err := o.ready(); err != nil {
		return scoring.Result{}, err
	}
	return o.scores.RecordScore(ctx, o.session, in)
}

// Standings returns the ranking together with the per-route score sheet.
func (o *Orchestrator) Standings(ctx context.Context) ([]types.Entry, scoring.Sheet, error) {
	if err := o.ready(); err != nil {
		return nil, nil, err
	}
	sh, err := o.scores.Sheet(ctx, o.session)
	if err != nil {
		return nil, nil, err
	}
	return ranking.Rank(o.session.Competitors, sh.Totals(o.session)), sh, nil
}

func (o *Orchestrator) advance(ctx context.Context) {
	o.engine.Advance(ctx, o.session)
	metrics.RecordRotation()
}

func (o *Orchestrator) finish(ctx context.Context) {
	if o.clock.Phase() != clock.Stopped {
		o.clock.Stop(ctx)
	}
	o.session.Finished = true
	o.logger.Info(ctx, "contest finished", logger.String("session", o.session.ID))
}

// OnTick implements clock.Listener.
func (o *Orchestrator) OnTick(ctx context.Context, st clock.State) {
	metrics.UpdateClock(st.Remaining, int(st.Phase), st.Running)
	if o.observer != nil {
		o.observer.OnTick(ctx, st)
	}
}

// OnAlert implements clock.Listener.
func (o *Orchestrator) OnAlert(ctx context.Context, d time.Duration) {
	if o.observer != nil {
		o.observer.OnAlert(ctx, d, o.clock.State())
	}
}

// OnPhaseComplete implements clock.Listener.
func (o *Orchestrator) OnPhaseComplete(ctx context.Context, ended clock.Phase) {
	var err error
	switch ended {
	case clock.Idle:
		err = o.begin(ctx)
	case clock.Preview, clock.Transit:
		err = o.OnRotationBoundary(ctx)
	case clock.ActiveRound:
		err = o.OnActiveRoundComplete(ctx)
	case clock.Pause:
		err = o.OnPauseComplete(ctx)
	}
	if err != nil {
		metrics.RecordErrorByComponent("contest", "phase_complete")
		o.logger.Error(ctx, "phase completion failed", logger.String("ended", ended.String()), logger.Error(err))
	}
}

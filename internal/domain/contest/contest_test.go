package contest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/belay/internal/adapters/repository"
	"github.com/okian/belay/internal/domain/clock"
	"github.com/okian/belay/internal/domain/contest"
	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/scoring"
	"github.com/okian/belay/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type pending struct {
	delay     time.Duration
	token     uint64
	cancelled bool
}

type fakeScheduler struct {
	calls []*pending
}

func (s *fakeScheduler) Schedule(d time.Duration, token uint64) clock.Cancel {
	p := &pending{delay: d, token: token}
	s.calls = append(s.calls, p)
	return func() { p.cancelled = true }
}

type observer struct {
	ticks  int
	alerts []time.Duration
}

func (o *observer) OnTick(context.Context, clock.State) { o.ticks++ }

func (o *observer) OnAlert(_ context.Context, d time.Duration, _ clock.State) {
	o.alerts = append(o.alerts, d)
}

type harness struct {
	o     *contest.Orchestrator
	sched *fakeScheduler
	obs   *observer
	fake  *clockwork.FakeClock
	store *repository.MemoryStore
}

func newHarness(d clock.Durations) *harness {
	h := &harness{sched: &fakeScheduler{}, obs: &observer{}, fake: clockwork.NewFakeClock(), store: repository.NewMemoryStore()}
	agg := scoring.NewAggregator(scoring.NewBoulderScorer(), h.store)
	h.o = contest.New(h.sched, agg,
		contest.WithObserver(h.obs),
		contest.WithIDGenerator(func() string { return "sess-1" }),
		contest.WithClockOptions(clock.WithClock(h.fake), clock.WithDurations(d)),
	)
	return h
}

// step delivers the latest scheduled tick once.
func (h *harness) step(ctx context.Context) {
	last := h.sched.calls[len(h.sched.calls)-1]
	h.o.Fire(ctx, last.token)
}

func (h *harness) steps(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		h.step(ctx)
	}
}

func states(s *model.Session) map[string]string {
	out := make(map[string]string, len(s.Competitors))
	for _, c := range s.Competitors {
		out[c.Name] = c.State.String()
	}
	return out
}

func entrants(names ...string) []model.Entrant {
	out := make([]model.Entrant, 0, len(names))
	for _, n := range names {
		out = append(out, model.Entrant{Name: n})
	}
	return out
}

var short = clock.Durations{Preview: 2 * time.Second, ActiveRound: 3 * time.Second, Transit: 2 * time.Second}

func TestOrchestratorBeforeSetup(t *testing.T) {
	Convey("Given an orchestrator without a contest", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		So(h.o.Configured(), ShouldBeFalse)
		So(h.o.Session(), ShouldBeNil)

		Convey("Then every operation reports a configuration error", func() {
			calls := []error{
				h.o.Start(ctx),
				h.o.StartAt(ctx, time.Now().Add(time.Minute)),
				h.o.Pause(ctx),
				h.o.Resume(ctx),
				h.o.Adjust(ctx, 10),
				h.o.SetManualTime(ctx, 10),
				h.o.OnRotationBoundary(ctx),
				h.o.OnActiveRoundComplete(ctx),
				h.o.OnPauseComplete(ctx),
				h.o.Reset(ctx),
			}
			_, err := h.o.CheckRoundComplete(ctx)
			calls = append(calls, err)
			_, err = h.o.RecordScore(ctx, scoring.Input{Competitor: "a", Route: "T1", Top: "1"})
			calls = append(calls, err)
			_, _, err = h.o.Standings(ctx)
			calls = append(calls, err)
			for _, err := range calls {
				So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
			}
			So(h.sched.calls, ShouldBeEmpty)
		})
	})
}

func TestOrchestratorSetup(t *testing.T) {
	Convey("Given an orchestrator", t, func() {
		ctx := context.Background()
		h := newHarness(short)

		Convey("When setup is invalid", func() {
			_, err := h.o.Setup(ctx, model.Settings{Type: model.Semifinals, Routes: 0, Entrants: entrants("a")})

			Convey("Then nothing is configured", func() {
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
				So(h.o.Configured(), ShouldBeFalse)
			})
		})

		Convey("When a semifinal is set up", func() {
			s, err := h.o.Setup(ctx, model.Settings{Type: model.Semifinals, Routes: 2, Entrants: entrants("a", "b")})
			So(err, ShouldBeNil)

			Convey("Then the clock shows the preview length", func() {
				So(s.ID, ShouldEqual, "sess-1")
				So(h.o.ClockState().Phase, ShouldEqual, clock.Idle)
				So(h.o.ClockState().Remaining, ShouldEqual, 2)
			})

			Convey("Then a failed second setup keeps the first contest", func() {
				_, err := h.o.Setup(ctx, model.Settings{Type: model.Finals, Routes: 2, Entrants: entrants("x", "x")})
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
				So(h.o.Session(), ShouldEqual, s)
			})
		})
	})
}

func TestOrchestratorQualifiers(t *testing.T) {
	Convey("Given qualifiers with one competitor per group", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		s, err := h.o.Setup(ctx, model.Settings{Type: model.Qualifiers, Routes: 2, PauseMinutes: 1, Entrants: entrants("ana", "bo")})
		So(err, ShouldBeNil)

		Convey("When the contest starts", func() {
			So(h.o.Start(ctx), ShouldBeNil)

			Convey("Then the first boundary is processed at once", func() {
				So(states(s), ShouldResemble, map[string]string{"ana": "T1", "bo": "T2"})
				So(s.Rotation, ShouldEqual, 1)
				So(h.o.ClockState().Phase, ShouldEqual, clock.ActiveRound)
				So(h.o.ClockState().Remaining, ShouldEqual, 3)
			})

			Convey("Then starting again is rejected", func() {
				So(errors.Is(h.o.Start(ctx), model.ErrConfiguration), ShouldBeTrue)
			})

			Convey("When the active round ends", func() {
				h.steps(ctx, 3)

				Convey("Then both competitors finished their group's last route", func() {
					So(h.o.ClockState().Phase, ShouldEqual, clock.Transit)
					So(states(s), ShouldResemble, map[string]string{"ana": "finished", "bo": "finished"})
				})

				Convey("When transit ends in round one", func() {
					h.steps(ctx, 2)

					Convey("Then the pause begins instead of the contest ending", func() {
						So(h.o.ClockState().Phase, ShouldEqual, clock.Pause)
						So(h.o.ClockState().Remaining, ShouldEqual, 60)
						So(s.Finished, ShouldBeFalse)
						So(s.Round, ShouldEqual, 1)
					})

					Convey("When the pause ends", func() {
						h.steps(ctx, 60)

						Convey("Then round two runs on the swapped groups", func() {
							So(s.Round, ShouldEqual, 2)
							So(s.Groups[0].Competitors[0].Name, ShouldEqual, "bo")
							So(states(s), ShouldResemble, map[string]string{"ana": "T2", "bo": "T1"})
							So(h.o.ClockState().Phase, ShouldEqual, clock.ActiveRound)
						})

						Convey("When round two completes", func() {
							h.steps(ctx, 3)
							h.steps(ctx, 2)

							Convey("Then the contest terminates", func() {
								So(s.Finished, ShouldBeTrue)
								So(h.o.ClockState().Phase, ShouldEqual, clock.Stopped)
								So(h.o.ClockState().Running, ShouldBeFalse)
								So(errors.Is(h.o.Start(ctx), model.ErrConfiguration), ShouldBeTrue)
							})
						})
					})
				})
			})
		})
	})
}

func TestOrchestratorSemifinalRunsToTheEnd(t *testing.T) {
	Convey("Given a semifinal with three competitors on two routes", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		s, err := h.o.Setup(ctx, model.Settings{Type: model.Semifinals, Routes: 2, Entrants: entrants("a", "b", "c")})
		So(err, ShouldBeNil)
		So(h.o.Start(ctx), ShouldBeNil)

		Convey("Then the preview runs first without rotation", func() {
			So(h.o.ClockState().Phase, ShouldEqual, clock.Preview)
			So(s.Rotation, ShouldEqual, 0)
			So(states(s)["a"], ShouldEqual, "call_zone")
		})

		Convey("When the preview ends", func() {
			h.steps(ctx, 2)

			Convey("Then the first competitor goes on the first route", func() {
				So(h.o.ClockState().Phase, ShouldEqual, clock.ActiveRound)
				So(states(s), ShouldResemble, map[string]string{"a": "T1", "b": "call_zone", "c": "call_zone"})
			})

			Convey("When the active round ends", func() {
				h.steps(ctx, 3)

				Convey("Then the climber on a non-final route is in transit", func() {
					c, _ := s.Competitor("a")
					So(c.Transit, ShouldBeTrue)
					So(c.State.String(), ShouldEqual, "T1")
				})
			})
		})

		Convey("When the clock runs until the contest ends", func() {
			for i := 0; i < 500 && !s.Finished; i++ {
				h.step(ctx)
			}

			Convey("Then everyone finished and the clock stopped", func() {
				So(s.Finished, ShouldBeTrue)
				So(s.AllFinished(), ShouldBeTrue)
				So(s.Round, ShouldEqual, 1)
				So(h.o.ClockState().Phase, ShouldEqual, clock.Stopped)
			})

			Convey("Then the observer heard the phase-end alerts", func() {
				So(len(h.obs.alerts), ShouldBeGreaterThan, 0)
				So(h.obs.ticks, ShouldBeGreaterThan, 0)
			})
		})
	})
}

func TestOrchestratorCRB(t *testing.T) {
	Convey("Given a CRB contest without competitors", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		s, err := h.o.Setup(ctx, model.Settings{Type: model.CRB, Routes: 1})
		So(err, ShouldBeNil)

		Convey("When a manual time is set", func() {
			So(h.o.SetManualTime(ctx, 5), ShouldBeNil)
			So(errors.Is(h.o.SetManualTime(ctx, 0), model.ErrInvalidInput), ShouldBeTrue)
			So(h.o.Start(ctx), ShouldBeNil)

			Convey("Then the countdown starts from it and stops the contest at zero", func() {
				So(h.o.ClockState().Remaining, ShouldEqual, 5)
				h.steps(ctx, 5)
				So(h.o.ClockState().Phase, ShouldEqual, clock.Stopped)
				So(s.Finished, ShouldBeTrue)
			})
		})
	})

	Convey("Given a semifinal", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		_, err := h.o.Setup(ctx, model.Settings{Type: model.Semifinals, Routes: 1, Entrants: entrants("a")})
		So(err, ShouldBeNil)

		Convey("Then a manual CRB time is rejected", func() {
			So(errors.Is(h.o.SetManualTime(ctx, 30), model.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestOrchestratorStartAt(t *testing.T) {
	Convey("Given a qualifier armed for a timed start", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		s, err := h.o.Setup(ctx, model.Settings{Type: model.Qualifiers, Routes: 2, PauseMinutes: 1, Entrants: entrants("a", "b")})
		So(err, ShouldBeNil)
		So(errors.Is(h.o.StartAt(ctx, h.fake.Now().Add(-time.Second)), model.ErrInvalidInput), ShouldBeTrue)
		So(h.o.StartAt(ctx, h.fake.Now().Add(3*time.Second)), ShouldBeNil)

		Convey("Then the clock counts down in idle", func() {
			So(h.o.ClockState().Phase, ShouldEqual, clock.Idle)
			So(h.o.ClockState().Remaining, ShouldEqual, 3)
			So(s.Rotation, ShouldEqual, 0)
		})

		Convey("When the start time arrives", func() {
			h.steps(ctx, 3)

			Convey("Then the contest starts", func() {
				So(h.o.ClockState().Phase, ShouldEqual, clock.ActiveRound)
				So(s.Rotation, ShouldEqual, 1)
			})
		})

		Convey("When the countdown is paused and resumed", func() {
			h.step(ctx)
			So(h.o.Pause(ctx), ShouldBeNil)
			So(h.o.ClockState().Running, ShouldBeFalse)
			So(h.o.Resume(ctx), ShouldBeNil)

			Convey("Then the contest still starts on schedule", func() {
				So(h.o.ClockState().Running, ShouldBeTrue)
				So(h.o.ClockState().Remaining, ShouldEqual, 2)
				h.steps(ctx, 2)
				So(h.o.ClockState().Phase, ShouldEqual, clock.ActiveRound)
				So(s.Rotation, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a CRB contest with a manual time", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		_, err := h.o.Setup(ctx, model.Settings{Type: model.CRB, Routes: 1})
		So(err, ShouldBeNil)
		So(h.o.SetManualTime(ctx, 90), ShouldBeNil)

		Convey("When a timed start is armed", func() {
			So(h.o.StartAt(ctx, h.fake.Now().Add(2*time.Second)), ShouldBeNil)
			So(h.o.ClockState().Remaining, ShouldEqual, 2)
			h.steps(ctx, 2)

			Convey("Then the round runs for the manual time", func() {
				st := h.o.ClockState()
				So(st.Phase, ShouldEqual, clock.ActiveRound)
				So(st.Remaining, ShouldEqual, 90)
				So(st.Running, ShouldBeTrue)
			})
		})
	})

	Convey("Given a contest that has not started", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		_, err := h.o.Setup(ctx, model.Settings{Type: model.Semifinals, Routes: 1, Entrants: entrants("a")})
		So(err, ShouldBeNil)

		Convey("Then pause and resume are rejected", func() {
			So(errors.Is(h.o.Pause(ctx), model.ErrConfiguration), ShouldBeTrue)
			So(errors.Is(h.o.Resume(ctx), model.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestOrchestratorScoresAndReset(t *testing.T) {
	Convey("Given a running semifinal with scores", t, func() {
		ctx := context.Background()
		h := newHarness(short)
		s, err := h.o.Setup(ctx, model.Settings{Type: model.Semifinals, Routes: 2, Entrants: entrants("a", "b", "c")})
		So(err, ShouldBeNil)
		So(h.o.Start(ctx), ShouldBeNil)
		h.steps(ctx, 2)

		_, err = h.o.RecordScore(ctx, scoring.Input{Competitor: "b", Route: "T1", Top: "1"})
		So(err, ShouldBeNil)
		_, err = h.o.RecordScore(ctx, scoring.Input{Competitor: "c", Route: "T2", Top: "1"})
		So(err, ShouldBeNil)
		_, err = h.o.RecordScore(ctx, scoring.Input{Competitor: "a", Route: "T1", Zone: "6"})
		So(err, ShouldBeNil)

		Convey("Then standings rank with ties", func() {
			entries, sheet, err := h.o.Standings(ctx)
			So(err, ShouldBeNil)
			So(entries[0].Competitor, ShouldEqual, "b")
			So(entries[1].Competitor, ShouldEqual, "c")
			So(entries[1].Rank, ShouldEqual, 1)
			So(entries[2].Rank, ShouldEqual, 3)
			So(entries[2].Total, ShouldAlmostEqual, 9.5, 1e-9)
			So(sheet["a"]["T1"], ShouldAlmostEqual, 9.5, 1e-9)
		})

		Convey("Then an unknown route is rejected", func() {
			_, err := h.o.RecordScore(ctx, scoring.Input{Competitor: "a", Route: "T7", Top: "1"})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the contest is reset", func() {
			pendingTick := h.sched.calls[len(h.sched.calls)-1]
			So(h.o.Reset(ctx), ShouldBeNil)

			Convey("Then the pending tick is cancelled and stale deliveries are ignored", func() {
				So(pendingTick.cancelled, ShouldBeTrue)
				before := h.o.ClockState()
				h.o.Fire(ctx, pendingTick.token)
				So(h.o.ClockState(), ShouldResemble, before)
			})

			Convey("Then competitors and scores are cleared", func() {
				So(states(s), ShouldResemble, map[string]string{"a": "call_zone", "b": "call_zone", "c": "call_zone"})
				So(s.Rotation, ShouldEqual, 0)
				So(h.store.Count(), ShouldEqual, 0)
				So(h.o.ClockState().Phase, ShouldEqual, clock.Idle)
				So(h.o.ClockState().Running, ShouldBeFalse)
			})

			Convey("Then the contest can start again", func() {
				So(h.o.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestOrchestratorClockPassthrough(t *testing.T) {
	Convey("Given a started qualifier", t, func() {
		ctx := context.Background()
		h := newHarness(clock.Durations{ActiveRound: 120 * time.Second, Transit: 10 * time.Second})
		_, err := h.o.Setup(ctx, model.Settings{Type: model.Qualifiers, Routes: 2, PauseMinutes: 2, Entrants: entrants("a", "b")})
		So(err, ShouldBeNil)
		So(h.o.Start(ctx), ShouldBeNil)

		Convey("When paused, adjusted and resumed", func() {
			So(h.o.Pause(ctx), ShouldBeNil)
			So(h.o.ClockState().Running, ShouldBeFalse)
			So(h.o.Adjust(ctx, 61), ShouldBeNil)
			So(h.o.Resume(ctx), ShouldBeNil)

			Convey("Then the clock continues from the adjusted value", func() {
				st := h.o.ClockState()
				So(st.Running, ShouldBeTrue)
				So(st.Remaining, ShouldEqual, 61)
				So(st.ManuallyAdjusted, ShouldBeTrue)
				h.step(ctx)
				So(h.o.ClockState().Remaining, ShouldEqual, 60)
				So(h.obs.alerts, ShouldContain, time.Second)
			})
		})
	})
}

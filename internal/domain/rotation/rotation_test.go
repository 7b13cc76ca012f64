package rotation_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/rotation"
	"github.com/okian/belay/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func session(t model.ContestType, routes int, names ...string) *model.Session {
	es := make([]model.Entrant, len(names))
	for i, n := range names {
		es[i] = model.Entrant{Name: n}
	}
	s, err := model.NewSession("test", model.Settings{Type: t, Routes: routes, PauseMinutes: 5, Entrants: es})
	if err != nil {
		panic(err)
	}
	return s
}

func states(s *model.Session) []string {
	out := make([]string, len(s.Competitors))
	for i, c := range s.Competitors {
		out[i] = c.State.String()
	}
	return out
}

func TestAdvanceSemifinals(t *testing.T) {
	Convey("Given a semifinal with two routes and three competitors", t, func() {
		ctx := context.Background()
		e := rotation.New()
		s := session(model.Semifinals, 2, "a", "b", "c")

		Convey("When the first boundary is processed", func() {
			e.Advance(ctx, s)

			Convey("Then only the first competitor starts", func() {
				So(states(s), ShouldResemble, []string{"T1", "call_zone", "call_zone"})
				So(*s.Competitors[0].StartRotation, ShouldEqual, 0)
				So(s.Competitors[1].Started(), ShouldBeFalse)
				So(s.Rotation, ShouldEqual, 1)
			})
		})

		Convey("When boundaries keep coming", func() {
			var seen [][]string
			for i := 0; i < 7; i++ {
				e.Advance(ctx, s)
				seen = append(seen, states(s))
			}

			Convey("Then competitors alternate route and isolation and then finish", func() {
				So(seen, ShouldResemble, [][]string{
					{"T1", "call_zone", "call_zone"},
					{"isolation", "T1", "call_zone"},
					{"T2", "isolation", "T1"},
					{"finished", "T2", "isolation"},
					{"finished", "finished", "T2"},
					{"finished", "finished", "finished"},
					{"finished", "finished", "finished"},
				})
				So(s.AllFinished(), ShouldBeTrue)
			})
		})
	})
}

func TestAdvanceFinals(t *testing.T) {
	Convey("Given a final with four routes", t, func() {
		ctx := context.Background()
		e := rotation.New()
		s := session(model.Finals, 4, "solo")
		c := s.Competitors[0]

		Convey("Then the competitor spends four boundaries per route", func() {
			var seen []string
			for i := 0; i < 15; i++ {
				e.Advance(ctx, s)
				seen = append(seen, c.State.String())
			}
			So(seen, ShouldResemble, []string{
				"T1", "isolation", "isolation", "isolation",
				"T2", "isolation", "isolation", "isolation",
				"T3", "isolation", "isolation", "isolation",
				"T4", "finished", "finished",
			})
		})
	})
}

func TestAdvanceFinishPrecedence(t *testing.T) {
	Convey("Given a single route semifinal", t, func() {
		ctx := context.Background()
		e := rotation.New()
		s := session(model.Semifinals, 1, "a")

		Convey("When the dwell on the only route elapses", func() {
			e.Advance(ctx, s)
			e.Advance(ctx, s)

			Convey("Then the competitor finishes instead of going to isolation", func() {
				So(s.Competitors[0].State.Kind, ShouldEqual, model.Finished)
			})
		})
	})
}

func TestAdvanceQualifierGroups(t *testing.T) {
	Convey("Given qualifiers with four routes and four competitors", t, func() {
		ctx := context.Background()
		e := rotation.New()
		s := session(model.Qualifiers, 4, "a1", "a2", "b1", "b2")

		Convey("When one boundary is processed", func() {
			e.Advance(ctx, s)

			Convey("Then each group starts its own first competitor on its own routes", func() {
				So(states(s), ShouldResemble, []string{"T1", "call_zone", "T3", "call_zone"})
				So(s.Rotation, ShouldEqual, 1)
			})
		})

		Convey("When a second boundary is processed", func() {
			e.Advance(ctx, s)
			e.Advance(ctx, s)

			Convey("Then the first climbers isolate while the next ones start", func() {
				So(states(s), ShouldResemble, []string{"isolation", "T1", "isolation", "T3"})
			})
		})
	})
}

func TestUpdateTransit(t *testing.T) {
	Convey("Given competitors spread over a semifinal", t, func() {
		ctx := context.Background()
		e := rotation.New()
		s := session(model.Semifinals, 3, "a", "b", "c", "d")
		s.Competitors[0].State = model.RouteState("T3")
		s.Competitors[1].State = model.RouteState("T1")
		s.Competitors[2].State = model.State{Kind: model.Isolation}
		s.Competitors[2].Transit = true
		s.Competitors[3].State = model.State{Kind: model.Finished}
		s.Competitors[3].Transit = true

		Convey("When the active round ends into transit", func() {
			e.UpdateTransit(ctx, s, true)

			Convey("Then last-route and finished competitors are finished", func() {
				So(s.Competitors[0].State.Kind, ShouldEqual, model.Finished)
				So(s.Competitors[0].Transit, ShouldBeFalse)
				So(s.Competitors[3].State.Kind, ShouldEqual, model.Finished)
				So(s.Competitors[3].Transit, ShouldBeFalse)
			})

			Convey("Then route occupants keep the route and walk in transit", func() {
				So(s.Competitors[1].State.String(), ShouldEqual, "T1")
				So(s.Competitors[1].Transit, ShouldBeTrue)
				So(s.Competitors[2].Transit, ShouldBeFalse)
			})
		})

		Convey("When the clock is not in transit", func() {
			e.UpdateTransit(ctx, s, false)
			So(s.Competitors[1].Transit, ShouldBeFalse)
		})
	})

	Convey("Given qualifier groups", t, func() {
		ctx := context.Background()
		e := rotation.New()
		s := session(model.Qualifiers, 4, "a1", "b1")
		s.Competitors[0].State = model.RouteState("T2")
		s.Competitors[1].State = model.RouteState("T3")

		Convey("Then the last route is judged per group", func() {
			e.UpdateTransit(ctx, s, true)
			So(s.Competitors[0].State.Kind, ShouldEqual, model.Finished)
			So(s.Competitors[1].State.String(), ShouldEqual, "T3")
			So(s.Competitors[1].Transit, ShouldBeTrue)
		})
	})
}

package ranking_test

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/ranking"
	"github.com/okian/belay/internal/domain/types"
)

func roster(names ...string) []*model.Competitor {
	out := make([]*model.Competitor, 0, len(names))
	for _, n := range names {
		out = append(out, &model.Competitor{Name: n, Club: "club-" + n})
	}
	return out
}

func ranks(entries []types.Entry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Rank
	}
	return out
}

func names(entries []types.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Competitor
	}
	return out
}

func TestRank(t *testing.T) {
	Convey("Given competitors with totals", t, func() {
		cs := roster("A", "B", "C", "D")

		Convey("When totals tie at the top", func() {
			out := ranking.Rank(cs, map[string]float64{"A": 50, "B": 50, "C": 40})

			Convey("Then ranks skip after the tie", func() {
				So(ranks(out), ShouldResemble, []int{1, 1, 3, 4})
				So(names(out), ShouldResemble, []string{"A", "B", "C", "D"})
			})

			Convey("Then clubs travel with the entries", func() {
				So(out[2].Club, ShouldEqual, "club-C")
			})

			Convey("Then a missing total counts as zero", func() {
				So(out[3].Total, ShouldEqual, 0.0)
			})
		})

		Convey("When input order differs among equals", func() {
			out := ranking.Rank(roster("Z", "Y", "X"), map[string]float64{"Z": 10, "Y": 30, "X": 10})

			Convey("Then the sort is stable", func() {
				So(names(out), ShouldResemble, []string{"Y", "Z", "X"})
				So(ranks(out), ShouldResemble, []int{1, 2, 2})
			})
		})

		Convey("When totals differ only by summation noise", func() {
			a := 0.1 + 0.2
			out := ranking.Rank(roster("p", "q"), map[string]float64{"p": a, "q": 0.3})
			So(ranks(out), ShouldResemble, []int{1, 1})
		})

		Convey("When a total is not finite", func() {
			out := ranking.Rank(roster("n", "m"), map[string]float64{"n": math.NaN(), "m": 1})
			So(names(out), ShouldResemble, []string{"m", "n"})
			So(out[1].Total, ShouldEqual, 0.0)
		})

		Convey("When ranking twice", func() {
			totals := map[string]float64{"A": 3, "B": 9, "C": 3, "D": 1}
			first := ranking.Rank(cs, totals)
			second := ranking.Rank(cs, totals)

			Convey("Then the result is identical", func() {
				So(second, ShouldResemble, first)
			})

			Convey("Then ranks never decrease down the list", func() {
				for i := 1; i < len(first); i++ {
					So(first[i].Rank, ShouldBeGreaterThanOrEqualTo, first[i-1].Rank)
					So(first[i].Total, ShouldBeLessThanOrEqualTo, first[i-1].Total)
				}
			})

			Convey("Then the input is untouched", func() {
				So(cs[0].Name, ShouldEqual, "A")
			})
		})

		Convey("When everyone is tied", func() {
			out := ranking.Rank(cs, nil)
			So(ranks(out), ShouldResemble, []int{1, 1, 1, 1})
		})

		Convey("When there are no competitors", func() {
			So(ranking.Rank(nil, nil), ShouldBeEmpty)
		})
	})
}

func TestTop(t *testing.T) {
	Convey("Given five ranked entries", t, func() {
		out := ranking.Rank(roster("a", "b", "c", "d", "e"), map[string]float64{"a": 5, "b": 4, "c": 3, "d": 2, "e": 1})
		So(len(ranking.Top(out, 2)), ShouldEqual, 2)
		So(len(ranking.Top(out, 0)), ShouldEqual, 5)
		So(len(ranking.Top(out, 50)), ShouldEqual, 5)
	})
}

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("venue"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"venue": "north"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every collector is registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.ticks.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				found := false
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "test_venue_"), ShouldBeTrue)
					if f.GetName() == "test_venue_clock_ticks_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "north")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When ticks are recorded", func() {
			before := testutil.ToFloat64(globalManager.ticks)
			RecordTick(0.4)
			RecordTick(1.2)

			Convey("Then the tick counter advances", func() {
				So(testutil.ToFloat64(globalManager.ticks), ShouldEqual, before+2)
			})
		})

		Convey("When the clock reading is updated", func() {
			UpdateClock(42, 2, true)

			Convey("Then the gauges reflect it", func() {
				So(testutil.ToFloat64(globalManager.remainingSeconds), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.clockPhase), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.clockRunning), ShouldEqual, 1)
			})

			UpdateClock(0, 5, false)
			So(testutil.ToFloat64(globalManager.clockRunning), ShouldEqual, 0)
		})

		Convey("When competitor counts are replaced", func() {
			UpdateCompetitorsByState(map[string]int{"call_zone": 3, "finished": 1})
			UpdateCompetitorsByState(map[string]int{"finished": 4})

			Convey("Then stale states are dropped", func() {
				So(testutil.CollectAndCount(globalManager.competitorsByState), ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.competitorsByState.WithLabelValues("finished")), ShouldEqual, 4)
			})
		})

		Convey("When the remaining helpers are called", func() {
			So(func() {
				RecordPhaseTransition("active_round")
				RecordBeep()
				RecordRotation()
				RecordRoundCompleted()
				RecordScoreRecorded()
				RecordScoreRejected("invalid_input")
				RecordDuplicateSubmission()
				UpdateQueueSize(3)
				UpdateQueueCapacity(1024)
				RecordQueueRejected("full")
				RecordCommand("tick", 0.2, false)
				RecordCommand("record_score", 1.5, true)
				UpdateFeedClients(2)
				RecordFeedPublished("websocket", "state")
				RecordFeedDropped("nats")
				RecordHTTPRequest("/contest", "GET", "200")
				RecordHTTPRequestDuration("/contest", "GET", "200", 3)
				RecordErrorByComponent("clock", "schedule")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)

			So(testutil.ToFloat64(globalManager.commandErrors.WithLabelValues("record_score")), ShouldBeGreaterThanOrEqualTo, 1)
		})

		Convey("Then the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

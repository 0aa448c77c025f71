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
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("live"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.pollCycles.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_live_poll_cycles_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording aggregator metrics", func() {
			before := testutil.ToFloat64(globalManager.entityRefreshes.WithLabelValues(OutcomeStageError))
			RecordEntityRefresh(OutcomeStageError)
			RecordPollCycle(12)
			RecordStageFetchError()
			RecordSnapshotSize(5)
			UpdateTrackedEntities(3)
			RecordDiscoveryRun(OutcomeOK)

			Convey("Then counters and gauges move", func() {
				So(testutil.ToFloat64(globalManager.entityRefreshes.WithLabelValues(OutcomeStageError)), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.trackedEntities), ShouldEqual, 3)
			})
		})

		Convey("When recording delivery metrics", func() {
			UpdateQueueCapacity(64)
			UpdateQueueSize(2)
			RecordQueueDrop()
			RecordViewDelivered("stream")
			RecordSinkError("kafka")
			UpdateStreamClients(4)

			Convey("Then gauges reflect the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.streamClients), ShouldEqual, 4)
			})
		})

		Convey("When recording HTTP and system metrics", func() {
			So(func() {
				RecordHTTPRequest("live", "GET", "200")
				RecordHTTPRequestDuration("live", "GET", "200", 3.5)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)

			Convey("Then the custom registry exposes them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "liveboard_rankings_http_requests_total")
				So(strings.Join(names, ","), ShouldContainSubstring, "liveboard_system_goroutines")
			})
		})
	})
}

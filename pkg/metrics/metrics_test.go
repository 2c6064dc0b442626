package metrics_test

import (
	"testing"

	"github.com/okian/spotter/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerConstruction(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		reg := prometheus.NewRegistry()

		Convey("NewManager registers without panicking", func() {
			So(func() {
				metrics.NewManager(
					metrics.WithRegistry(reg),
					metrics.WithNamespace("test"),
					metrics.WithSubsystem("engine"),
				)
			}, ShouldNotPanic)
		})

		Convey("Custom buckets are accepted", func() {
			So(func() {
				metrics.NewManager(
					metrics.WithRegistry(prometheus.NewRegistry()),
					metrics.WithNamespace("buckets"),
					metrics.WithHistogramBuckets([]float64{1, 10, 100}),
				)
			}, ShouldNotPanic)
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("recording helpers do not panic", func() {
			So(func() {
				metrics.RecordRoundStarted()
				metrics.RecordRoundSettled("success", true)
				metrics.RecordRoundSettled("hard_stop", false)
				metrics.RecordMiss()
				metrics.ObserveRoundMisses(3)
				metrics.ObserveSettleLatency(12.5)
				metrics.RecordSaveError()
				metrics.RecordLockedReplay()
				metrics.ObserveScore(0.54)
				metrics.ObserveEloDelta(-19)
				metrics.RecordBaselineEstimate("image")
				metrics.RecordBaselineFallback()
				metrics.RecordStoreError("append_round")
				metrics.UpdateQueueSize(4)
				metrics.UpdateQueueCapacity(1024)
				metrics.RecordEnqueue()
				metrics.RecordEnqueueDrop()
				metrics.RecordDequeue()
				metrics.UpdateWorkerCount(8)
				metrics.RecordRefreshDone()
				metrics.RecordRefreshError()
				metrics.RecordHTTPRequest("rounds", "POST", "201")
				metrics.ObserveHTTPDuration("rounds", "POST", "201", 3.2)
				metrics.UpdateTrackedPlayers(10)
				metrics.UpdateTrackedImages(5)
			}, ShouldNotPanic)
		})

		Convey("the registry gathers the registered families", func() {
			families, err := metrics.GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}

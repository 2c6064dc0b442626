package baseline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/spotter/internal/domain/baseline"
	"github.com/okian/spotter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSource serves canned samples keyed by imageID; "" is the global set.
type fakeSource struct {
	samples map[string][]model.DurationSample
	err     error
	calls   int
}

func (f *fakeSource) RecentDurations(_ context.Context, imageID string, limit int) ([]model.DurationSample, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s := f.samples[imageID]
	if len(s) > limit {
		s = s[:limit]
	}
	return s, nil
}

func samplesOf(ms ...float64) []model.DurationSample {
	out := make([]model.DurationSample, len(ms))
	for i, v := range ms {
		out[i] = model.DurationSample{MS: v, CreatedAt: time.Now()}
	}
	return out
}

func TestEstimate(t *testing.T) {
	Convey("Given a percentile estimator", t, func() {
		ctx := context.Background()

		Convey("With enough per-image samples it uses the 60th percentile", func() {
			// 11 samples 100k..200k; p60 index = floor(0.6*10) = 6 -> 160000.
			src := &fakeSource{samples: map[string][]model.DurationSample{
				"img-1": samplesOf(100000, 110000, 120000, 130000, 140000, 150000, 160000, 170000, 180000, 190000, 200000),
			}}
			est := baseline.New(src)
			So(est.Estimate(ctx, "img-1"), ShouldAlmostEqual, 180000, 1e-9) // max(160000, default)
		})

		Convey("The percentile is floored at the default baseline", func() {
			src := &fakeSource{samples: map[string][]model.DurationSample{
				"img-fast": samplesOf(1000, 1100, 1200, 1300, 1400, 1500, 1600, 1700, 1800, 1900),
			}}
			est := baseline.New(src)
			So(est.Estimate(ctx, "img-fast"), ShouldAlmostEqual, baseline.DefaultBaselineMS, 1e-9)
		})

		Convey("A slow image can exceed the default", func() {
			src := &fakeSource{samples: map[string][]model.DurationSample{
				"img-slow": samplesOf(200000, 210000, 220000, 230000, 240000, 250000, 260000, 270000, 280000, 290000, 300000),
			}}
			est := baseline.New(src)
			So(est.Estimate(ctx, "img-slow"), ShouldAlmostEqual, 260000, 1e-9)
		})

		Convey("Too few per-image samples fall back to the global set", func() {
			src := &fakeSource{samples: map[string][]model.DurationSample{
				"img-new": samplesOf(50000, 60000),
				"":        samplesOf(190000, 200000, 210000, 220000, 230000, 240000, 250000, 260000, 270000, 280000),
			}}
			est := baseline.New(src)
			// global p60 index = floor(0.6*9) = 5 -> 240000
			So(est.Estimate(ctx, "img-new"), ShouldAlmostEqual, 240000, 1e-9)
		})

		Convey("Zero samples in both sets return exactly the default", func() {
			src := &fakeSource{samples: map[string][]model.DurationSample{}}
			est := baseline.New(src)
			So(est.Estimate(ctx, "img-unknown"), ShouldEqual, baseline.DefaultBaselineMS)
		})

		Convey("A data-access error degrades to the default, never propagates", func() {
			src := &fakeSource{err: errors.New("connection refused")}
			est := baseline.New(src)
			So(func() { est.Estimate(ctx, "img-1") }, ShouldNotPanic)
			So(est.Estimate(ctx, "img-1"), ShouldEqual, baseline.DefaultBaselineMS)
		})

		Convey("A custom default baseline is honored", func() {
			src := &fakeSource{samples: map[string][]model.DurationSample{}}
			est := baseline.New(src, baseline.WithDefaultBaseline(90000))
			So(est.Estimate(ctx, "x"), ShouldEqual, 90000)
		})
	})
}

func TestEstimateCache(t *testing.T) {
	Convey("Given an estimator with a TTL cache", t, func() {
		ctx := context.Background()
		src := &fakeSource{samples: map[string][]model.DurationSample{}}
		est := baseline.New(src, baseline.WithCacheTTL(time.Minute))

		Convey("Repeat estimates hit the cache instead of the source", func() {
			_ = est.Estimate(ctx, "img-1")
			calls := src.calls
			_ = est.Estimate(ctx, "img-1")
			So(src.calls, ShouldEqual, calls)
		})

		Convey("Refresh always recomputes through the source", func() {
			_ = est.Estimate(ctx, "img-1")
			calls := src.calls
			_ = est.Refresh(ctx, "img-1")
			So(src.calls, ShouldBeGreaterThan, calls)
		})
	})
}

package scoring_test

import (
	"math"
	"testing"

	"github.com/okian/spotter/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPenalize(t *testing.T) {
	Convey("Given the miss penalty formula", t, func() {
		Convey("Each miss adds 4% up to a 40% cap", func() {
			for misses := 0; misses <= 10; misses++ {
				want := 100000.0 * math.Min(1.0+0.04*float64(misses), 1.4)
				So(scoring.Penalize(100000, misses), ShouldAlmostEqual, want, 1e-9)
			}
		})

		Convey("At 10 misses the factor is exactly 1.4", func() {
			So(scoring.Penalize(1000, 10), ShouldAlmostEqual, 1400, 1e-9)
		})

		Convey("Beyond 10 misses the cap holds", func() {
			So(scoring.Penalize(1000, 25), ShouldAlmostEqual, 1400, 1e-9)
		})

		Convey("Zero misses leaves the duration untouched", func() {
			So(scoring.Penalize(73500, 0), ShouldAlmostEqual, 73500, 1e-9)
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given the logistic performance scorer", t, func() {
		Convey("A round at exactly baseline scores near 0.541", func() {
			res := scoring.Score(180000, 180000)
			So(res.Ratio, ShouldAlmostEqual, 1.0, 1e-9)
			raw := 1.0 / (1.0 + math.Exp(0.9*(1.0-1.2)))
			So(res.S, ShouldAlmostEqual, 0.08+0.84*raw, 1e-9)
			So(res.S, ShouldAlmostEqual, 0.541, 0.001)
		})

		Convey("Scores stay inside the [0.08, 0.92] band", func() {
			for _, used := range []float64{1, 1000, 90000, 180000, 360000, 1e7, 1e9} {
				res := scoring.Score(used, 180000)
				So(res.S, ShouldBeGreaterThanOrEqualTo, 0.08)
				So(res.S, ShouldBeLessThanOrEqualTo, 0.92)
			}
		})

		Convey("Score is monotonically non-increasing in used duration", func() {
			prev := math.Inf(1)
			for used := 1000.0; used <= 2_000_000; used *= 1.5 {
				res := scoring.Score(used, 180000)
				So(res.S, ShouldBeLessThanOrEqualTo, prev)
				prev = res.S
			}
		})

		Convey("A zero baseline is floored at 1ms instead of dividing by zero", func() {
			res := scoring.Score(5000, 0)
			So(res.Ratio, ShouldAlmostEqual, 5000, 1e-9)
			So(math.IsNaN(res.S), ShouldBeFalse)
		})

		Convey("A forced score bypasses the curve but keeps the ratio", func() {
			res := scoring.Score(900000, 180000, scoring.WithForcedScore(scoring.ForcedFailureScore))
			So(res.S, ShouldAlmostEqual, 0.05, 1e-9)
			So(res.Ratio, ShouldAlmostEqual, 5.0, 1e-9)
		})
	})
}

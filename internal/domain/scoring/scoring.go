// Package scoring maps penalty-adjusted durations to normalized performance scores.
package scoring

import "math"

// Tuned curve constants.
//
// The logistic is centered at 1.20 so a round taking 20% longer than
// baseline still lands near 0.5, and the gentle 0.90 slope avoids score
// cliffs around the center. The [0.08, 0.92] band keeps the Elo
// expectation away from the degenerate 0/1 boundaries.
const (
	curveCenter = 1.20
	curveSlope  = 0.90
	scoreFloor  = 0.08
	scoreSpan   = 0.84

	missPenaltyStep   = 0.04
	missPenaltyCeil   = 1.40
	ForcedFailureScore = 0.05
)

// Result carries the normalized score and the unclamped time ratio.
// Ratio is reported for display regardless of overrides.
type Result struct {
	Ratio float64
	S     float64
}

// Option applies a configuration option to a single Score call.
type Option func(*options)

type options struct {
	forced *float64
}

// WithForcedScore replaces the logistic mapping with a fixed score,
// used by forced-failure settlement paths.
func WithForcedScore(s float64) Option {
	return func(o *options) {
		o.forced = &s
	}
}

// Penalize inflates a raw duration by 4% per miss, capped at 40%.
// Every outcome path shares this single formula.
func Penalize(rawMS float64, misses int) float64 {
	factor := 1.0 + missPenaltyStep*float64(misses)
	if factor > missPenaltyCeil {
		factor = missPenaltyCeil
	}
	return rawMS * factor
}

// Score converts a used duration and baseline into a bounded performance
// score. The result satisfies S in [0.08, 0.92] unless a forced score
// option bypasses the curve.
func Score(usedMS, baselineMS float64, opts ...Option) Result {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ratio := usedMS / math.Max(1, baselineMS)
	if o.forced != nil {
		return Result{Ratio: ratio, S: *o.forced}
	}

	raw := 1.0 / (1.0 + math.Exp(curveSlope*(ratio-curveCenter)))
	return Result{Ratio: ratio, S: scoreFloor + scoreSpan*raw}
}

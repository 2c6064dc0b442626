// Package rating implements the paired Elo update for players and images.
package rating

import "math"

// Elo model constants.
const (
	// DefaultK is the K-factor for normally scored rounds.
	DefaultK = 20.0
	// FailureK is the K-factor applied on forced-failure settlements.
	FailureK = 16.0

	eloDivisor = 400.0

	// A full 20-point miss deduction is reached at 7 misses.
	missPenaltyPoints = 20.0
	missPenaltyFullAt = 7.0
)

// Outcome carries both post-update ratings plus the intermediate terms
// snapshotted into the round record.
type Outcome struct {
	PlayerAfter float64
	ImageAfter  float64
	Expected    float64
	BaseDelta   float64
	Penalty     float64
	TotalDelta  float64
}

// Option applies a configuration option to a single Apply call.
type Option func(*options)

type options struct {
	k float64
}

// WithKFactor overrides the K-factor for this update.
func WithKFactor(k float64) Option {
	return func(o *options) {
		if k > 0 {
			o.k = k
		}
	}
}

// Expected returns the Elo-predicted score for the player against the image.
func Expected(player, image float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, -(player-image)/eloDivisor))
}

// MissPenalty returns the punitive deduction for a miss count, scaled
// linearly up to the full 20 points at 7 or more misses.
func MissPenalty(misses int) float64 {
	frac := math.Min(1, float64(misses)/missPenaltyFullAt)
	return math.Round(missPenaltyPoints * frac)
}

// Apply computes the paired rating update for one rated round.
//
// The image mirrors only the performance component (baseDelta); the miss
// penalty is a player-only deduction so image difficulty keeps reflecting
// aggregate performance quality, not individual accuracy.
func Apply(player, image, s float64, misses int, opts ...Option) Outcome {
	o := options{k: DefaultK}
	for _, opt := range opts {
		opt(&o)
	}

	e := Expected(player, image)
	baseDelta := math.Round(o.k * (s - e))
	penalty := MissPenalty(misses)
	totalDelta := baseDelta - penalty

	return Outcome{
		PlayerAfter: player + totalDelta,
		ImageAfter:  image - baseDelta,
		Expected:    e,
		BaseDelta:   baseDelta,
		Penalty:     penalty,
		TotalDelta:  totalDelta,
	}
}

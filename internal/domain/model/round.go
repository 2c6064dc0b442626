// Package model contains domain types passed between layers.
package model

import "time"

// RatingKind distinguishes the two rated entities.
type RatingKind string

const (
	KindPlayer RatingKind = "player"
	KindImage  RatingKind = "image"
)

// InitialRating is the rating assigned on first contact.
const InitialRating = 1500.0

// Outcome is the terminal state of a round.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeHardStop Outcome = "hard_stop"
	OutcomeGiveUp   Outcome = "give_up"
)

// Terminal reports whether o is a recognized terminal outcome.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSuccess, OutcomeHardStop, OutcomeGiveUp:
		return true
	}
	return false
}

// Rating is one player or image rating row.
type Rating struct {
	Kind        RatingKind
	ID          string
	Value       float64
	Games       int    // gamesPlayed for players, attempts for images
	DisplayName string // players only, optional
}

// RoundRecord is the append-only audit row written once per settled round.
// Elo snapshot fields are nil when the round was practice.
type RoundRecord struct {
	ImageID      string
	PlayerID     string
	RawMS        float64
	UsedMS       float64
	Misses       int
	Outcome      Outcome
	Rated        bool
	PlayerBefore *float64
	PlayerAfter  *float64
	ImageBefore  *float64
	ImageAfter   *float64
	CreatedAt    time.Time
}

// DurationSample is one historical completion time used for baselines.
type DurationSample struct {
	MS        float64
	CreatedAt time.Time
}

// RefreshJob asks the worker pool to recompute one image's baseline.
type RefreshJob struct {
	ImageID string
}

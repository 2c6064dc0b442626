// Package repository defines the engine's persistence boundary and its
// in-memory and Postgres implementations.
package repository

import (
	"context"

	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/internal/domain/types"
)

// Store provides read/write access to ratings and round history.
//
// ApplyRatingDelta must have atomic increment semantics: concurrent
// settlements for the same player or image must not lose updates, so the
// delta is applied at the store, never via read-then-overwrite.
type Store interface {
	// RecentDurations returns up to limit completion durations, newest
	// first. An empty imageID queries across all images. Only successful
	// rounds carry a usable duration.
	RecentDurations(ctx context.Context, imageID string, limit int) ([]model.DurationSample, error)

	// Rating returns the rating row or ErrNotFound.
	Rating(ctx context.Context, kind model.RatingKind, id string) (model.Rating, error)

	// EnsureRating creates the row at the initial rating when missing and
	// returns the current row. A non-empty displayName updates the row.
	EnsureRating(ctx context.Context, kind model.RatingKind, id, displayName string) (model.Rating, error)

	// ApplyRatingDelta atomically adds delta to the rating and games to
	// the play counter, returning the post-update row.
	ApplyRatingDelta(ctx context.Context, kind model.RatingKind, id string, delta float64, games int) (model.Rating, error)

	// SetDisplayName updates a player's optional display name.
	SetDisplayName(ctx context.Context, playerID, name string) error

	// HasPriorSuccess reports whether the player has any successful round
	// recorded against the image.
	HasPriorSuccess(ctx context.Context, playerID, imageID string) (bool, error)

	// AppendRound persists one immutable round record.
	AppendRound(ctx context.Context, rec model.RoundRecord) error

	// TopPlayers returns the top-N players ordered by rating desc.
	TopPlayers(ctx context.Context, n int) ([]types.Entry, error)

	// PlayerEntry returns a player's rank and rating, or ErrNotFound.
	PlayerEntry(ctx context.Context, playerID string) (types.Entry, error)

	// Counts returns how many players and images have rating rows.
	Counts(ctx context.Context) (players, images int)
}

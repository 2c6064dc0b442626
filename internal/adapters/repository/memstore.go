package repository

import (
	"context"
	"sync"

	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/internal/domain/types"
	"github.com/okian/spotter/pkg/metrics"
)

const defaultMaxHistory = 512

type ratingKey struct {
	kind model.RatingKind
	id   string
}

// MemStore is a mutex-guarded in-memory Store. It backs single-node
// deployments and tests; ranking queries are served by a treap index so
// leaderboard reads stay cheap as the player set grows.
type MemStore struct {
	mu         sync.RWMutex
	ratings    map[ratingKey]model.Rating
	durations  map[string][]model.DurationSample // per image, oldest first
	global     []model.DurationSample
	successes  map[string]struct{} // playerID + "\x00" + imageID
	rounds     []model.RoundRecord
	board      *RatingBoard
	maxHistory int
}

// MemOption customizes a MemStore.
type MemOption func(*MemStore)

// WithMaxHistory caps how many duration samples are retained per image
// and globally.
func WithMaxHistory(n int) MemOption {
	return func(s *MemStore) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		ratings:    make(map[ratingKey]model.Rating),
		durations:  make(map[string][]model.DurationSample),
		successes:  make(map[string]struct{}),
		board:      NewRatingBoard(),
		maxHistory: defaultMaxHistory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func successKey(playerID, imageID string) string {
	return playerID + "\x00" + imageID
}

// RecentDurations implements Store. Samples come back newest first.
func (s *MemStore) RecentDurations(_ context.Context, imageID string, limit int) ([]model.DurationSample, error) {
	if limit < 1 {
		metrics.RecordStoreError("recent_durations")
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.global
	if imageID != "" {
		src = s.durations[imageID]
	}
	n := limit
	if n > len(src) {
		n = len(src)
	}
	out := make([]model.DurationSample, 0, n)
	for i := len(src) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

// Rating implements Store.
func (s *MemStore) Rating(_ context.Context, kind model.RatingKind, id string) (model.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[ratingKey{kind, id}]
	if !ok {
		return model.Rating{}, ErrNotFound
	}
	return r, nil
}

// EnsureRating implements Store.
func (s *MemStore) EnsureRating(_ context.Context, kind model.RatingKind, id, displayName string) (model.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ratingKey{kind, id}
	r, ok := s.ratings[key]
	if !ok {
		r = model.Rating{Kind: kind, ID: id, Value: model.InitialRating}
	}
	if displayName != "" {
		r.DisplayName = displayName
	}
	s.ratings[key] = r
	if !ok {
		s.trackCountsLocked()
	}
	if kind == model.KindPlayer {
		s.board.Upsert(id, r.Value, r.Games, r.DisplayName)
	}
	return r, nil
}

// ApplyRatingDelta implements Store. The increment happens under the
// store lock, so concurrent settlements never lose updates.
func (s *MemStore) ApplyRatingDelta(_ context.Context, kind model.RatingKind, id string, delta float64, games int) (model.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ratingKey{kind, id}
	r, ok := s.ratings[key]
	if !ok {
		metrics.RecordStoreError("apply_delta")
		return model.Rating{}, ErrNotFound
	}
	r.Value += delta
	r.Games += games
	s.ratings[key] = r
	if kind == model.KindPlayer {
		s.board.Upsert(id, r.Value, r.Games, r.DisplayName)
	}
	return r, nil
}

// SetDisplayName implements Store.
func (s *MemStore) SetDisplayName(_ context.Context, playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ratingKey{model.KindPlayer, playerID}
	r, ok := s.ratings[key]
	if !ok {
		return ErrNotFound
	}
	r.DisplayName = name
	s.ratings[key] = r
	s.board.Upsert(playerID, r.Value, r.Games, name)
	return nil
}

// HasPriorSuccess implements Store.
func (s *MemStore) HasPriorSuccess(_ context.Context, playerID, imageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.successes[successKey(playerID, imageID)]
	return ok, nil
}

// AppendRound implements Store. Successful rounds also feed the duration
// history that baseline estimation samples from; failed rounds carry
// synthetic durations and are excluded.
func (s *MemStore) AppendRound(_ context.Context, rec model.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rounds = append(s.rounds, rec)
	if rec.Outcome == model.OutcomeSuccess {
		s.successes[successKey(rec.PlayerID, rec.ImageID)] = struct{}{}
		sample := model.DurationSample{MS: rec.UsedMS, CreatedAt: rec.CreatedAt}
		s.durations[rec.ImageID] = appendCapped(s.durations[rec.ImageID], sample, s.maxHistory)
		s.global = appendCapped(s.global, sample, s.maxHistory)
	}
	return nil
}

func appendCapped(samples []model.DurationSample, s model.DurationSample, limit int) []model.DurationSample {
	samples = append(samples, s)
	if len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

// TopPlayers implements Store.
func (s *MemStore) TopPlayers(_ context.Context, n int) ([]types.Entry, error) {
	return s.board.TopN(n)
}

// PlayerEntry implements Store.
func (s *MemStore) PlayerEntry(_ context.Context, playerID string) (types.Entry, error) {
	return s.board.Rank(playerID)
}

// Counts implements Store.
func (s *MemStore) Counts(_ context.Context) (players, images int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

func (s *MemStore) countsLocked() (players, images int) {
	for k := range s.ratings {
		switch k.kind {
		case model.KindPlayer:
			players++
		case model.KindImage:
			images++
		}
	}
	return players, images
}

func (s *MemStore) trackCountsLocked() {
	players, images := s.countsLocked()
	metrics.UpdateTrackedPlayers(players)
	metrics.UpdateTrackedImages(images)
}

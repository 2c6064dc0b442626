package round

import (
	"context"
	"math"
	"time"

	"github.com/okian/spotter/internal/domain/baseline"
	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/internal/domain/rating"
	"github.com/okian/spotter/internal/domain/scoring"
	"github.com/okian/spotter/pkg/logger"
	"github.com/okian/spotter/pkg/metrics"
)

// Failed rounds are floored far above baseline so an abandoned attempt
// always registers as strongly negative performance.
const failureBaselineFactor = 6.0

// Store is the persistence boundary the controller settles against.
type Store interface {
	// EnsureRating creates the rating row at the initial value when
	// missing and returns the current row.
	EnsureRating(ctx context.Context, kind model.RatingKind, id, displayName string) (model.Rating, error)

	// ApplyRatingDelta atomically adds delta to the rating and games to
	// the counter, returning the post-update row.
	ApplyRatingDelta(ctx context.Context, kind model.RatingKind, id string, delta float64, games int) (model.Rating, error)

	// HasPriorSuccess reports whether the player already solved the image.
	HasPriorSuccess(ctx context.Context, playerID, imageID string) (bool, error)

	// AppendRound persists one immutable round record.
	AppendRound(ctx context.Context, rec model.RoundRecord) error
}

// Summary is the settlement result handed back to the trigger surface.
type Summary struct {
	RoundID    string
	ImageID    string
	PlayerID   string
	Outcome    model.Outcome
	RawMS      float64
	UsedMS     float64
	Misses     int
	BaselineMS float64
	Ratio      float64
	Score      float64
	Rated      bool

	// Rating fields are meaningful only when Rated is true.
	PlayerBefore float64
	PlayerAfter  float64
	ImageBefore  float64
	ImageAfter   float64
	TotalDelta   float64

	// SaveError is set when persistence failed; the outcome itself is
	// still valid and must be shown.
	SaveError string
}

// Controller settles terminal sessions exactly once: baseline, score,
// rating, then one persisted round record.
type Controller struct {
	estimator baseline.Estimator
	store     Store
	k         float64
	failureK  float64
	log       logger.Logger
	clock     func() time.Time
}

// ControllerOption applies a configuration option to the Controller.
type ControllerOption func(*Controller)

// WithKFactor sets the Elo K for normally scored rounds.
func WithKFactor(k float64) ControllerOption {
	return func(c *Controller) {
		if k > 0 {
			c.k = k
		}
	}
}

// WithFailureKFactor sets the Elo K for forced-failure settlements.
func WithFailureKFactor(k float64) ControllerOption {
	return func(c *Controller) {
		if k > 0 {
			c.failureK = k
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) ControllerOption {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithControllerClock injects a time source, used by tests.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.clock = now
		}
	}
}

// NewController creates a settlement controller.
func NewController(estimator baseline.Estimator, store Store, opts ...ControllerOption) *Controller {
	c := &Controller{
		estimator: estimator,
		store:     store,
		k:         rating.DefaultK,
		failureK:  rating.FailureK,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Get().Named("round")
	}
	return c
}

// Settle runs settlement for a terminal session. Re-invoking it for an
// already settled session returns the original summary without touching
// ratings or history again.
func (c *Controller) Settle(ctx context.Context, s *Session) (*Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.locked || !s.outcome.Terminal() {
		return nil, false
	}
	if s.summary != nil {
		metrics.RecordLockedReplay()
		return s.summary, true
	}

	start := c.clock()
	summary := c.settleLocked(ctx, s)
	s.summary = summary

	metrics.ObserveSettleLatency(float64(c.clock().Sub(start)) / float64(time.Millisecond))
	metrics.RecordRoundSettled(string(summary.Outcome), summary.Rated)
	metrics.ObserveRoundMisses(summary.Misses)
	metrics.ObserveScore(summary.Score)

	return summary, true
}

// settleLocked performs steps 1-7 of settlement. Runs with s.mu held so
// no click or second settlement can interleave.
func (c *Controller) settleLocked(ctx context.Context, s *Session) *Summary {
	baselineMS := c.estimator.Estimate(ctx, s.imageID)

	var (
		res     scoring.Result
		usedMS  float64
		kFactor = c.k
	)
	if s.outcome == model.OutcomeSuccess {
		usedMS = scoring.Penalize(s.rawMS, s.missCount)
		res = scoring.Score(usedMS, baselineMS)
	} else {
		usedMS = math.Max(s.rawMS*1.4, baselineMS*failureBaselineFactor)
		res = scoring.Score(usedMS, baselineMS, scoring.WithForcedScore(scoring.ForcedFailureScore))
		kFactor = c.failureK
	}

	summary := &Summary{
		RoundID:    s.id,
		ImageID:    s.imageID,
		PlayerID:   s.playerID,
		Outcome:    s.outcome,
		RawMS:      s.rawMS,
		UsedMS:     usedMS,
		Misses:     s.missCount,
		BaselineMS: baselineMS,
		Ratio:      res.Ratio,
		Score:      res.S,
	}

	rec := model.RoundRecord{
		ImageID:   s.imageID,
		PlayerID:  s.playerID,
		RawMS:     s.rawMS,
		UsedMS:    usedMS,
		Misses:    s.missCount,
		Outcome:   s.outcome,
		CreatedAt: c.clock(),
	}

	// Eligibility is always a fresh history query; a cached flag could go
	// stale across concurrent rounds for the same player/image pair.
	hasPrior, err := c.store.HasPriorSuccess(ctx, s.playerID, s.imageID)
	if err != nil {
		// Without a trustworthy answer the round is treated as practice
		// so no rating can be double-counted.
		metrics.RecordStoreError("has_prior_success")
		c.log.Warn(ctx, "eligibility check failed; treating round as practice",
			logger.String("round", s.id), logger.Error(err))
		summary.SaveError = "eligibility check failed"
	} else if !hasPrior {
		summary.Rated = true
		rec.Rated = true
		c.applyRating(ctx, s, summary, &rec, kFactor)
	}

	if err := c.store.AppendRound(ctx, rec); err != nil {
		metrics.RecordStoreError("append_round")
		metrics.RecordSaveError()
		c.log.Error(ctx, "round record write failed",
			logger.String("round", s.id), logger.Error(err))
		summary.SaveError = "round could not be saved"
	}

	c.log.Info(ctx, "round settled",
		logger.String("round", s.id),
		logger.String("player", s.playerID),
		logger.String("image", s.imageID),
		logger.String("outcome", string(s.outcome)),
		logger.Float64("used_ms", usedMS),
		logger.Int("misses", s.missCount),
		logger.Bool("rated", summary.Rated),
	)
	return summary
}

// applyRating runs the Elo update and mirrors the snapshots into the
// summary and record. Persistence failures downgrade the round to an
// unsaved-but-shown result instead of failing settlement.
func (c *Controller) applyRating(ctx context.Context, s *Session, summary *Summary, rec *model.RoundRecord, kFactor float64) {
	playerRow, err := c.store.EnsureRating(ctx, model.KindPlayer, s.playerID, s.displayName)
	if err != nil {
		c.ratingFailed(ctx, s, summary, rec, "ensure_player_rating", err)
		return
	}
	imageRow, err := c.store.EnsureRating(ctx, model.KindImage, s.imageID, "")
	if err != nil {
		c.ratingFailed(ctx, s, summary, rec, "ensure_image_rating", err)
		return
	}

	opts := []rating.Option{rating.WithKFactor(kFactor)}
	out := rating.Apply(playerRow.Value, imageRow.Value, summary.Score, s.missCount, opts...)

	playerAfter, err := c.store.ApplyRatingDelta(ctx, model.KindPlayer, s.playerID, out.TotalDelta, 1)
	if err != nil {
		c.ratingFailed(ctx, s, summary, rec, "apply_player_delta", err)
		return
	}
	imageAfter, err := c.store.ApplyRatingDelta(ctx, model.KindImage, s.imageID, -out.BaseDelta, 1)
	if err != nil {
		c.ratingFailed(ctx, s, summary, rec, "apply_image_delta", err)
		return
	}

	// Post-update rows are authoritative even if a concurrent round moved
	// the rating between fetch and apply; before = after - delta.
	summary.PlayerAfter = playerAfter.Value
	summary.PlayerBefore = playerAfter.Value - out.TotalDelta
	summary.ImageAfter = imageAfter.Value
	summary.ImageBefore = imageAfter.Value + out.BaseDelta
	summary.TotalDelta = out.TotalDelta

	rec.PlayerBefore = ptr(summary.PlayerBefore)
	rec.PlayerAfter = ptr(summary.PlayerAfter)
	rec.ImageBefore = ptr(summary.ImageBefore)
	rec.ImageAfter = ptr(summary.ImageAfter)

	metrics.ObserveEloDelta(out.TotalDelta)
}

// ratingFailed reverts the summary and record to practice shape after a
// rating persistence failure.
func (c *Controller) ratingFailed(ctx context.Context, s *Session, summary *Summary, rec *model.RoundRecord, op string, err error) {
	metrics.RecordStoreError(op)
	metrics.RecordSaveError()
	c.log.Error(ctx, "rating update failed",
		logger.String("round", s.id), logger.String("op", op), logger.Error(err))
	summary.Rated = false
	summary.SaveError = "rating could not be saved"
	rec.Rated = false
	rec.PlayerBefore, rec.PlayerAfter = nil, nil
	rec.ImageBefore, rec.ImageAfter = nil, nil
}

func ptr(v float64) *float64 { return &v }

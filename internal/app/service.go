// Package service provides the core engine service that implements the
// dependencies required by the HTTP API: round registry, settlement and
// the baseline refresh pipeline.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/spotter/internal/adapters/mq/queue"
	"github.com/okian/spotter/internal/adapters/mq/worker"
	"github.com/okian/spotter/internal/adapters/repository"
	"github.com/okian/spotter/internal/domain/baseline"
	"github.com/okian/spotter/internal/domain/dedupe"
	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/internal/domain/round"
	"github.com/okian/spotter/internal/domain/types"
	"github.com/okian/spotter/pkg/logger"
	"github.com/okian/spotter/pkg/metrics"
)

const (
	defaultSessionTTL      = 10 * time.Minute
	defaultJanitorInterval = time.Minute
	defaultTopLimit        = 10
	defaultMaxTopLimit     = 100
)

// CreateRoundParams describes a new round: who plays which image, the
// image's native dimensions and the hidden target.
type CreateRoundParams struct {
	ImageID     string
	PlayerID    string
	DisplayName string
	NativeW     float64
	NativeH     float64
	Target      round.Target
}

// Service owns the live session registry and wires the settlement
// controller to the store and the baseline refresh workers.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*round.Session

	store      repository.Store
	estimator  *baseline.PercentileEstimator
	controller *round.Controller
	deduper    dedupe.Deduper
	refreshQ   queue.Queue
	pool       *worker.Pool

	// Configuration
	workerCount  int
	queueSize    int
	dedupeSize   int
	sessionTTL   time.Duration
	missCooldown time.Duration
	maxMisses    int
	maxTopLimit  int

	k            float64
	failureK     float64
	baselineOpts []baseline.Option

	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a Service over a store with default configuration.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		sessions:     make(map[string]*round.Session),
		store:        store,
		queueSize:    10_000,
		dedupeSize:   100_000,
		sessionTTL:   defaultSessionTTL,
		missCooldown: -1, // session default unless configured
		maxTopLimit:  defaultMaxTopLimit,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the pipeline components and the session janitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.estimator = baseline.New(s.store, s.baselineOpts...)

	var ctrlOpts []round.ControllerOption
	if s.k > 0 {
		ctrlOpts = append(ctrlOpts, round.WithKFactor(s.k))
	}
	if s.failureK > 0 {
		ctrlOpts = append(ctrlOpts, round.WithFailureKFactor(s.failureK))
	}
	s.controller = round.NewController(s.estimator, s.store, ctrlOpts...)

	s.refreshQ = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.refreshQ, s.estimator, worker.WithNotifier(s))
	s.pool.Start(ctx)

	go s.janitor(ctx)

	s.started = true
	s.logger.Info(ctx, "engine service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("session_ttl", s.sessionTTL),
	)
	return nil
}

// Stop gracefully shuts down the pipeline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.pool != nil {
		_ = s.pool.Shutdown(ctx)
	}
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	s.started = false
	s.logger.Info(ctx, "engine service stopped")
}

// CreateRound registers a ready session and returns it.
func (s *Service) CreateRound(ctx context.Context, p CreateRoundParams) (*round.Session, error) {
	if p.ImageID == "" || p.PlayerID == "" {
		return nil, ErrInvalidArgument
	}
	if p.NativeW <= 0 || p.NativeH <= 0 || p.Target.Radius <= 0 {
		return nil, ErrInvalidArgument
	}

	var sessOpts []round.SessionOption
	if s.missCooldown >= 0 {
		sessOpts = append(sessOpts, round.WithMissCooldown(s.missCooldown))
	}
	if s.maxMisses > 0 {
		sessOpts = append(sessOpts, round.WithMaxMisses(s.maxMisses))
	}

	// Returning players may rename themselves on any round, including
	// practice replays where settlement never touches the rating row.
	if p.DisplayName != "" {
		if err := s.store.SetDisplayName(ctx, p.PlayerID, p.DisplayName); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn(ctx, "display name update failed",
				logger.String("player", p.PlayerID), logger.Error(err))
		}
	}

	id := uuid.NewString()
	sess := round.NewSession(id, p.ImageID, p.PlayerID, p.DisplayName, p.NativeW, p.NativeH, p.Target, sessOpts...)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Debug(ctx, "round created",
		logger.String("round", id),
		logger.String("player", p.PlayerID),
		logger.String("image", p.ImageID),
	)
	return sess, nil
}

// StartRound flips a ready round to active, starting its timer.
func (s *Service) StartRound(ctx context.Context, roundID string) (*round.Session, error) {
	sess, err := s.session(roundID)
	if err != nil {
		return nil, err
	}
	if !sess.Start() {
		return nil, ErrRoundConflict
	}
	metrics.RecordRoundStarted()
	s.logger.Debug(ctx, "round started", logger.String("round", roundID))
	return sess, nil
}

// RegisterClick feeds one click into the round. A terminal click settles
// the round and the summary is returned alongside the click result.
func (s *Service) RegisterClick(ctx context.Context, roundID string, c round.Click) (round.ClickResult, *round.Summary, error) {
	sess, err := s.session(roundID)
	if err != nil {
		return round.ClickIgnored, nil, err
	}

	result := sess.RegisterClick(c)
	switch result {
	case round.ClickMiss:
		metrics.RecordMiss()
		return result, nil, nil
	case round.ClickHit, round.ClickHardStop:
		if result == round.ClickHardStop {
			metrics.RecordMiss()
		}
		summary := s.settle(ctx, sess)
		return result, summary, nil
	default:
		// Ignored clicks on a settled round replay the stored summary so
		// retried terminal requests stay idempotent.
		if sess.Status() == round.StatusSettled {
			return result, s.settle(ctx, sess), nil
		}
		return result, nil, nil
	}
}

// GiveUp aborts an active round and settles it. Calling it again on a
// settled round returns the original summary.
func (s *Service) GiveUp(ctx context.Context, roundID string) (*round.Summary, error) {
	sess, err := s.session(roundID)
	if err != nil {
		return nil, err
	}
	if !sess.GiveUp() {
		if sess.Status() == round.StatusSettled {
			return s.settle(ctx, sess), nil
		}
		return nil, ErrRoundConflict
	}
	return s.settle(ctx, sess), nil
}

// Round returns a live session by id.
func (s *Service) Round(roundID string) (*round.Session, error) {
	return s.session(roundID)
}

// Player returns a player's rank, rating and games.
func (s *Service) Player(ctx context.Context, playerID string) (types.Entry, error) {
	return s.store.PlayerEntry(ctx, playerID)
}

// Leaderboard returns the top players, clamped to the configured limit.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	if limit < 1 {
		limit = defaultTopLimit
	}
	if limit > s.maxTopLimit {
		limit = s.maxTopLimit
	}
	return s.store.TopPlayers(ctx, limit)
}

// RefreshDone implements worker.Notifier: completed refreshes release the
// coalescing key so the next settlement can schedule another one.
func (s *Service) RefreshDone(imageID string) {
	s.deduper.Unrecord(context.Background(), refreshKey(imageID))
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"liveSessions": len(s.sessions),
	}
	if s.started {
		players, images := s.store.Counts(ctx)
		stats["queueLength"] = s.refreshQ.Len(ctx)
		stats["pendingRefreshes"] = s.deduper.Size()
		stats["trackedPlayers"] = players
		stats["trackedImages"] = images

		metrics.UpdateTrackedPlayers(players)
		metrics.UpdateTrackedImages(images)
	}
	return stats
}

func (s *Service) session(roundID string) (*round.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[roundID]
	if !ok {
		return nil, ErrRoundNotFound
	}
	return sess, nil
}

// settle runs (or replays) settlement and schedules a baseline refresh
// when the round produced a new duration sample.
func (s *Service) settle(ctx context.Context, sess *round.Session) *round.Summary {
	summary, ok := s.controller.Settle(ctx, sess)
	if !ok {
		return nil
	}
	if summary.Outcome == model.OutcomeSuccess && summary.SaveError == "" {
		s.scheduleRefresh(ctx, sess.ImageID())
	}
	return summary
}

// scheduleRefresh coalesces refresh jobs per image: while one is queued
// or running, further settlements on the image do not enqueue another.
func (s *Service) scheduleRefresh(ctx context.Context, imageID string) {
	if s.refreshQ == nil {
		return
	}
	key := refreshKey(imageID)
	if s.deduper.SeenAndRecord(ctx, key) {
		return
	}
	if !s.refreshQ.Enqueue(ctx, queue.Job{ImageID: imageID}) {
		s.deduper.Unrecord(ctx, key)
		s.logger.Warn(ctx, "refresh queue full; baseline refresh dropped",
			logger.String("image", imageID))
	}
}

func refreshKey(imageID string) string { return "refresh:" + imageID }

// janitor drops sessions past their TTL so abandoned rounds do not leak.
func (s *Service) janitor(ctx context.Context) {
	interval := defaultJanitorInterval
	if s.sessionTTL < interval {
		interval = s.sessionTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.expireSessions(ctx)
		}
	}
}

func (s *Service) expireSessions(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.Age() > s.sessionTTL {
			delete(s.sessions, id)
			s.logger.Debug(ctx, "session expired", logger.String("round", id))
		}
	}
}

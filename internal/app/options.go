package service

import (
	"time"

	"github.com/okian/spotter/internal/domain/baseline"
	"github.com/okian/spotter/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of baseline refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the refresh job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the refresh coalescing cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSessionTTL bounds how long an unsettled round is retained.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithMissCooldown sets the duplicate-miss suppression window for new
// sessions.
func WithMissCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.missCooldown = d
		}
	}
}

// WithMaxMisses sets the miss cap for new sessions.
func WithMaxMisses(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMisses = n
		}
	}
}

// WithMaxLeaderboardLimit caps leaderboard query sizes.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTopLimit = n
		}
	}
}

// WithKFactor sets the Elo K for normally scored rounds.
func WithKFactor(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.k = k
		}
	}
}

// WithFailureKFactor sets the Elo K for forced-failure settlements.
func WithFailureKFactor(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.failureK = k
		}
	}
}

// WithBaselineOptions forwards options to the baseline estimator.
func WithBaselineOptions(opts ...baseline.Option) Option {
	return func(s *Service) {
		s.baselineOpts = append(s.baselineOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

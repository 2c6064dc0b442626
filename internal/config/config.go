// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file/env.
// - External errors are wrapped via this package's sentinel kinds.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DatabaseURL selects the Postgres store when set; empty runs in-memory.
	DatabaseURL string `koanf:"database_url"`

	// DefaultBaselineMS is the fixed fallback baseline in milliseconds.
	DefaultBaselineMS float64 `koanf:"default_baseline_ms"`

	// BaselineImageLimit caps the per-image duration sample fetch.
	BaselineImageLimit int `koanf:"baseline_image_limit"`

	// BaselineGlobalLimit caps the cross-image duration sample fetch.
	BaselineGlobalLimit int `koanf:"baseline_global_limit"`

	// BaselineMinSamples is the minimum sample count for a per-image baseline.
	BaselineMinSamples int `koanf:"baseline_min_samples"`

	// BaselineCacheTTLMS bounds how long a cached baseline stays fresh.
	BaselineCacheTTLMS int `koanf:"baseline_cache_ttl_ms"`

	// KFactor is the Elo K for normally scored rounds.
	KFactor float64 `koanf:"k_factor"`

	// FailureKFactor is the Elo K for forced-failure settlements.
	FailureKFactor float64 `koanf:"failure_k_factor"`

	// MissCooldownMS suppresses duplicate miss registrations within the window.
	MissCooldownMS int `koanf:"miss_cooldown_ms"`

	// MaxMisses is the miss count that hard-stops a round.
	MaxMisses int `koanf:"max_misses"`

	// SessionTTLMS bounds how long an unsettled session is retained.
	SessionTTLMS int `koanf:"session_ttl_ms"`

	// DedupeSize bounds the settlement idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RefreshQueueSize bounds the baseline refresh queue.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// WorkerCount sets the number of baseline refresh workers.
	WorkerCount int `koanf:"worker_count"`

	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		DatabaseURL:         "",
		DefaultBaselineMS:   180_000,
		BaselineImageLimit:  200,
		BaselineGlobalLimit: 500,
		BaselineMinSamples:  10,
		BaselineCacheTTLMS:  60_000,
		KFactor:             20,
		FailureKFactor:      16,
		MissCooldownMS:      250,
		MaxMisses:           10,
		SessionTTLMS:        600_000,
		DedupeSize:          100_000,
		RefreshQueueSize:    10_000,
		WorkerCount:         runtime.NumCPU() * 2,
		MaxLeaderboardLimit: 100,
	}
}

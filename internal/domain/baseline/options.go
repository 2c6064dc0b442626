// Package baseline estimates expected completion times from play history.
package baseline

import "time"

// Option applies a configuration option to the PercentileEstimator.
type Option func(*PercentileEstimator)

// WithImageLimit caps how many per-image samples are fetched.
func WithImageLimit(limit int) Option {
	return func(e *PercentileEstimator) {
		if limit > 0 {
			e.imageLimit = limit
		}
	}
}

// WithGlobalLimit caps how many cross-image samples are fetched.
func WithGlobalLimit(limit int) Option {
	return func(e *PercentileEstimator) {
		if limit > 0 {
			e.globalLimit = limit
		}
	}
}

// WithMinSamples sets the sample count required for a per-image baseline.
func WithMinSamples(n int) Option {
	return func(e *PercentileEstimator) {
		if n > 0 {
			e.minSamples = n
		}
	}
}

// WithDefaultBaseline sets the fixed fallback baseline in milliseconds.
func WithDefaultBaseline(ms float64) Option {
	return func(e *PercentileEstimator) {
		if ms > 0 {
			e.defaultMS = ms
		}
	}
}

// WithCacheTTL enables the read-through cache. A zero or negative TTL
// disables caching entirely.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *PercentileEstimator) {
		e.cacheTTL = ttl
	}
}

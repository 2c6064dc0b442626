// Package baseline estimates expected completion times from play history.
package baseline

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/pkg/metrics"
)

// Default estimation constants.
const (
	// DefaultBaselineMS is the fixed fallback when no usable history exists.
	DefaultBaselineMS = 180_000.0

	defaultImageLimit  = 200
	defaultGlobalLimit = 500
	defaultMinSamples  = 10

	// The 60th percentile grants a slight handicap over the median so
	// slightly-slower-than-typical times still score acceptably.
	percentile = 0.60
)

// Source supplies historical durations. An empty imageID queries across
// all images.
type Source interface {
	RecentDurations(ctx context.Context, imageID string, limit int) ([]model.DurationSample, error)
}

// Estimator derives a baseline duration for an image.
type Estimator interface {
	// Estimate returns the expected completion time in milliseconds.
	// It never fails; estimation errors degrade to the default baseline.
	Estimate(ctx context.Context, imageID string) float64
}

// PercentileEstimator implements Estimator over a Source with an optional
// TTL cache refreshed out-of-band by the worker pool.
type PercentileEstimator struct {
	src         Source
	imageLimit  int
	globalLimit int
	minSamples  int
	defaultMS   float64
	cacheTTL    time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value float64
	at    time.Time
}

// New creates a PercentileEstimator with configuration options.
func New(src Source, opts ...Option) *PercentileEstimator {
	e := &PercentileEstimator{
		src:         src,
		imageLimit:  defaultImageLimit,
		globalLimit: defaultGlobalLimit,
		minSamples:  defaultMinSamples,
		defaultMS:   DefaultBaselineMS,
		cache:       make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the baseline for imageID, serving a fresh cached value
// when available and computing through the source otherwise.
func (e *PercentileEstimator) Estimate(ctx context.Context, imageID string) float64 {
	if e.cacheTTL > 0 {
		e.mu.RLock()
		entry, ok := e.cache[imageID]
		e.mu.RUnlock()
		if ok && time.Since(entry.at) < e.cacheTTL {
			metrics.RecordBaselineEstimate("cache")
			return entry.value
		}
	}
	return e.Refresh(ctx, imageID)
}

// Refresh recomputes the baseline for imageID, bypassing and repopulating
// the cache. Used directly by refresh workers after settlements.
func (e *PercentileEstimator) Refresh(ctx context.Context, imageID string) float64 {
	value, source := e.compute(ctx, imageID)
	metrics.RecordBaselineEstimate(source)

	if e.cacheTTL > 0 {
		e.mu.Lock()
		e.cache[imageID] = cacheEntry{value: value, at: time.Now()}
		e.mu.Unlock()
	}
	return value
}

// compute runs the fallback chain: per-image p60 -> global p60 -> default.
func (e *PercentileEstimator) compute(ctx context.Context, imageID string) (float64, string) {
	samples, err := e.src.RecentDurations(ctx, imageID, e.imageLimit)
	if err != nil {
		metrics.RecordBaselineFallback()
		return e.defaultMS, "default"
	}
	if len(samples) >= e.minSamples {
		return math.Max(percentileOf(samples), e.defaultMS), "image"
	}

	samples, err = e.src.RecentDurations(ctx, "", e.globalLimit)
	if err != nil {
		metrics.RecordBaselineFallback()
		return e.defaultMS, "default"
	}
	if len(samples) > 0 {
		return math.Max(percentileOf(samples), e.defaultMS), "global"
	}
	return e.defaultMS, "default"
}

// percentileOf returns the configured percentile of the sample durations,
// sorted ascending with index floor(p * (n-1)).
func percentileOf(samples []model.DurationSample) float64 {
	ms := make([]float64, len(samples))
	for i, s := range samples {
		ms[i] = s.MS
	}
	sort.Float64s(ms)
	idx := int(math.Floor(percentile * float64(len(ms)-1)))
	return ms[idx]
}

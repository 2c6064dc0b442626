// Package round owns the lifecycle of a single round: the session state
// machine and the settlement controller driving scoring and rating.
package round

import (
	"math"
	"sync"
	"time"

	"github.com/okian/spotter/internal/domain/model"
)

// Default session constants.
const (
	defaultMissCooldown = 250 * time.Millisecond
	defaultMaxMisses    = 10
)

// Status is the session's lifecycle position.
type Status string

const (
	StatusReady   Status = "ready"
	StatusActive  Status = "active"
	StatusSettled Status = "settled"
)

// Target is the hidden circular target in the image's native pixel space.
type Target struct {
	X      float64
	Y      float64
	Radius float64
}

// Click is a player click in rendered coordinates plus the rendered size,
// so it can be scaled back into native pixel space.
type Click struct {
	X         float64
	Y         float64
	RenderedW float64
	RenderedH float64
}

// ClickResult is the session's verdict on a registered click.
type ClickResult int

const (
	// ClickIgnored covers clicks on non-active or locked sessions and
	// misses suppressed by the cooldown. These are expected no-ops.
	ClickIgnored ClickResult = iota
	ClickMiss
	ClickHit
	ClickHardStop
)

// Session is the ephemeral per-round state. All transitions run inside a
// single critical section so the locked flag is authoritative at the
// moment a terminal decision is made.
type Session struct {
	mu sync.Mutex

	id          string
	imageID     string
	playerID    string
	displayName string
	nativeW     float64
	nativeH     float64
	target      Target

	status    Status
	missCount int
	lastMiss  time.Time
	startedAt time.Time
	createdAt time.Time
	locked    bool
	outcome   model.Outcome
	rawMS     float64

	// summary is set exactly once by the controller; replays return it.
	summary *Summary

	now       func() time.Time
	cooldown  time.Duration
	maxMisses int
}

// SessionOption applies a configuration option to a Session.
type SessionOption func(*Session)

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMissCooldown sets the duplicate-miss suppression window.
func WithMissCooldown(d time.Duration) SessionOption {
	return func(s *Session) {
		if d >= 0 {
			s.cooldown = d
		}
	}
}

// WithMaxMisses sets the miss count that hard-stops the round.
func WithMaxMisses(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.maxMisses = n
		}
	}
}

// NewSession creates a ready session for one player on one image.
func NewSession(id, imageID, playerID, displayName string, nativeW, nativeH float64, target Target, opts ...SessionOption) *Session {
	s := &Session{
		id:          id,
		imageID:     imageID,
		playerID:    playerID,
		displayName: displayName,
		nativeW:     nativeW,
		nativeH:     nativeH,
		target:      target,
		status:      StatusReady,
		now:         time.Now,
		cooldown:    defaultMissCooldown,
		maxMisses:   defaultMaxMisses,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.createdAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ImageID returns the image under play.
func (s *Session) ImageID() string { return s.imageID }

// PlayerID returns the owning player.
func (s *Session) PlayerID() string { return s.playerID }

// Status returns the current lifecycle position.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Misses returns the registered miss count.
func (s *Session) Misses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missCount
}

// Age returns how long the session has existed, for registry expiry.
func (s *Session) Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.createdAt)
}

// Start moves the session from ready to active and records the start
// timestamp. Returns false if the session was not ready.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusReady || s.locked {
		return false
	}
	s.status = StatusActive
	s.startedAt = s.now()
	return true
}

// RegisterClick processes one click. A hit inside the target radius locks
// the session on success; reaching the miss cap locks it on hard_stop.
// Clicks on locked or non-active sessions are silently ignored, as are
// misses inside the cooldown window.
func (s *Session) RegisterClick(c Click) ClickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked || s.status != StatusActive {
		return ClickIgnored
	}

	if s.isHit(c) {
		s.terminate(model.OutcomeSuccess)
		return ClickHit
	}

	ts := s.now()
	if !s.lastMiss.IsZero() && ts.Sub(s.lastMiss) < s.cooldown {
		return ClickIgnored
	}
	s.lastMiss = ts
	s.missCount++
	if s.missCount >= s.maxMisses {
		s.terminate(model.OutcomeHardStop)
		return ClickHardStop
	}
	return ClickMiss
}

// GiveUp aborts an active round. Returns false if the session was not
// active or already locked.
func (s *Session) GiveUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked || s.status != StatusActive {
		return false
	}
	s.terminate(model.OutcomeGiveUp)
	return true
}

// terminate records the terminal outcome. Must run with s.mu held; the
// locked flag is set in the same critical section as the decision so a
// hit racing the tenth miss cannot double-terminate.
func (s *Session) terminate(outcome model.Outcome) {
	s.locked = true
	s.status = StatusSettled
	s.outcome = outcome
	s.rawMS = float64(s.now().Sub(s.startedAt)) / float64(time.Millisecond)
	if s.rawMS < 0 {
		s.rawMS = 0
	}
}

// isHit scales the click from rendered to native coordinates and tests
// Euclidean distance against the target radius. Must run with s.mu held.
func (s *Session) isHit(c Click) bool {
	if c.RenderedW <= 0 || c.RenderedH <= 0 {
		return false
	}
	nx := c.X * s.nativeW / c.RenderedW
	ny := c.Y * s.nativeH / c.RenderedH
	return math.Hypot(nx-s.target.X, ny-s.target.Y) <= s.target.Radius
}

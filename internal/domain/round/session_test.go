package round

import (
	"sync"
	"testing"
	"time"

	"github.com/okian/spotter/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestSession builds a 2000x1000 native image with a target centered at
// (1000, 500) radius 50, rendered at half size.
func newTestSession(clock *fakeClock, opts ...SessionOption) *Session {
	all := append([]SessionOption{WithClock(clock.Now)}, opts...)
	return NewSession("round-1", "img-1", "player-1", "Alice", 2000, 1000,
		Target{X: 1000, Y: 500, Radius: 50}, all...)
}

func hitClick() Click {
	// Rendered at 1000x500; (500, 250) scales to native (1000, 500).
	return Click{X: 500, Y: 250, RenderedW: 1000, RenderedH: 500}
}

func missClick() Click {
	return Click{X: 10, Y: 10, RenderedW: 1000, RenderedH: 500}
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		clock := newFakeClock()
		s := newTestSession(clock)

		Convey("It begins ready", func() {
			So(s.Status(), ShouldEqual, StatusReady)
		})

		Convey("Clicks before start are ignored", func() {
			So(s.RegisterClick(hitClick()), ShouldEqual, ClickIgnored)
			So(s.Status(), ShouldEqual, StatusReady)
		})

		Convey("GiveUp before start is a no-op", func() {
			So(s.GiveUp(), ShouldBeFalse)
		})

		Convey("Start moves it to active exactly once", func() {
			So(s.Start(), ShouldBeTrue)
			So(s.Status(), ShouldEqual, StatusActive)
			So(s.Start(), ShouldBeFalse)
		})
	})
}

func TestSessionHitDetection(t *testing.T) {
	Convey("Given an active session", t, func() {
		clock := newFakeClock()
		s := newTestSession(clock)
		So(s.Start(), ShouldBeTrue)

		Convey("A scaled click inside the radius is a hit", func() {
			So(s.RegisterClick(hitClick()), ShouldEqual, ClickHit)
			So(s.Status(), ShouldEqual, StatusSettled)
		})

		Convey("A click just inside the boundary is a hit", func() {
			// Native (1049, 500) is 49px from center, inside radius 50.
			c := Click{X: 524.5, Y: 250, RenderedW: 1000, RenderedH: 500}
			So(s.RegisterClick(c), ShouldEqual, ClickHit)
		})

		Convey("A click just outside the boundary is a miss", func() {
			// Native (1051, 500) is 51px from center.
			c := Click{X: 525.5, Y: 250, RenderedW: 1000, RenderedH: 500}
			So(s.RegisterClick(c), ShouldEqual, ClickMiss)
			So(s.Misses(), ShouldEqual, 1)
		})

		Convey("Degenerate rendered dimensions never count as a hit", func() {
			c := Click{X: 0, Y: 0, RenderedW: 0, RenderedH: 0}
			So(s.RegisterClick(c), ShouldEqual, ClickMiss)
		})

		Convey("Clicks after a hit are ignored", func() {
			So(s.RegisterClick(hitClick()), ShouldEqual, ClickHit)
			So(s.RegisterClick(hitClick()), ShouldEqual, ClickIgnored)
			So(s.RegisterClick(missClick()), ShouldEqual, ClickIgnored)
		})
	})
}

func TestSessionMissCooldown(t *testing.T) {
	Convey("Given an active session with the default cooldown", t, func() {
		clock := newFakeClock()
		s := newTestSession(clock)
		So(s.Start(), ShouldBeTrue)

		Convey("Rapid-fire misses inside 250ms register once", func() {
			So(s.RegisterClick(missClick()), ShouldEqual, ClickMiss)
			clock.Advance(100 * time.Millisecond)
			So(s.RegisterClick(missClick()), ShouldEqual, ClickIgnored)
			So(s.Misses(), ShouldEqual, 1)
		})

		Convey("Misses spaced past the cooldown all register", func() {
			So(s.RegisterClick(missClick()), ShouldEqual, ClickMiss)
			clock.Advance(300 * time.Millisecond)
			So(s.RegisterClick(missClick()), ShouldEqual, ClickMiss)
			So(s.Misses(), ShouldEqual, 2)
		})
	})
}

func TestSessionHardStop(t *testing.T) {
	Convey("Given an active session", t, func() {
		clock := newFakeClock()
		s := newTestSession(clock)
		So(s.Start(), ShouldBeTrue)

		Convey("The tenth miss hard-stops and locks the round", func() {
			for i := 0; i < 9; i++ {
				So(s.RegisterClick(missClick()), ShouldEqual, ClickMiss)
				clock.Advance(time.Second)
			}
			So(s.RegisterClick(missClick()), ShouldEqual, ClickHardStop)
			So(s.Status(), ShouldEqual, StatusSettled)
			So(s.Misses(), ShouldEqual, 10)

			Convey("And a queued hit arriving late is ignored", func() {
				So(s.RegisterClick(hitClick()), ShouldEqual, ClickIgnored)
			})
		})
	})
}

func TestSessionGiveUp(t *testing.T) {
	Convey("Given an active session", t, func() {
		clock := newFakeClock()
		s := newTestSession(clock)
		So(s.Start(), ShouldBeTrue)

		Convey("GiveUp terminates the round", func() {
			So(s.GiveUp(), ShouldBeTrue)
			So(s.Status(), ShouldEqual, StatusSettled)
			So(s.outcome, ShouldEqual, model.OutcomeGiveUp)

			Convey("And a second abort is a no-op", func() {
				So(s.GiveUp(), ShouldBeFalse)
			})
		})
	})
}

func TestSessionRawDuration(t *testing.T) {
	Convey("Given an active session", t, func() {
		clock := newFakeClock()
		s := newTestSession(clock)
		So(s.Start(), ShouldBeTrue)

		Convey("The raw duration covers start to terminal event", func() {
			clock.Advance(42 * time.Second)
			So(s.RegisterClick(hitClick()), ShouldEqual, ClickHit)
			So(s.rawMS, ShouldAlmostEqual, 42_000, 1e-9)
		})
	})
}

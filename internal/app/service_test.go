package service

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spotter/internal/adapters/repository"
	"github.com/okian/spotter/internal/domain/model"
	"github.com/okian/spotter/internal/domain/round"
	"github.com/okian/spotter/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func newTestService(t *testing.T) (*Service, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := New(repository.NewMemStore(),
		WithWorkerCount(1),
		WithMissCooldown(0),
		WithMaxMisses(3),
	)
	if err := svc.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start service: %v", err)
	}
	return svc, func() {
		svc.Stop(context.Background())
		cancel()
	}
}

func testParams() CreateRoundParams {
	return CreateRoundParams{
		ImageID:     "img1",
		PlayerID:    "p1",
		DisplayName: "Ada",
		NativeW:     2000,
		NativeH:     1000,
		Target:      round.Target{X: 1000, Y: 500, Radius: 50},
	}
}

func hitClick() round.Click {
	return round.Click{X: 500, Y: 250, RenderedW: 1000, RenderedH: 500}
}

func missClick() round.Click {
	return round.Click{X: 10, Y: 10, RenderedW: 1000, RenderedH: 500}
}

func TestCreateRoundValidation(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()
	ctx := context.Background()

	Convey("Given invalid round parameters", t, func() {
		Convey("a blank image id is refused", func() {
			p := testParams()
			p.ImageID = ""
			_, err := svc.CreateRound(ctx, p)
			So(err, ShouldEqual, ErrInvalidArgument)
		})

		Convey("a blank player id is refused", func() {
			p := testParams()
			p.PlayerID = ""
			_, err := svc.CreateRound(ctx, p)
			So(err, ShouldEqual, ErrInvalidArgument)
		})

		Convey("degenerate dimensions are refused", func() {
			p := testParams()
			p.NativeW = 0
			_, err := svc.CreateRound(ctx, p)
			So(err, ShouldEqual, ErrInvalidArgument)

			p = testParams()
			p.Target.Radius = 0
			_, err = svc.CreateRound(ctx, p)
			So(err, ShouldEqual, ErrInvalidArgument)
		})
	})
}

func TestRoundLifecycle(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()
	ctx := context.Background()

	Convey("Given a created round", t, func() {
		sess, err := svc.CreateRound(ctx, testParams())
		So(err, ShouldBeNil)
		So(sess.ID(), ShouldNotBeEmpty)
		So(sess.Status(), ShouldEqual, round.StatusReady)

		Convey("clicks before start are ignored", func() {
			result, summary, err := svc.RegisterClick(ctx, sess.ID(), hitClick())
			So(err, ShouldBeNil)
			So(result, ShouldEqual, round.ClickIgnored)
			So(summary, ShouldBeNil)
		})

		Convey("starting it twice conflicts", func() {
			_, err := svc.StartRound(ctx, sess.ID())
			So(err, ShouldBeNil)
			_, err = svc.StartRound(ctx, sess.ID())
			So(err, ShouldEqual, ErrRoundConflict)
		})

		Convey("a hit settles the round and rates it", func() {
			_, err := svc.StartRound(ctx, sess.ID())
			So(err, ShouldBeNil)

			result, summary, err := svc.RegisterClick(ctx, sess.ID(), hitClick())
			So(err, ShouldBeNil)
			So(result, ShouldEqual, round.ClickHit)
			So(summary, ShouldNotBeNil)
			So(summary.Outcome, ShouldEqual, model.OutcomeSuccess)
			So(summary.Rated, ShouldBeTrue)
			So(sess.Status(), ShouldEqual, round.StatusSettled)

			entry, err := svc.Player(ctx, "p1")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 1)
			So(entry.Games, ShouldEqual, 1)
			So(entry.DisplayName, ShouldEqual, "Ada")

			result, replay, err := svc.RegisterClick(ctx, sess.ID(), hitClick())
			So(err, ShouldBeNil)
			So(result, ShouldEqual, round.ClickIgnored)
			So(replay, ShouldEqual, summary)

			replay, err = svc.GiveUp(ctx, sess.ID())
			So(err, ShouldBeNil)
			So(replay, ShouldEqual, summary)
		})

		Convey("reaching the miss cap hard-stops the round", func() {
			_, err := svc.StartRound(ctx, sess.ID())
			So(err, ShouldBeNil)

			var last round.ClickResult
			var summary *round.Summary
			for i := 0; i < 3; i++ {
				last, summary, err = svc.RegisterClick(ctx, sess.ID(), missClick())
				So(err, ShouldBeNil)
			}
			So(last, ShouldEqual, round.ClickHardStop)
			So(summary, ShouldNotBeNil)
			So(summary.Outcome, ShouldEqual, model.OutcomeHardStop)
			So(summary.Misses, ShouldEqual, 3)
		})

		Convey("giving up an active round settles it as give_up", func() {
			_, err := svc.StartRound(ctx, sess.ID())
			So(err, ShouldBeNil)

			summary, err := svc.GiveUp(ctx, sess.ID())
			So(err, ShouldBeNil)
			So(summary.Outcome, ShouldEqual, model.OutcomeGiveUp)
		})

		Convey("giving up before start conflicts", func() {
			_, err := svc.GiveUp(ctx, sess.ID())
			So(err, ShouldEqual, ErrRoundConflict)
		})
	})

	Convey("Given no such round", t, func() {
		_, err := svc.StartRound(ctx, "nope")
		So(err, ShouldEqual, ErrRoundNotFound)

		_, _, err = svc.RegisterClick(ctx, "nope", hitClick())
		So(err, ShouldEqual, ErrRoundNotFound)

		_, err = svc.GiveUp(ctx, "nope")
		So(err, ShouldEqual, ErrRoundNotFound)
	})
}

func TestLeaderboardLimits(t *testing.T) {
	Convey("Given a service with a small leaderboard cap", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := repository.NewMemStore()
		svc := New(store, WithWorkerCount(1), WithMaxLeaderboardLimit(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(context.Background())

		for _, id := range []string{"a", "b", "c"} {
			_, err := store.EnsureRating(ctx, model.KindPlayer, id, "")
			So(err, ShouldBeNil)
		}

		Convey("oversized limits are clamped", func() {
			entries, err := svc.Leaderboard(ctx, 50)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
		})

		Convey("a non-positive limit falls back to the default, then the cap", func() {
			entries, err := svc.Leaderboard(ctx, 0)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 2)
		})
	})
}

func TestSessionExpiry(t *testing.T) {
	Convey("Given a service with a very short session TTL", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		svc := New(repository.NewMemStore(),
			WithWorkerCount(1),
			WithSessionTTL(10*time.Millisecond),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(context.Background())

		sess, err := svc.CreateRound(ctx, testParams())
		So(err, ShouldBeNil)

		Convey("the janitor eventually drops the session", func() {
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				if _, err := svc.Round(sess.ID()); err == ErrRoundNotFound {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			_, err := svc.Round(sess.ID())
			So(err, ShouldEqual, ErrRoundNotFound)
		})
	})
}

func TestGetStats(t *testing.T) {
	svc, stop := newTestService(t)
	defer stop()
	ctx := context.Background()

	Convey("Given a started service with one live round", t, func() {
		_, err := svc.CreateRound(ctx, testParams())
		So(err, ShouldBeNil)

		stats := svc.GetStats()
		So(stats["started"], ShouldBeTrue)
		So(stats["liveSessions"], ShouldEqual, 1)
		So(stats, ShouldContainKey, "queueLength")
		So(stats, ShouldContainKey, "trackedPlayers")
	})
}

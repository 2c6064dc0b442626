package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spotter/internal/domain/model"
)

func TestMemStoreRatings(t *testing.T) {
	Convey("Given an empty in-memory store", t, func() {
		ctx := context.Background()
		s := NewMemStore()

		Convey("Rating on a missing row returns not-found", func() {
			_, err := s.Rating(ctx, model.KindPlayer, "p1")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("EnsureRating creates the row at the initial rating", func() {
			r, err := s.EnsureRating(ctx, model.KindPlayer, "p1", "Ada")
			So(err, ShouldBeNil)
			So(r.Value, ShouldEqual, model.InitialRating)
			So(r.Games, ShouldEqual, 0)
			So(r.DisplayName, ShouldEqual, "Ada")

			Convey("and is idempotent, keeping the name when blank", func() {
				again, err := s.EnsureRating(ctx, model.KindPlayer, "p1", "")
				So(err, ShouldBeNil)
				So(again.Value, ShouldEqual, model.InitialRating)
				So(again.DisplayName, ShouldEqual, "Ada")
			})
		})

		Convey("ApplyRatingDelta on a missing row returns not-found", func() {
			_, err := s.ApplyRatingDelta(ctx, model.KindImage, "img1", 5, 1)
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("ApplyRatingDelta adds to rating and games", func() {
			_, err := s.EnsureRating(ctx, model.KindImage, "img1", "")
			So(err, ShouldBeNil)

			r, err := s.ApplyRatingDelta(ctx, model.KindImage, "img1", -12, 1)
			So(err, ShouldBeNil)
			So(r.Value, ShouldEqual, model.InitialRating-12)
			So(r.Games, ShouldEqual, 1)
		})

		Convey("SetDisplayName updates an existing player", func() {
			_, err := s.EnsureRating(ctx, model.KindPlayer, "p1", "")
			So(err, ShouldBeNil)
			So(s.SetDisplayName(ctx, "p1", "Grace"), ShouldBeNil)

			r, err := s.Rating(ctx, model.KindPlayer, "p1")
			So(err, ShouldBeNil)
			So(r.DisplayName, ShouldEqual, "Grace")

			So(s.SetDisplayName(ctx, "nobody", "x"), ShouldEqual, ErrNotFound)
		})
	})
}

func TestMemStoreConcurrentDeltas(t *testing.T) {
	Convey("Given many settlements racing on the same player", t, func() {
		ctx := context.Background()
		s := NewMemStore()
		_, err := s.EnsureRating(ctx, model.KindPlayer, "p1", "")
		So(err, ShouldBeNil)

		const n = 64
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				_, _ = s.ApplyRatingDelta(ctx, model.KindPlayer, "p1", 1, 1)
			}()
		}
		wg.Wait()

		Convey("no update is lost", func() {
			r, err := s.Rating(ctx, model.KindPlayer, "p1")
			So(err, ShouldBeNil)
			So(r.Value, ShouldEqual, model.InitialRating+n)
			So(r.Games, ShouldEqual, n)
		})
	})
}

func TestMemStoreRounds(t *testing.T) {
	Convey("Given a store with a few settled rounds", t, func() {
		ctx := context.Background()
		s := NewMemStore()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		record := func(player, image string, outcome model.Outcome, usedMS float64, offset time.Duration) {
			So(s.AppendRound(ctx, model.RoundRecord{
				ImageID:   image,
				PlayerID:  player,
				RawMS:     usedMS,
				UsedMS:    usedMS,
				Outcome:   outcome,
				CreatedAt: base.Add(offset),
			}), ShouldBeNil)
		}

		record("p1", "img1", model.OutcomeSuccess, 30_000, 0)
		record("p2", "img1", model.OutcomeSuccess, 45_000, time.Minute)
		record("p1", "img2", model.OutcomeGiveUp, 900_000, 2*time.Minute)
		record("p3", "img2", model.OutcomeSuccess, 60_000, 3*time.Minute)

		Convey("RecentDurations for one image returns only its successes, newest first", func() {
			samples, err := s.RecentDurations(ctx, "img1", 10)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 2)
			So(samples[0].MS, ShouldEqual, 45_000)
			So(samples[1].MS, ShouldEqual, 30_000)
		})

		Convey("an empty image id queries across all images", func() {
			samples, err := s.RecentDurations(ctx, "", 10)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 3)
			So(samples[0].MS, ShouldEqual, 60_000)
		})

		Convey("the limit is honored", func() {
			samples, err := s.RecentDurations(ctx, "", 1)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 1)

			_, err = s.RecentDurations(ctx, "", 0)
			So(err, ShouldEqual, ErrInvalidLimit)
		})

		Convey("HasPriorSuccess only counts success outcomes", func() {
			ok, err := s.HasPriorSuccess(ctx, "p1", "img1")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			ok, err = s.HasPriorSuccess(ctx, "p1", "img2")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a store with a tiny history cap", t, func() {
		ctx := context.Background()
		s := NewMemStore(WithMaxHistory(2))
		for i := 0; i < 5; i++ {
			So(s.AppendRound(ctx, model.RoundRecord{
				ImageID:   "img1",
				PlayerID:  fmt.Sprintf("p%d", i),
				UsedMS:    float64(i * 1000),
				Outcome:   model.OutcomeSuccess,
				CreatedAt: time.Now(),
			}), ShouldBeNil)
		}

		Convey("only the newest samples survive", func() {
			samples, err := s.RecentDurations(ctx, "img1", 10)
			So(err, ShouldBeNil)
			So(samples, ShouldHaveLength, 2)
			So(samples[0].MS, ShouldEqual, 4000)
			So(samples[1].MS, ShouldEqual, 3000)
		})
	})
}

func TestMemStoreLeaderboard(t *testing.T) {
	Convey("Given players with distinct ratings", t, func() {
		ctx := context.Background()
		s := NewMemStore()
		for id, delta := range map[string]float64{"a": 40, "b": -10, "c": 25} {
			_, err := s.EnsureRating(ctx, model.KindPlayer, id, "")
			So(err, ShouldBeNil)
			_, err = s.ApplyRatingDelta(ctx, model.KindPlayer, id, delta, 1)
			So(err, ShouldBeNil)
		}
		_, err := s.EnsureRating(ctx, model.KindImage, "img1", "")
		So(err, ShouldBeNil)

		Convey("TopPlayers orders by rating descending with ranks", func() {
			top, err := s.TopPlayers(ctx, 10)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 3)
			So(top[0].PlayerID, ShouldEqual, "a")
			So(top[0].Rank, ShouldEqual, 1)
			So(top[1].PlayerID, ShouldEqual, "c")
			So(top[2].PlayerID, ShouldEqual, "b")
			So(top[2].Rank, ShouldEqual, 3)
		})

		Convey("PlayerEntry returns the rank for one player", func() {
			e, err := s.PlayerEntry(ctx, "c")
			So(err, ShouldBeNil)
			So(e.Rank, ShouldEqual, 2)
			So(e.Rating, ShouldEqual, model.InitialRating+25)
			So(e.Games, ShouldEqual, 1)

			_, err = s.PlayerEntry(ctx, "nobody")
			So(err, ShouldEqual, ErrNotFound)
		})

		Convey("Counts separates players from images", func() {
			players, images := s.Counts(ctx)
			So(players, ShouldEqual, 3)
			So(images, ShouldEqual, 1)
		})
	})
}

package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/feisworks/feispoints/internal/adapters/repository"
	"github.com/feisworks/feispoints/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "feis.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RawScores(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		store := newSQLiteStore(t)
		ctx := context.Background()

		Convey("When the same judge rescores the same competitor", func() {
			score := model.RawScore{JudgeID: "judge-a", CompetitorID: "101", RoundID: "round-1", Value: 80, Notes: "first pass"}
			So(store.SaveRawScore(ctx, score), ShouldBeNil)
			score.Value = 85
			score.Notes = "corrected"
			So(store.SaveRawScore(ctx, score), ShouldBeNil)

			Convey("Then the upsert keeps one row with the last value", func() {
				scores, err := store.RawScores(ctx, "round-1")
				So(err, ShouldBeNil)
				So(scores, ShouldHaveLength, 1)
				So(scores[0].Value, ShouldEqual, 85)
				So(scores[0].Notes, ShouldEqual, "corrected")
			})
		})
	})
}

func TestSQLiteStore_Placements(t *testing.T) {
	Convey("Given a sqlite store", t, func() {
		store := newSQLiteStore(t)
		ctx := context.Background()
		placement := model.PlacementHistory{
			ID:              "p1",
			DancerID:        "dancer-1",
			CompetitionID:   "comp-1",
			FeisID:          "feis-1",
			EntryID:         "entry-1",
			Rank:            1,
			Points:          275,
			Level:           "novice",
			DanceType:       "reel",
			CompetitionDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		}

		Convey("When a placement is saved and marked", func() {
			So(store.SavePlacement(ctx, placement), ShouldBeNil)
			So(store.MarkPlacementAdvancement(ctx, "p1"), ShouldBeNil)

			Convey("Then the history round-trips with the flag set", func() {
				history, err := store.Placements(ctx, "dancer-1")
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 1)
				So(history[0].TriggeredAdvancement, ShouldBeTrue)
				So(history[0].Points, ShouldEqual, 275)
				So(history[0].CompetitionDate.Equal(placement.CompetitionDate), ShouldBeTrue)
			})
		})

		Convey("When the same competition is finalized again", func() {
			So(store.SavePlacement(ctx, placement), ShouldBeNil)
			So(store.MarkPlacementAdvancement(ctx, "p1"), ShouldBeNil)

			redo := placement
			redo.ID = "p1-redo"
			redo.Rank = 2
			redo.Points = 250
			So(store.SavePlacement(ctx, redo), ShouldBeNil)

			Convey("Then the upsert keeps one row with the original id", func() {
				history, err := store.Placements(ctx, "dancer-1")
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 1)
				So(history[0].ID, ShouldEqual, "p1")
				So(history[0].TriggeredAdvancement, ShouldBeTrue)
				So(history[0].Rank, ShouldEqual, 2)
				So(history[0].Points, ShouldEqual, 250)
			})
		})

		Convey("When marking an unknown placement", func() {
			So(store.MarkPlacementAdvancement(ctx, "nope"), ShouldWrap, repository.ErrNotFound)
		})
	})
}

func TestSQLiteStore_NoticeUniqueness(t *testing.T) {
	Convey("Given a sqlite store with a persisted notice", t, func() {
		store := newSQLiteStore(t)
		ctx := context.Background()
		notice := model.AdvancementNotice{
			ID:        "n1",
			DancerID:  "dancer-1",
			FromLevel: "novice",
			ToLevel:   "prizewinner",
			DanceType: "reel",
			CreatedAt: time.Now().UTC(),
		}
		So(store.SaveNotice(ctx, notice), ShouldBeNil)

		Convey("When inserting the same tuple under a new id", func() {
			dup := notice
			dup.ID = "n2"

			Convey("Then the unique index refuses it", func() {
				So(store.SaveNotice(ctx, dup), ShouldWrap, repository.ErrDuplicateNotice)
			})
		})

		Convey("When acknowledging through UpdateNotice", func() {
			at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			updated := notice
			updated.Acknowledged = true
			updated.AcknowledgedAt = &at
			updated.AcknowledgedBy = "teacher-1"
			So(store.UpdateNotice(ctx, updated), ShouldBeNil)

			Convey("Then the stored notice carries the transition", func() {
				got, err := store.Notice(ctx, "n1")
				So(err, ShouldBeNil)
				So(got.Acknowledged, ShouldBeTrue)
				So(got.AcknowledgedBy, ShouldEqual, "teacher-1")
				So(got.AcknowledgedAt, ShouldNotBeNil)
				So(got.AcknowledgedAt.Equal(at), ShouldBeTrue)
			})
		})

		Convey("When querying by dancer and level", func() {
			notices, err := store.Notices(ctx, "dancer-1", "novice")
			So(err, ShouldBeNil)
			So(notices, ShouldHaveLength, 1)

			none, err := store.Notices(ctx, "dancer-1", "prizewinner")
			So(err, ShouldBeNil)
			So(none, ShouldBeEmpty)
		})
	})
}

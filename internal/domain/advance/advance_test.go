package advance_test

import (
	"fmt"
	"testing"
	"time"

	advance "github.com/feisworks/feispoints/internal/domain/advance"
	"github.com/feisworks/feispoints/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var testRules = advance.Rules{
	"novice": {
		WinsRequired: 1,
		NextLevel:    "prizewinner",
		PerDance:     true,
	},
	"prizewinner": {
		WinsRequired: 1,
		NextLevel:    "preliminary_championship",
	},
	"preliminary_championship": {
		WinsRequired: 2,
		NextLevel:    "open_championship",
	},
}

func newEvaluator() *advance.Evaluator {
	seq := 0
	return advance.New(testRules,
		advance.WithClock(func() time.Time {
			return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
		}),
		advance.WithIDGenerator(func() model.NoticeID {
			seq++
			return model.NoticeID(fmt.Sprintf("notice-%d", seq))
		}),
	)
}

func win(id string, level model.Level, dance model.DanceType, day int) model.PlacementHistory {
	return model.PlacementHistory{
		ID:              id,
		DancerID:        "dancer-1",
		Rank:            1,
		Level:           level,
		DanceType:       dance,
		CompetitionDate: time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestCheck_PerDanceRule(t *testing.T) {
	Convey("Given a novice dancer under a per-dance rule", t, func() {
		eval := newEvaluator()
		dancer := model.Dancer{ID: "dancer-1", CurrentLevel: "novice"}

		Convey("When the dancer wins a reel", func() {
			history := []model.PlacementHistory{win("p1", "novice", "reel", 1)}
			notices := eval.Check(dancer, history, nil)

			Convey("Then one notice scoped to the reel is produced", func() {
				So(notices, ShouldHaveLength, 1)
				So(notices[0].DanceType, ShouldEqual, model.DanceType("reel"))
				So(notices[0].FromLevel, ShouldEqual, model.Level("novice"))
				So(notices[0].ToLevel, ShouldEqual, model.Level("prizewinner"))
				So(notices[0].TriggeringPlacementID, ShouldEqual, "p1")
			})
		})

		Convey("When the dancer wins a reel and a slip jig", func() {
			history := []model.PlacementHistory{
				win("p1", "novice", "reel", 1),
				win("p2", "novice", "slip_jig", 2),
			}
			notices := eval.Check(dancer, history, nil)

			Convey("Then each dance type produces its own notice", func() {
				So(notices, ShouldHaveLength, 2)
				So(notices[0].DanceType, ShouldEqual, model.DanceType("reel"))
				So(notices[1].DanceType, ShouldEqual, model.DanceType("slip_jig"))
			})
		})

		Convey("When the dancer places second", func() {
			history := []model.PlacementHistory{
				{ID: "p1", DancerID: "dancer-1", Rank: 2, Level: "novice", DanceType: "reel"},
			}
			So(eval.Check(dancer, history, nil), ShouldBeEmpty)
		})

		Convey("When the win happened at a lower level", func() {
			history := []model.PlacementHistory{win("p1", "beginner", "reel", 1)}
			So(eval.Check(dancer, history, nil), ShouldBeEmpty)
		})
	})
}

func TestCheck_AllDanceRule(t *testing.T) {
	Convey("Given a championship dancer whose rule needs two wins", t, func() {
		eval := newEvaluator()
		dancer := model.Dancer{ID: "dancer-1", CurrentLevel: "preliminary_championship"}

		Convey("When the dancer holds one win", func() {
			history := []model.PlacementHistory{win("p1", "preliminary_championship", "reel", 1)}
			So(eval.Check(dancer, history, nil), ShouldBeEmpty)
		})

		Convey("When the dancer holds two wins across different dances", func() {
			history := []model.PlacementHistory{
				win("p1", "preliminary_championship", "reel", 1),
				win("p2", "preliminary_championship", "slip_jig", 5),
			}
			notices := eval.Check(dancer, history, nil)

			Convey("Then one all-dances notice is produced", func() {
				So(notices, ShouldHaveLength, 1)
				So(notices[0].DanceType, ShouldEqual, model.AllDances)
				So(notices[0].ToLevel, ShouldEqual, model.Level("open_championship"))

				Convey("And the newest win is the trigger", func() {
					So(notices[0].TriggeringPlacementID, ShouldEqual, "p2")
				})
			})
		})
	})
}

func TestCheck_Idempotence(t *testing.T) {
	Convey("Given a dancer with a qualifying win", t, func() {
		eval := newEvaluator()
		dancer := model.Dancer{ID: "dancer-1", CurrentLevel: "novice"}
		history := []model.PlacementHistory{win("p1", "novice", "reel", 1)}

		first := eval.Check(dancer, history, nil)
		So(first, ShouldHaveLength, 1)

		Convey("When checking again with the notice already recorded", func() {
			So(eval.Check(dancer, history, first), ShouldBeEmpty)
		})

		Convey("When the recorded notice has been acknowledged", func() {
			resolved, err := advance.Acknowledge(first[0], "teacher-1", time.Now())
			So(err, ShouldBeNil)

			Convey("Then the tuple still never re-fires", func() {
				So(eval.Check(dancer, history, []model.AdvancementNotice{resolved}), ShouldBeEmpty)
			})
		})

		Convey("When the recorded notice has been overridden", func() {
			resolved, err := advance.Override(first[0], "admin-1", "teacher request")
			So(err, ShouldBeNil)
			So(eval.Check(dancer, history, []model.AdvancementNotice{resolved}), ShouldBeEmpty)
		})

		Convey("When a second dance qualifies later", func() {
			later := append(history, win("p2", "novice", "jig", 8))
			notices := eval.Check(dancer, later, first)

			Convey("Then only the new dance fires", func() {
				So(notices, ShouldHaveLength, 1)
				So(notices[0].DanceType, ShouldEqual, model.DanceType("jig"))
			})
		})
	})

	Convey("Given a dancer at a level with no rule", t, func() {
		eval := newEvaluator()
		dancer := model.Dancer{ID: "dancer-1", CurrentLevel: "open_championship"}
		history := []model.PlacementHistory{win("p1", "open_championship", "reel", 1)}

		Convey("When checking", func() {
			So(eval.Check(dancer, history, nil), ShouldBeEmpty)
		})
	})
}

func TestEligible(t *testing.T) {
	Convey("Given a novice dancer", t, func() {
		dancer := model.Dancer{ID: "dancer-1", CurrentLevel: "novice"}
		comp := model.Competition{ID: "comp-1", Level: "novice", DanceType: "reel"}
		open := model.AdvancementNotice{
			ID:        "n1",
			DancerID:  "dancer-1",
			FromLevel: "novice",
			ToLevel:   "prizewinner",
			DanceType: "reel",
		}

		Convey("When no notices exist", func() {
			ok, msg := advance.Eligible(dancer, comp, nil)
			So(ok, ShouldBeTrue)
			So(msg, ShouldBeEmpty)
		})

		Convey("When an open notice matches the competition's dance", func() {
			ok, msg := advance.Eligible(dancer, comp, []model.AdvancementNotice{open})
			So(ok, ShouldBeFalse)
			So(msg, ShouldContainSubstring, "prizewinner")
		})

		Convey("When the open notice is for a different dance", func() {
			other := open
			other.DanceType = "slip_jig"
			ok, _ := advance.Eligible(dancer, comp, []model.AdvancementNotice{other})
			So(ok, ShouldBeTrue)
		})

		Convey("When an open all-dances notice exists", func() {
			all := open
			all.DanceType = model.AllDances
			ok, _ := advance.Eligible(dancer, comp, []model.AdvancementNotice{all})
			So(ok, ShouldBeFalse)
		})

		Convey("When the blocking notice has been acknowledged", func() {
			resolved, err := advance.Acknowledge(open, "teacher-1", time.Now())
			So(err, ShouldBeNil)
			ok, _ := advance.Eligible(dancer, comp, []model.AdvancementNotice{resolved})
			So(ok, ShouldBeTrue)
		})

		Convey("When the blocking notice has been overridden", func() {
			resolved, err := advance.Override(open, "admin-1", "stays down a season")
			So(err, ShouldBeNil)
			ok, _ := advance.Eligible(dancer, comp, []model.AdvancementNotice{resolved})
			So(ok, ShouldBeTrue)
		})

		Convey("When registering at a level other than the dancer's own", func() {
			wrong := comp
			wrong.Level = "prizewinner"
			ok, msg := advance.Eligible(dancer, wrong, nil)
			So(ok, ShouldBeFalse)
			So(msg, ShouldContainSubstring, "novice")
		})
	})
}

func TestNoticeLifecycle(t *testing.T) {
	Convey("Given an open notice", t, func() {
		n := model.AdvancementNotice{ID: "n1", DancerID: "dancer-1", FromLevel: "novice", ToLevel: "prizewinner"}
		So(n.Open(), ShouldBeTrue)

		Convey("When it is acknowledged", func() {
			at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			ack, err := advance.Acknowledge(n, "teacher-1", at)
			So(err, ShouldBeNil)
			So(ack.Acknowledged, ShouldBeTrue)
			So(*ack.AcknowledgedAt, ShouldEqual, at)
			So(ack.AcknowledgedBy, ShouldEqual, "teacher-1")
			So(ack.Open(), ShouldBeFalse)

			Convey("Then acknowledging again fails", func() {
				_, err := advance.Acknowledge(ack, "teacher-2", time.Now())
				So(err, ShouldEqual, advance.ErrAlreadyResolved)
			})

			Convey("And overriding it fails too", func() {
				_, err := advance.Override(ack, "admin-1", "late change")
				So(err, ShouldEqual, advance.ErrAlreadyResolved)
			})
		})

		Convey("When it is overridden", func() {
			over, err := advance.Override(n, "admin-1", "teacher request")
			So(err, ShouldBeNil)
			So(over.Overridden, ShouldBeTrue)
			So(over.OverrideReason, ShouldEqual, "teacher request")
			So(over.Open(), ShouldBeFalse)

			Convey("Then acknowledging it afterwards fails", func() {
				_, err := advance.Acknowledge(over, "teacher-1", time.Now())
				So(err, ShouldEqual, advance.ErrAlreadyResolved)
			})
		})
	})
}

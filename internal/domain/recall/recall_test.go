package recall_test

import (
	"fmt"
	"testing"

	"github.com/feisworks/feispoints/internal/domain/model"
	recall "github.com/feisworks/feispoints/internal/domain/recall"
	. "github.com/smartystreets/goconvey/convey"
)

func ranked(id string, total float64) model.RankedResult {
	return model.RankedResult{CompetitorID: model.CompetitorID(id), TotalPoints: total}
}

func field(totals ...float64) []model.RankedResult {
	results := make([]model.RankedResult, len(totals))
	for i, t := range totals {
		results[i] = ranked(fmt.Sprintf("c%02d", i+1), t)
	}
	return results
}

func TestSelect_Cutoff(t *testing.T) {
	Convey("Given the default half-field selector", t, func() {
		sel := recall.New()

		Convey("When the field has ten distinct totals", func() {
			recalled := sel.Select(field(200, 190, 180, 170, 160, 150, 140, 130, 120, 110))

			Convey("Then exactly the top five are recalled", func() {
				So(recalled, ShouldHaveLength, 5)
				So(recalled[0], ShouldEqual, model.CompetitorID("c01"))
				So(recalled[4], ShouldEqual, model.CompetitorID("c05"))
			})
		})

		Convey("When the field has eleven distinct totals", func() {
			recalled := sel.Select(field(200, 190, 180, 170, 160, 150, 140, 130, 120, 110, 100))

			Convey("Then the cutoff rounds up to six", func() {
				So(recalled, ShouldHaveLength, 6)
				So(recalled[5], ShouldEqual, model.CompetitorID("c06"))
			})
		})

		Convey("When the field has a single competitor", func() {
			recalled := sel.Select(field(42))
			So(recalled, ShouldHaveLength, 1)
		})

		Convey("When the field is empty", func() {
			So(sel.Select(nil), ShouldBeNil)
		})
	})
}

func TestSelect_TieExtension(t *testing.T) {
	Convey("Given the default half-field selector", t, func() {
		sel := recall.New()

		Convey("When places five through seven tie on the cutoff value", func() {
			recalled := sel.Select(field(200, 190, 180, 170, 160, 160, 160, 130, 120, 110))

			Convey("Then the recall extends to all seven", func() {
				So(recalled, ShouldHaveLength, 7)
				So(recalled[6], ShouldEqual, model.CompetitorID("c07"))
			})
		})

		Convey("When totals at the line differ inside the tolerance", func() {
			results := field(200, 190, 180, 170, 160, 150, 140, 130, 120, 110)
			results[5].TotalPoints = results[4].TotalPoints - 5e-7

			recalled := sel.Select(results)

			Convey("Then the near-equal competitor is treated as tied", func() {
				So(recalled, ShouldHaveLength, 6)
			})
		})

		Convey("When the total just past the line differs by a real margin", func() {
			results := field(200, 190, 180, 170, 160.004, 160.0, 140, 130, 120, 110)
			recalled := sel.Select(results)

			Convey("Then the margin ends the recall", func() {
				So(recalled, ShouldHaveLength, 5)
			})
		})
	})
}

func TestSelect_Properties(t *testing.T) {
	Convey("Given an unsorted field", t, func() {
		sel := recall.New()
		results := []model.RankedResult{
			ranked("c03", 150),
			ranked("c01", 200),
			ranked("c04", 120),
			ranked("c02", 180),
		}

		Convey("When selecting", func() {
			recalled := sel.Select(results)

			Convey("Then the recall is sorted by total descending", func() {
				So(recalled, ShouldResemble, []model.CompetitorID{"c01", "c02"})
			})

			Convey("And the input order is untouched", func() {
				So(results[0].CompetitorID, ShouldEqual, model.CompetitorID("c03"))
			})
		})
	})

	Convey("Given a custom recall fraction", t, func() {
		sel := recall.New(recall.WithFraction(0.25))

		Convey("When selecting from eight distinct totals", func() {
			recalled := sel.Select(field(200, 190, 180, 170, 160, 150, 140, 130))
			So(recalled, ShouldHaveLength, 2)
		})
	})
}

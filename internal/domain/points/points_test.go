package points_test

import (
	"testing"

	points "github.com/feisworks/feispoints/internal/domain/points"
	. "github.com/smartystreets/goconvey/convey"
)

func TestForRank(t *testing.T) {
	Convey("Given the Irish Points table", t, func() {
		Convey("When looking up the podium ranks", func() {
			So(points.ForRank(1), ShouldEqual, 100)
			So(points.ForRank(2), ShouldEqual, 75)
			So(points.ForRank(3), ShouldEqual, 65)
			So(points.ForRank(4), ShouldEqual, 60)
		})

		Convey("When looking up the last ranked place", func() {
			So(points.ForRank(50), ShouldEqual, 1)
		})

		Convey("When looking up ranks outside the table", func() {
			So(points.ForRank(0), ShouldEqual, 0)
			So(points.ForRank(-3), ShouldEqual, 0)
			So(points.ForRank(51), ShouldEqual, 0)
			So(points.ForRank(1000), ShouldEqual, 0)
		})

		Convey("Then the table should be strictly decreasing", func() {
			for r := 2; r <= points.MaxRankedPlace; r++ {
				So(points.ForRank(r), ShouldBeLessThan, points.ForRank(r-1))
			}
		})
	})
}

func TestSum(t *testing.T) {
	Convey("Given the table prefix sums", t, func() {
		Convey("When summing small prefixes", func() {
			So(points.Sum(0), ShouldEqual, 0)
			So(points.Sum(1), ShouldEqual, 100)
			So(points.Sum(2), ShouldEqual, 175)
			So(points.Sum(3), ShouldEqual, 240)
		})

		Convey("When summing past the end of the table", func() {
			// Ranks beyond 50 contribute nothing.
			So(points.Sum(60), ShouldEqual, points.Sum(50))
		})
	})
}

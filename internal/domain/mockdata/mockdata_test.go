package mockdata_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/domain/mockdata"
)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		g := mockdata.New(mockdata.WithSeed(7), mockdata.WithClock(func() time.Time { return now }))

		Convey("Then resting vitals stay in range", func() {
			for i := 0; i < 50; i++ {
				v := g.Vitals()
				So(v.HeartRate, ShouldBeBetweenOrEqual, 60, 100)
				So(v.OxygenSaturation, ShouldBeBetweenOrEqual, 95, 100)
				So(v.RespiratoryRate, ShouldBeBetweenOrEqual, 12, 20)
				So(v.BodyTemperature, ShouldBeBetweenOrEqual, 36.1, 37.5)
				So(v.BloodPressure, ShouldContainSubstring, "/")
				So(v.Timestamp.Equal(now), ShouldBeTrue)
			}
		})

		Convey("Then crisis heart rates are elevated", func() {
			for i := 0; i < 50; i++ {
				So(g.CrisisHeartRate(), ShouldBeBetweenOrEqual, 150, 220)
			}
		})

		Convey("Then the team overview adds up", func() {
			overview, athletes := g.Team(10)
			So(athletes, ShouldHaveLength, 10)
			So(overview.TotalAthletes, ShouldEqual, 10)
			sum := 0
			for _, n := range overview.StatusSummary {
				sum += n
			}
			So(sum, ShouldEqual, 10)
			for _, a := range athletes {
				So(a.Name, ShouldNotBeBlank)
				if a.Status == mockdata.StatusWarning {
					So(a.Location, ShouldEqual, "Medical Tent")
				}
			}
		})

		Convey("Then an athlete drill-down carries a week of history", func() {
			d := g.Athlete("ath-9")
			So(d.Info.ID, ShouldEqual, "ath-9")
			So(d.RecentHistory, ShouldHaveLength, 7)
			So(d.RecentHistory[0].Date, ShouldEqual, "2026-02-28")
			So(d.CPR.FirmwareVersion, ShouldEqual, "v2.1.3")
		})
	})
}

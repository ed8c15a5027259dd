package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/stomp/internal/domain/dedupe"
)

func TestRingDeduper(t *testing.T) {
	Convey("Given a deduper that remembers three ids", t, func() {
		ctx := context.Background()
		d := dedupe.NewRingDeduper(dedupe.WithMaxSize(3))

		Convey("When an id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "r-1")
			second := d.SeenAndRecord(ctx, "r-1")

			Convey("Then only the second is a duplicate", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When more ids arrive than fit", func() {
			for i := 1; i <= 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("r-%d", i))
			}

			Convey("Then the oldest is forgotten", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "r-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "r-1"), ShouldBeFalse)
			})
		})

		Convey("When an id is unrecorded", func() {
			d.SeenAndRecord(ctx, "r-1")
			d.Unrecord(ctx, "r-1")
			d.Unrecord(ctx, "never-seen")

			Convey("Then it can be processed again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "r-1"), ShouldBeFalse)
			})
		})

		Convey("When the id is empty", func() {
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, ""), ShouldBeFalse)
			So(d.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewRingDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 100; i++ {
			d.SeenAndRecord(context.Background(), fmt.Sprintf("r-%d", i))
		}
		So(d.Size(), ShouldEqual, 100)
		d.Unrecord(context.Background(), "r-5")
		So(d.Size(), ShouldEqual, 99)
	})
}

func TestRingDeduperConcurrent(t *testing.T) {
	d := dedupe.NewRingDeduper()
	var fresh atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if !d.SeenAndRecord(context.Background(), fmt.Sprintf("r-%d", i)) {
					fresh.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	if got := fresh.Load(); got != 500 {
		t.Fatalf("expected 500 first sightings, got %d", got)
	}
}

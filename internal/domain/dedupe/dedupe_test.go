package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/f3peakcity/f3-bot/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When recording submission ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then a new id is not seen", func() {
				So(d.SeenAndRecord(ctx, "bb-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})

			Convey("Then a repeated id is seen", func() {
				d.SeenAndRecord(ctx, "bb-1")
				So(d.SeenAndRecord(ctx, "bb-1"), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording ids", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "bb-1")
			d.Unrecord(ctx, "bb-1")
			d.Unrecord(ctx, "never-recorded")

			Convey("Then the id can be accepted again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "bb-1"), ShouldBeFalse)
			})
		})

		Convey("When the bounded deduper is full", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"bb-1", "bb-2", "bb-3"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}
			So(d.SeenAndRecord(ctx, "bb-4"), ShouldBeFalse)

			Convey("Then the oldest id is forgotten first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "bb-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "bb-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "bb-1"), ShouldBeFalse)
			})
		})

		Convey("When unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("bb-%d", i))
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "bb-0"), ShouldBeTrue)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given goroutines racing on the same ids", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const workers = 8
		const ids = 100

		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < ids; i++ {
					if !d.SeenAndRecord(context.Background(), fmt.Sprintf("bb-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is accepted exactly once", func() {
			So(fresh, ShouldEqual, ids)
			So(d.Size(), ShouldEqual, ids)
		})
	})
}

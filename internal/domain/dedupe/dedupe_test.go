package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/resumerank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When a key is claimed for the first time", func() {
			got, seen := d.Claim(ctx, "alice:key-1", "batch-1")

			Convey("Then the new value is bound", func() {
				So(seen, ShouldBeFalse)
				So(got, ShouldEqual, "batch-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the same key is claimed again", func() {
			d.Claim(ctx, "alice:key-1", "batch-1")
			got, seen := d.Claim(ctx, "alice:key-1", "batch-2")

			Convey("Then the first value is returned", func() {
				So(seen, ShouldBeTrue)
				So(got, ShouldEqual, "batch-1")
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a claimed key is released", func() {
			d.Claim(ctx, "alice:key-1", "batch-1")
			d.Release(ctx, "alice:key-1")

			Convey("Then it can be claimed with a new value", func() {
				So(d.Size(), ShouldEqual, 0)
				got, seen := d.Claim(ctx, "alice:key-1", "batch-2")
				So(seen, ShouldBeFalse)
				So(got, ShouldEqual, "batch-2")
			})
		})

		Convey("When an unknown key is released", func() {
			d.Release(ctx, "nope")

			Convey("Then nothing changes", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded deduper at capacity", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
		for i := 1; i <= 3; i++ {
			d.Claim(ctx, fmt.Sprintf("k%d", i), fmt.Sprintf("b%d", i))
		}

		Convey("When another key is claimed", func() {
			d.Claim(ctx, "k4", "b4")

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				_, seen := d.Claim(ctx, "k2", "x")
				So(seen, ShouldBeTrue)
				_, seen = d.Claim(ctx, "k1", "x")
				So(seen, ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := 0; i < 1000; i++ {
			d.Claim(ctx, fmt.Sprintf("k%d", i), "b")
		}

		Convey("Then nothing is evicted", func() {
			So(d.Size(), ShouldEqual, 1000)
			_, seen := d.Claim(ctx, "k0", "b")
			So(seen, ShouldBeTrue)
		})
	})

	Convey("Given concurrent claims of one key", t, func() {
		d := dedupe.NewInMemoryDeduper()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fresh := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, seen := d.Claim(ctx, "shared", fmt.Sprintf("b%d", i)); !seen {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one claim wins", func() {
			So(fresh, ShouldEqual, 1)
			So(d.Size(), ShouldEqual, 1)
		})
	})
}

package dedupe_test

import (
	"context"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/assay/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

// held reports whether id stays owned by someone else for a short wait.
func held(g dedupe.Guard, id string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	release, err := g.Acquire(ctx, id)
	if err != nil {
		return true
	}
	release()
	return false
}

func TestInMemoryGuard(t *testing.T) {
	Convey("Given a new in-memory guard", t, func() {
		ctx := context.Background()
		g := dedupe.NewInMemoryGuard()

		Convey("When nothing is held", func() {
			So(g.Size(), ShouldEqual, 0)
		})

		Convey("When a session is acquired", func() {
			release, err := g.Acquire(ctx, "s1")
			So(err, ShouldBeNil)
			So(g.Size(), ShouldEqual, 1)

			Convey("Then a second claim on the same session waits", func() {
				So(held(g, "s1"), ShouldBeTrue)
			})

			Convey("Then other sessions are independent", func() {
				r2, err := g.Acquire(ctx, "s2")
				So(err, ShouldBeNil)
				So(g.Size(), ShouldEqual, 2)
				r2()
			})

			Convey("Then releasing twice is harmless", func() {
				release()
				release()
				So(g.Size(), ShouldEqual, 0)
				So(held(g, "s1"), ShouldBeFalse)
			})
		})

		Convey("When a waiter blocks on a held session", func() {
			release, err := g.Acquire(ctx, "s1")
			So(err, ShouldBeNil)

			acquired := make(chan struct{})
			go func() {
				r, err := g.Acquire(ctx, "s1")
				if err == nil {
					r()
				}
				close(acquired)
			}()

			select {
			case <-acquired:
				t.Fatal("waiter acquired a held session")
			case <-time.After(20 * time.Millisecond):
			}
			release()

			Convey("Then it proceeds after release", func() {
				select {
				case <-acquired:
				case <-time.After(time.Second):
					t.Fatal("waiter never acquired")
				}
				So(g.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the waiter's context is cancelled", func() {
			release, _ := g.Acquire(ctx, "s1")
			defer release()

			cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			_, err := g.Acquire(cctx, "s1")
			So(err, ShouldEqual, context.DeadlineExceeded)
		})
	})
}

func TestBoundedGuard(t *testing.T) {
	Convey("Given a guard bounded to two sessions", t, func() {
		ctx := context.Background()
		g := dedupe.NewInMemoryGuard(dedupe.WithMaxSize(2))

		r1, _ := g.Acquire(ctx, "s1")
		r2, _ := g.Acquire(ctx, "s2")

		Convey("When a third session is acquired", func() {
			_, err := g.Acquire(ctx, "s3")
			So(err, ShouldEqual, dedupe.ErrGuardFull)
		})

		Convey("When a slot is freed", func() {
			r1()
			r3, err := g.Acquire(ctx, "s3")
			So(err, ShouldBeNil)
			r3()
		})

		r2()
		r1()
	})
}

func TestGuardSerialisesWork(t *testing.T) {
	Convey("Given many goroutines working on one session", t, func() {
		ctx := context.Background()
		g := dedupe.NewInMemoryGuard(dedupe.WithMaxSize(0))

		counter := 0
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := g.Acquire(ctx, "s1")
				if err != nil {
					return
				}
				defer release()
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
			}()
		}
		wg.Wait()

		Convey("Then no update is lost", func() {
			So(counter, ShouldEqual, 50)
			So(g.Size(), ShouldEqual, 0)
		})
	})
}

package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/assay/internal/adapters/mq/queue"
	"github.com/okian/assay/internal/adapters/mq/worker"
	"github.com/okian/assay/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

type mockScorer struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight map[string]int
	overlap  atomic.Bool
	errs     map[string]error
	delay    time.Duration
}

func newMockScorer() *mockScorer {
	return &mockScorer{
		calls:    make(map[string]int),
		inFlight: make(map[string]int),
		errs:     make(map[string]error),
	}
}

func (m *mockScorer) Score(_ context.Context, sessionID string) (model.TestResult, error) {
	m.mu.Lock()
	m.calls[sessionID]++
	m.inFlight[sessionID]++
	if m.inFlight[sessionID] > 1 {
		m.overlap.Store(true)
	}
	err := m.errs[sessionID]
	m.mu.Unlock()

	time.Sleep(m.delay)

	m.mu.Lock()
	m.inFlight[sessionID]--
	m.mu.Unlock()

	if err != nil {
		return model.TestResult{}, err
	}
	return model.TestResult{SessionID: sessionID, Status: model.StatusCompleted}, nil
}

func (m *mockScorer) count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[sessionID]
}

func (m *mockScorer) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading from an inbox", t, func() {
		inbox := make(chan worker.Job, 4)
		scorer := newMockScorer()
		scorer.errs["s3"] = errors.New("boom")
		w := worker.NewInMemoryWorker(inbox, scorer, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive", func() {
			inbox <- worker.Job{JobID: "j1", SessionID: "s1"}
			inbox <- worker.Job{JobID: "j2", SessionID: "s2"}
			inbox <- worker.Job{JobID: "j3", SessionID: "s3"}
			close(inbox)

			select {
			case <-w.Done():
			case <-time.After(time.Second):
				t.Fatal("worker did not stop after inbox closed")
			}

			convey.Convey("Then each session is scored and failures do not stop the loop", func() {
				convey.So(scorer.count("s1"), convey.ShouldEqual, 1)
				convey.So(scorer.count("s2"), convey.ShouldEqual, 1)
				convey.So(scorer.count("s3"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1000))
		scorer := newMockScorer()
		scorer.delay = time.Millisecond
		pool := worker.NewPool(4, q, scorer)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many jobs for a few sessions are enqueued", func() {
			const sessions, perSession = 8, 10
			for i := 0; i < perSession; i++ {
				for s := 0; s < sessions; s++ {
					err := q.Enqueue(ctx, worker.Job{
						JobID:     fmt.Sprintf("j%d-%d", s, i),
						SessionID: fmt.Sprintf("s%d", s),
					})
					convey.So(err, convey.ShouldBeNil)
				}
			}

			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)

			convey.Convey("Then every accepted job is processed before shutdown returns", func() {
				convey.So(scorer.total(), convey.ShouldEqual, sessions*perSession)
				for s := 0; s < sessions; s++ {
					convey.So(scorer.count(fmt.Sprintf("s%d", s)), convey.ShouldEqual, perSession)
				}
			})

			convey.Convey("Then no session is scored by two workers at once", func() {
				convey.So(scorer.overlap.Load(), convey.ShouldBeFalse)
			})

			convey.Convey("Then the queue rejects new jobs", func() {
				err := q.Enqueue(ctx, worker.Job{JobID: "late", SessionID: "s0"})
				convey.So(errors.Is(err, queue.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPoolDefaults(t *testing.T) {
	convey.Convey("Given a pool with a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockScorer(), worker.WithInboxSize(0))

		convey.Convey("Then it falls back to at least one worker", func() {
			convey.So(pool.Size(), convey.ShouldBeGreaterThanOrEqualTo, 1)
			convey.So(pool.Active(), convey.ShouldEqual, 0)
		})
	})
}

package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/assay/internal/adapters/mq/queue"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/pkg/logger"
	"github.com/okian/assay/pkg/metrics"
)

const (
	defaultInboxSize      = 64
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Scorer scores one session. Implementations are expected to be idempotent.
type Scorer interface {
	Score(ctx context.Context, sessionID string) (model.TestResult, error)
}

// Queue defines how the pool receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs from its inbox.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the inbox closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker scores the sessions routed to it, one at a time.
type InMemoryWorker struct {
	inbox  <-chan Job
	scorer Scorer
	name   string
	active *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from inbox.
func NewInMemoryWorker(inbox <-chan Job, scorer Scorer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		inbox:    inbox,
		scorer:   scorer,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-w.inbox:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, j Job) error {
	if w.active != nil {
		w.active.Add(1)
		defer w.active.Add(-1)
	}

	start := time.Now()
	res, err := w.scorer.Score(ctx, j.SessionID)
	metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		metrics.RecordErrorByType("scoring_error", "high")
		w.logger.Error(ctx, "scoring failed for job",
			logger.String("job_id", j.JobID),
			logger.SessionID(j.SessionID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to score session %s: %w", j.SessionID, err)
	}

	w.logger.Debug(ctx, "job scored",
		logger.String("job_id", j.JobID),
		logger.SessionID(j.SessionID),
		logger.String("status", string(res.Status)),
	)
	return nil
}

// Pool fans jobs out to a fixed set of workers. Every job for a session lands
// on the same worker, so one session is never scored by two workers at once.
type Pool struct {
	workers   []*InMemoryWorker
	inboxes   []chan Job
	inboxSize int
	queue     Queue
	active    atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one defaults
// to runtime.NumCPU().
func NewPool(workerCount int, q Queue, scorer Scorer, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		inboxes:   make([]chan Job, workerCount),
		inboxSize: defaultInboxSize,
		queue:     q,
		shutdown:  make(chan struct{}),
		logger:    logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := range workerCount {
		p.inboxes[i] = make(chan Job, p.inboxSize)
		w := NewInMemoryWorker(p.inboxes[i], scorer,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
		w.active = &p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns the number of workers currently scoring.
func (p *Pool) Active() int { return int(p.active.Load()) }

// shard maps a session to a worker index with FNV-1a.
func shard(sessionID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(n)) //nolint:gosec // n is a positive worker count
}

// Start launches the workers, the dispatcher and the metrics updater.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.dispatch(ctx)
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, in := range p.inboxes {
			close(in)
		}
	}()

	for j := range p.queue.Dequeue(ctx) {
		select {
		case p.inboxes[shard(j.SessionID, len(p.inboxes))] <- j:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	active := p.Active()
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Shutdown closes the queue, lets the workers drain what was already
// accepted, and waits for them until ctx or the pool timeout expires. Draining
// needs the context given to Start to still be live; cancelling it drops the
// jobs not yet handed to a worker.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.stopOnce.Do(func() { close(p.shutdown) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	p.updateMetrics()
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}

// Package service wires storage, scoring, psychometrics and the async
// pipeline into the operations exposed over HTTP and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/assay/internal/adapters/events"
	"github.com/okian/assay/internal/adapters/mq/queue"
	"github.com/okian/assay/internal/adapters/mq/worker"
	"github.com/okian/assay/internal/adapters/repository"
	"github.com/okian/assay/internal/domain/dedupe"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/domain/psychometrics"
	"github.com/okian/assay/internal/domain/scoring"
	"github.com/okian/assay/pkg/logger"
	"github.com/okian/assay/pkg/metrics"
)

const (
	defaultQueueSize = 10_000
	defaultGuardSize = 100_000
)

// Service is the application facade.
type Service struct {
	mu sync.RWMutex

	repo         repository.Repository
	publisher    events.Publisher
	locker       SessionLocker
	lockTTL      time.Duration
	guard        dedupe.Guard
	jobs         *queue.InMemoryQueue
	pool         *worker.Pool
	stopWorkers  context.CancelFunc
	orchestrator *Orchestrator
	engine       *psychometrics.Engine

	workerCount   int
	queueSize     int
	guardSize     int
	scoringCfg    scoring.Config
	psychometrics psychometrics.Thresholds

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRepository sets the storage backend. The service closes it on Stop.
func WithRepository(r repository.Repository) Option {
	return func(s *Service) {
		if r != nil {
			s.repo = r
		}
	}
}

// WithEventPublisher sets where lifecycle events go.
func WithEventPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLocker enables the distributed session lock.
func WithLocker(l SessionLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		s.lockTTL = ttl
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting scoring jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithGuardSize bounds the number of sessions scored concurrently in-process.
func WithGuardSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.guardSize = size
		}
	}
}

// WithScoring sets the scoring configuration.
func WithScoring(c scoring.Config) Option {
	return func(s *Service) { s.scoringCfg = c }
}

// WithPsychometrics sets the item and reliability thresholds.
func WithPsychometrics(t psychometrics.Thresholds) Option {
	return func(s *Service) { s.psychometrics = t }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		guardSize:     defaultGuardSize,
		scoringCfg:    scoring.NewConfig(),
		psychometrics: psychometrics.DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.repo == nil {
		s.repo = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(s.logger.Named("events"))
	}

	s.guard = dedupe.NewInMemoryGuard(dedupe.WithMaxSize(s.guardSize))
	s.orchestrator = NewOrchestrator(s.repo,
		WithPublisher(s.publisher),
		WithGuard(s.guard),
		WithStrategies(scoring.DefaultTable()),
		WithScoringConfig(s.scoringCfg),
		WithOrchestratorLogger(s.logger.Named("orchestrator")),
	)
	if s.locker != nil {
		WithSessionLocker(s.locker, s.lockTTL)(s.orchestrator)
	}
	s.engine = psychometrics.NewEngine(s.repo,
		psychometrics.WithThresholds(s.psychometrics),
		psychometrics.WithLogger(s.logger.Named("psychometrics")),
	)

	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, s.orchestrator,
		worker.WithPoolLogger(s.logger.Named("worker-pool")))
	// Workers outlive the start context so that Stop can drain accepted jobs.
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	s.stopWorkers = stopWorkers
	s.pool.Start(workerCtx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("guardSize", s.guardSize),
		logger.Bool("distributedLock", s.locker != nil),
	)
	return nil
}

// Stop drains the jobs already queued, then closes the repository. Workers
// still busy when ctx expires are cancelled.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scoring service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.stopWorkers()
	if err := s.repo.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close repository: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() (*Orchestrator, *psychometrics.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.orchestrator, s.engine, nil
}

func validID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty %s id", ErrInvalidInput, kind)
	}
	return nil
}

// Score scores a session synchronously.
func (s *Service) Score(ctx context.Context, sessionID string) (model.TestResult, error) {
	if err := validID("session", sessionID); err != nil {
		return model.TestResult{}, err
	}
	o, _, err := s.running()
	if err != nil {
		return model.TestResult{}, err
	}
	return o.Score(ctx, sessionID)
}

// Enqueue schedules a session for asynchronous scoring and returns the job id.
// Unknown sessions are rejected before anything is queued.
func (s *Service) Enqueue(ctx context.Context, sessionID string) (string, error) {
	if err := validID("session", sessionID); err != nil {
		return "", err
	}
	if _, _, err := s.running(); err != nil {
		return "", err
	}
	if _, err := s.repo.Session(ctx, sessionID); err != nil {
		return "", fmt.Errorf("load session %s: %w", sessionID, err)
	}

	job := queue.Job{JobID: uuid.NewString(), SessionID: sessionID, EnqueuedAt: time.Now()}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue session %s: %w", sessionID, err)
	}
	s.logger.Debug(ctx, "scoring job queued", logger.SessionID(sessionID), logger.String("job_id", job.JobID))
	return job.JobID, nil
}

// Result returns the stored result of a session.
func (s *Service) Result(ctx context.Context, sessionID string) (model.TestResult, error) {
	if err := validID("session", sessionID); err != nil {
		return model.TestResult{}, err
	}
	if _, _, err := s.running(); err != nil {
		return model.TestResult{}, err
	}
	return s.repo.ResultBySession(ctx, sessionID)
}

// Item returns the stored statistics of a question.
func (s *Service) Item(ctx context.Context, questionID string) (model.ItemStatistics, error) {
	_, e, err := s.running()
	if err != nil {
		return model.ItemStatistics{}, err
	}
	return e.Item(ctx, questionID)
}

// RecalculateItem refreshes the statistics of one question.
func (s *Service) RecalculateItem(ctx context.Context, questionID string) (model.ItemStatistics, error) {
	_, e, err := s.running()
	if err != nil {
		return model.ItemStatistics{}, err
	}
	return e.RecalculateItem(ctx, questionID)
}

// RecalculateCompetency refreshes the reliability of one competency.
func (s *Service) RecalculateCompetency(ctx context.Context, competencyID string) (model.CompetencyReliability, error) {
	if err := validID("competency", competencyID); err != nil {
		return model.CompetencyReliability{}, err
	}
	_, e, err := s.running()
	if err != nil {
		return model.CompetencyReliability{}, err
	}
	return e.RecalculateCompetency(ctx, competencyID)
}

// Retire retires a question with a reason.
func (s *Service) Retire(ctx context.Context, questionID, reason string) (model.ItemStatistics, error) {
	_, e, err := s.running()
	if err != nil {
		return model.ItemStatistics{}, err
	}
	return e.Retire(ctx, questionID, reason)
}

// Activate returns a question to service if its metrics allow it.
func (s *Service) Activate(ctx context.Context, questionID string) (model.ItemStatistics, error) {
	_, e, err := s.running()
	if err != nil {
		return model.ItemStatistics{}, err
	}
	return e.Activate(ctx, questionID)
}

// Recalculate refreshes every item and competency.
func (s *Service) Recalculate(ctx context.Context) (psychometrics.RecalcSummary, error) {
	_, e, err := s.running()
	if err != nil {
		return psychometrics.RecalcSummary{}, err
	}
	return e.RecalculateAll(ctx)
}

// HealthReport summarises the item bank.
func (s *Service) HealthReport(ctx context.Context) (model.HealthReport, error) {
	_, e, err := s.running()
	if err != nil {
		return model.HealthReport{}, err
	}
	return e.HealthReport(ctx)
}

// Seeder exposes the repository's loading helpers.
func (s *Service) Seeder() repository.Seeder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"guardSize":   s.guardSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.jobs.Len(ctx)
	stats["queueLength"] = queueLen
	stats["activeWorkers"] = s.pool.Active()
	stats["sessionsInFlight"] = s.guard.Size()
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())

	if st, err := s.repo.Stats(ctx); err != nil {
		s.logger.Warn(ctx, "repository stats unavailable", logger.Error(err))
	} else {
		stats["repository"] = st
	}
	return stats
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/assay/internal/adapters/events"
	"github.com/okian/assay/internal/adapters/lock"
	"github.com/okian/assay/internal/adapters/repository"
	"github.com/okian/assay/internal/domain/dedupe"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/domain/scoring"
	"github.com/okian/assay/pkg/logger"
	"github.com/okian/assay/pkg/metrics"
)

// Failure stages reported on metrics and ScoringFailed events.
const (
	stageAnswers  = "answers"
	stageCatalog  = "catalog"
	stageStrategy = "strategy"
	stagePersist  = "persist"

	defaultLockTTL = 30 * time.Second
	lockPrefix     = "assay:session:"
)

// ScoringStore is the slice of the repository the orchestrator reads and writes.
type ScoringStore interface {
	repository.SessionReader
	repository.AnswerReader
	repository.CatalogReader
	repository.ResultStore
}

// SessionLocker serialises scoring of a session across processes.
type SessionLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (lock.Release, bool, error)
}

// Orchestrator runs one scoring request end to end.
type Orchestrator struct {
	store      ScoringStore
	publisher  events.Publisher
	guard      dedupe.Guard
	locker     SessionLocker
	lockTTL    time.Duration
	strategies scoring.Table
	cfg        scoring.Config
	now        func() time.Time
	logger     logger.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithGuard sets the in-process session guard.
func WithGuard(g dedupe.Guard) OrchestratorOption {
	return func(o *Orchestrator) {
		if g != nil {
			o.guard = g
		}
	}
}

// WithSessionLocker enables a distributed session lock held for at most ttl.
func WithSessionLocker(l SessionLocker, ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithStrategies replaces the goal strategy table.
func WithStrategies(t scoring.Table) OrchestratorOption {
	return func(o *Orchestrator) {
		if t != nil {
			o.strategies = t
		}
	}
}

// WithScoringConfig sets evidence and pattern thresholds.
func WithScoringConfig(c scoring.Config) OrchestratorOption {
	return func(o *Orchestrator) { o.cfg = c }
}

// WithOrchestratorClock overrides the time source.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(l logger.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator wires an orchestrator over store.
func NewOrchestrator(store ScoringStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:      store,
		guard:      dedupe.NewInMemoryGuard(),
		lockTTL:    defaultLockTTL,
		strategies: scoring.DefaultTable(),
		cfg:        scoring.NewConfig(),
		now:        time.Now,
		logger:     logger.Get().Named("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.publisher == nil {
		o.publisher = events.NewLogPublisher(o.logger.Named("events"))
	}
	return o
}

// Score scores a session. A COMPLETED result is returned as is; a PENDING one
// is discarded and recomputed. Once ScoringStarted is published every failure
// leaves a PENDING result and is not reported as an error.
func (o *Orchestrator) Score(ctx context.Context, sessionID string) (model.TestResult, error) {
	release, err := o.guard.Acquire(ctx, sessionID)
	if err != nil {
		return model.TestResult{}, fmt.Errorf("guard session %s: %w", sessionID, err)
	}
	defer release()

	if o.locker != nil {
		unlock, ok, err := o.locker.Acquire(ctx, lockPrefix+sessionID, o.lockTTL)
		switch {
		case err != nil:
			o.logger.Warn(ctx, "distributed lock unavailable, continuing with local guard",
				logger.SessionID(sessionID), logger.Error(err))
		case !ok:
			return model.TestResult{}, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
		default:
			defer func() {
				if err := unlock(context.WithoutCancel(ctx)); err != nil {
					o.logger.Warn(ctx, "release session lock", logger.SessionID(sessionID), logger.Error(err))
				}
			}()
		}
	}

	session, err := o.store.Session(ctx, sessionID)
	if err != nil {
		return model.TestResult{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	existing, err := o.store.ResultBySession(ctx, sessionID)
	switch {
	case err == nil && existing.Status == model.StatusCompleted:
		metrics.RecordIdempotentHit()
		o.logger.Debug(ctx, "returning existing result", logger.SessionID(sessionID))
		return existing, nil
	case err == nil:
		if err := o.store.DeleteResult(ctx, sessionID); err != nil {
			return model.TestResult{}, fmt.Errorf("discard pending result %s: %w", sessionID, err)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return model.TestResult{}, fmt.Errorf("load result %s: %w", sessionID, err)
	}

	start := o.now()
	metrics.RecordScoringStarted()
	started := events.New(events.ScoringStarted, sessionID)
	started.Goal = session.Goal
	o.publish(ctx, started)

	answers, err := o.store.Answers(ctx, sessionID)
	if err != nil {
		return o.fail(ctx, session, model.DescribeAnswers(nil), stageAnswers, err), nil
	}
	stats := model.DescribeAnswers(answers)

	cat, err := o.catalog(ctx, answers)
	if err != nil {
		return o.fail(ctx, session, stats, stageCatalog, err), nil
	}

	scored, err := o.evaluate(session.Goal, scoring.Input{Goal: session.Goal, Answers: answers, Catalog: cat})
	if err != nil {
		return o.fail(ctx, session, stats, stageStrategy, err), nil
	}

	result := o.completed(session, stats, scored)
	if err := o.store.SaveResult(ctx, result); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if winner, rerr := o.store.ResultBySession(ctx, sessionID); rerr == nil && winner.Status == model.StatusCompleted {
				metrics.RecordIdempotentHit()
				return winner, nil
			}
		}
		return o.fail(ctx, session, stats, stagePersist, err), nil
	}

	flagged := scoring.CountFlagged(result.CompetencyScores)
	metrics.RecordInsufficientEvidence(flagged)
	metrics.RecordScoringCompleted(string(session.Goal))
	metrics.RecordScoringLatency(float64(o.now().Sub(start).Milliseconds()))

	done := events.New(events.ScoringCompleted, sessionID)
	done.ResultID = result.ID
	done.Goal = result.Goal
	done.Status = result.Status
	done.OverallPercentage = result.OverallPercentage
	o.publish(ctx, done)

	o.logger.Info(ctx, "session scored",
		logger.SessionID(sessionID),
		logger.String("goal", string(session.Goal)),
		logger.Float64("percentage", *result.OverallPercentage),
		logger.Bool("passed", *result.Passed),
		logger.Int("flagged", flagged),
	)
	return result, nil
}

func (o *Orchestrator) catalog(ctx context.Context, answers []model.Answer) (scoring.Catalog, error) {
	questions, err := o.store.Questions(ctx, scoring.QuestionIDs(answers))
	if err != nil {
		return scoring.Catalog{}, fmt.Errorf("load questions: %w", err)
	}
	indicators, err := o.store.Indicators(ctx, scoring.IndicatorIDs(questions))
	if err != nil {
		return scoring.Catalog{}, fmt.Errorf("load indicators: %w", err)
	}
	competencies, err := o.store.Competencies(ctx, scoring.CompetencyIDs(indicators))
	if err != nil {
		return scoring.Catalog{}, fmt.Errorf("load competencies: %w", err)
	}
	return scoring.NewCatalog(questions, indicators, competencies), nil
}

// evaluate dispatches to the goal strategy, or legacy scoring for goals
// without one. A panicking strategy is reported as ErrStrategy.
func (o *Orchestrator) evaluate(goal model.Goal, in scoring.Input) (res model.ScoringResult, err error) {
	strategy, ok := o.strategies.Lookup(goal)
	if !ok {
		return scoring.Legacy(in), nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrStrategy, goal, r)
		}
	}()
	res, err = strategy(in, o.cfg)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", ErrStrategy, goal, err)
	}
	return res, nil
}

func (o *Orchestrator) completed(s model.Session, st model.AnswerStats, r model.ScoringResult) model.TestResult {
	score, pct := r.OverallScore, r.OverallPercentage
	passed := pct >= s.PassingScore
	return model.TestResult{
		ID:                uuid.NewString(),
		SessionID:         s.ID,
		Status:            model.StatusCompleted,
		Goal:              s.Goal,
		OverallScore:      &score,
		OverallPercentage: &pct,
		Passed:            &passed,
		QuestionsAnswered: st.Answered,
		QuestionsSkipped:  st.Skipped,
		TotalTimeSeconds:  st.TotalTimeSeconds,
		CompetencyScores:  r.CompetencyScores,
		ExtendedMetrics:   r.ExtendedMetrics,
		CreatedAt:         o.now().UTC(),
	}
}

// fail persists a PENDING result carrying only answer statistics.
func (o *Orchestrator) fail(ctx context.Context, s model.Session, st model.AnswerStats, stage string, cause error) model.TestResult {
	metrics.RecordScoringFailed(stage)
	metrics.RecordErrorByComponent("orchestrator", stage)
	o.logger.Error(ctx, "scoring failed, result left pending",
		logger.SessionID(s.ID),
		logger.String("stage", stage),
		logger.Error(cause),
	)

	pending := model.TestResult{
		ID:                uuid.NewString(),
		SessionID:         s.ID,
		Status:            model.StatusPending,
		Goal:              s.Goal,
		QuestionsAnswered: st.Answered,
		QuestionsSkipped:  st.Skipped,
		TotalTimeSeconds:  st.TotalTimeSeconds,
		CreatedAt:         o.now().UTC(),
	}
	if err := o.store.SaveResult(ctx, pending); err != nil {
		o.logger.Error(ctx, "could not persist pending result", logger.SessionID(s.ID), logger.Error(err))
	}

	e := events.New(events.ScoringFailed, s.ID)
	e.ResultID = pending.ID
	e.Goal = s.Goal
	e.Status = model.StatusPending
	e.Reason = stage + ": " + cause.Error()
	o.publish(ctx, e)
	return pending
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Warn(ctx, "event not published",
			logger.SessionID(e.SessionID),
			logger.String("type", string(e.Type)),
			logger.Error(err),
		)
	}
}

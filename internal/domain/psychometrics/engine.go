package psychometrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/domain/scoring"
	"github.com/okian/assay/pkg/logger"
	"github.com/okian/assay/pkg/metrics"
)

// Store is the persistence the engine reads history from and writes
// statistics to.
type Store interface {
	AllQuestions(ctx context.Context) ([]model.Question, error)
	AllIndicators(ctx context.Context) ([]model.Indicator, error)
	HistoricalAnswers(ctx context.Context) ([]model.SessionAnswer, error)
	ItemStatistics(ctx context.Context, questionID string) (model.ItemStatistics, bool, error)
	ListItemStatistics(ctx context.Context) ([]model.ItemStatistics, error)
	SaveItemStatistics(ctx context.Context, st model.ItemStatistics) error
	ListReliability(ctx context.Context) ([]model.CompetencyReliability, error)
	SaveReliability(ctx context.Context, r model.CompetencyReliability) error
	SetQuestionActive(ctx context.Context, questionID string, active bool) error
}

// Engine recalculates item statistics and competency reliability.
type Engine struct {
	store      Store
	thresholds Thresholds
	log        logger.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides the classification thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		thresholds: DefaultThresholds(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.Get().Named("psychometrics")
	}
	return e
}

// RecalcSummary reports how much work a full recalculation did.
type RecalcSummary struct {
	Items        int           `json:"items"`
	Competencies int           `json:"competencies"`
	Duration     time.Duration `json:"duration_ns"`
}

// snapshot is the respondent view of the answer history: normalized score
// per session and question plus each session's total.
type snapshot struct {
	questions map[string]model.Question
	scores    map[string]map[string]float64 // question -> session -> score
	totals    map[string]float64            // session -> total
}

func (e *Engine) load(ctx context.Context) (snapshot, []model.Indicator, error) {
	questions, err := e.store.AllQuestions(ctx)
	if err != nil {
		return snapshot{}, nil, fmt.Errorf("load questions: %w", err)
	}
	indicators, err := e.store.AllIndicators(ctx)
	if err != nil {
		return snapshot{}, nil, fmt.Errorf("load indicators: %w", err)
	}
	history, err := e.store.HistoricalAnswers(ctx)
	if err != nil {
		return snapshot{}, nil, fmt.Errorf("load answers: %w", err)
	}

	s := snapshot{
		questions: make(map[string]model.Question, len(questions)),
		scores:    make(map[string]map[string]float64),
		totals:    make(map[string]float64),
	}
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	for _, a := range history {
		if !a.Valid() {
			continue
		}
		q, ok := s.questions[a.QuestionID]
		if !ok {
			continue
		}
		bySession := s.scores[q.ID]
		if bySession == nil {
			bySession = make(map[string]float64)
			s.scores[q.ID] = bySession
		}
		v := scoring.Normalize(q.Kind, a.Answer)
		// A repeated answer replaces the earlier one.
		s.totals[a.SessionID] += v - bySession[a.SessionID]
		bySession[a.SessionID] = v
	}
	return s, indicators, nil
}

// itemSeries returns aligned item and total score series ordered by session id.
func (s snapshot) itemSeries(questionID string) (item, totals []float64) {
	bySession := s.scores[questionID]
	sessions := make([]string, 0, len(bySession))
	for id := range bySession {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	item = make([]float64, len(sessions))
	totals = make([]float64, len(sessions))
	for i, id := range sessions {
		item[i] = bySession[id]
		totals[i] = s.totals[id]
	}
	return item, totals
}

func (e *Engine) computeItem(ctx context.Context, s snapshot, questionID string) (model.ItemStatistics, error) {
	item, totals := s.itemSeries(questionID)
	st := model.ItemStatistics{
		QuestionID:     questionID,
		ResponseCount:  len(item),
		Difficulty:     Difficulty(item),
		Discrimination: Discrimination(item, totals, e.thresholds.MinResponses),
		UpdatedAt:      e.now().UTC(),
	}
	st.Status = ClassifyValidity(st.ResponseCount, st.Difficulty, st.Discrimination, e.thresholds)

	prev, found, err := e.store.ItemStatistics(ctx, questionID)
	if err != nil {
		return model.ItemStatistics{}, fmt.Errorf("load statistics for %s: %w", questionID, err)
	}
	if found && prev.Status == model.ValidityRetired && prev.RetiredReason != nil {
		st.Status = model.ValidityRetired
		st.RetiredReason = prev.RetiredReason
	}
	return st, nil
}

// RecalculateItem refreshes the statistics of one question.
func (e *Engine) RecalculateItem(ctx context.Context, questionID string) (model.ItemStatistics, error) {
	s, _, err := e.load(ctx)
	if err != nil {
		return model.ItemStatistics{}, err
	}
	if _, ok := s.questions[questionID]; !ok {
		return model.ItemStatistics{}, fmt.Errorf("%w: %s", ErrUnknownItem, questionID)
	}
	st, err := e.computeItem(ctx, s, questionID)
	if err != nil {
		return model.ItemStatistics{}, err
	}
	if err := e.saveItem(ctx, s, st); err != nil {
		return model.ItemStatistics{}, err
	}
	metrics.RecordRecalculation("item")
	e.logItem(ctx, st)
	return st, nil
}

// saveItem stores recalculated statistics. A question that turned RETIRED is
// taken out of circulation.
func (e *Engine) saveItem(ctx context.Context, s snapshot, st model.ItemStatistics) error {
	if err := e.store.SaveItemStatistics(ctx, st); err != nil {
		return fmt.Errorf("save statistics for %s: %w", st.QuestionID, err)
	}
	if st.Status != model.ValidityRetired || !s.questions[st.QuestionID].Active {
		return nil
	}
	if err := e.store.SetQuestionActive(ctx, st.QuestionID, false); err != nil {
		return fmt.Errorf("deactivate question %s: %w", st.QuestionID, err)
	}
	e.log.Warn(ctx, "item retired by its metrics", logger.QuestionID(st.QuestionID))
	return nil
}

func (e *Engine) logItem(ctx context.Context, st model.ItemStatistics) {
	fields := []logger.Field{
		logger.QuestionID(st.QuestionID),
		logger.Int("responses", st.ResponseCount),
		logger.String("status", string(st.Status)),
	}
	if st.Discrimination != nil {
		fields = append(fields, logger.Float64("discrimination", *st.Discrimination))
	}
	if st.Status == model.ValidityRetired && st.RetiredReason == nil {
		e.log.Warn(ctx, "item shows negative discrimination", fields...)
		return
	}
	e.log.Debug(ctx, "item statistics updated", fields...)
}

// RecalculateCompetency computes Cronbach's alpha over the respondents who
// answered every scored item of the competency.
func (e *Engine) RecalculateCompetency(ctx context.Context, competencyID string) (model.CompetencyReliability, error) {
	s, indicators, err := e.load(ctx)
	if err != nil {
		return model.CompetencyReliability{}, err
	}
	r := e.computeReliability(s, indicators, competencyID)
	if err := e.store.SaveReliability(ctx, r); err != nil {
		return model.CompetencyReliability{}, fmt.Errorf("save reliability for %s: %w", competencyID, err)
	}
	metrics.RecordRecalculation("competency")
	if r.Alpha != nil {
		metrics.UpdateCompetencyReliability(competencyID, *r.Alpha)
	}
	return r, nil
}

func (e *Engine) computeReliability(s snapshot, indicators []model.Indicator, competencyID string) model.CompetencyReliability {
	owned := make(map[string]bool)
	for _, ind := range indicators {
		if ind.CompetencyID == competencyID {
			owned[ind.ID] = true
		}
	}
	var items []string
	for id, q := range s.questions {
		if owned[q.IndicatorID] && len(s.scores[id]) > 0 {
			items = append(items, id)
		}
	}
	sort.Strings(items)

	r := model.CompetencyReliability{
		CompetencyID: competencyID,
		ItemCount:    len(items),
		UpdatedAt:    e.now().UTC(),
	}
	if len(items) >= 2 {
		matrix := completeCases(s, items)
		r.SampleSize = len(matrix)
		if r.SampleSize >= e.thresholds.ReliabilityMinSample {
			r.Alpha = CronbachAlpha(matrix)
		}
	}
	r.Status = ClassifyReliability(r.Alpha, r.SampleSize, e.thresholds)
	return r
}

// completeCases builds the respondents x items matrix, keeping only
// respondents with a score for every item.
func completeCases(s snapshot, items []string) [][]float64 {
	first := s.scores[items[0]]
	sessions := make([]string, 0, len(first))
	for id := range first {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)

	var matrix [][]float64
	for _, sid := range sessions {
		row := make([]float64, 0, len(items))
		for _, q := range items {
			v, ok := s.scores[q][sid]
			if !ok {
				break
			}
			row = append(row, v)
		}
		if len(row) == len(items) {
			matrix = append(matrix, row)
		}
	}
	return matrix
}

// RecalculateAll refreshes every item and every competency from one
// snapshot of the history.
func (e *Engine) RecalculateAll(ctx context.Context) (RecalcSummary, error) {
	start := e.now()
	s, indicators, err := e.load(ctx)
	if err != nil {
		return RecalcSummary{}, err
	}

	ids := make([]string, 0, len(s.questions))
	for id := range s.questions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var summary RecalcSummary
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		st, err := e.computeItem(ctx, s, id)
		if err != nil {
			return summary, err
		}
		if err := e.saveItem(ctx, s, st); err != nil {
			return summary, err
		}
		e.logItem(ctx, st)
		summary.Items++
	}

	for _, cid := range scoring.CompetencyIDs(indicators) {
		if cid == "" {
			continue
		}
		r := e.computeReliability(s, indicators, cid)
		if err := e.store.SaveReliability(ctx, r); err != nil {
			return summary, fmt.Errorf("save reliability for %s: %w", cid, err)
		}
		if r.Alpha != nil {
			metrics.UpdateCompetencyReliability(cid, *r.Alpha)
		}
		summary.Competencies++
	}

	summary.Duration = e.now().Sub(start)
	metrics.RecordRecalculation("all")
	metrics.RecordRecalculationLatency(float64(summary.Duration.Milliseconds()))
	e.log.Info(ctx, "psychometric recalculation finished",
		logger.Int("items", summary.Items),
		logger.Int("competencies", summary.Competencies),
		logger.Duration("took", summary.Duration))

	if _, err := e.HealthReport(ctx); err != nil {
		e.log.Warn(ctx, "refresh item gauges", logger.Error(err))
	}
	return summary, nil
}

// Item returns the stored statistics of a question.
func (e *Engine) Item(ctx context.Context, questionID string) (model.ItemStatistics, error) {
	st, found, err := e.store.ItemStatistics(ctx, questionID)
	if err != nil {
		return model.ItemStatistics{}, err
	}
	if !found {
		return model.ItemStatistics{}, fmt.Errorf("%w: %s", ErrUnknownItem, questionID)
	}
	return st, nil
}

// Retire forces an item out of circulation regardless of its metrics.
func (e *Engine) Retire(ctx context.Context, questionID, reason string) (model.ItemStatistics, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.ItemStatistics{}, fmt.Errorf("%w: retirement reason is required", ErrInvalidArgument)
	}
	st, found, err := e.store.ItemStatistics(ctx, questionID)
	if err != nil {
		return model.ItemStatistics{}, err
	}
	if !found {
		s, _, err := e.load(ctx)
		if err != nil {
			return model.ItemStatistics{}, err
		}
		if _, ok := s.questions[questionID]; !ok {
			return model.ItemStatistics{}, fmt.Errorf("%w: %s", ErrUnknownItem, questionID)
		}
		if st, err = e.computeItem(ctx, s, questionID); err != nil {
			return model.ItemStatistics{}, err
		}
	}

	st.Status = model.ValidityRetired
	st.RetiredReason = &reason
	st.UpdatedAt = e.now().UTC()
	if err := e.store.SaveItemStatistics(ctx, st); err != nil {
		return model.ItemStatistics{}, fmt.Errorf("save statistics for %s: %w", questionID, err)
	}
	if err := e.store.SetQuestionActive(ctx, questionID, false); err != nil {
		return model.ItemStatistics{}, fmt.Errorf("deactivate question %s: %w", questionID, err)
	}
	e.log.Info(ctx, "item retired", logger.QuestionID(questionID), logger.String("reason", reason))
	return st, nil
}

// Activate returns an item to ACTIVE when fresh metrics meet the ACTIVE
// criteria.
func (e *Engine) Activate(ctx context.Context, questionID string) (model.ItemStatistics, error) {
	s, _, err := e.load(ctx)
	if err != nil {
		return model.ItemStatistics{}, err
	}
	if _, ok := s.questions[questionID]; !ok {
		return model.ItemStatistics{}, fmt.Errorf("%w: %s", ErrUnknownItem, questionID)
	}
	st, err := e.computeItem(ctx, s, questionID)
	if err != nil {
		return model.ItemStatistics{}, err
	}

	if st.ResponseCount < e.thresholds.MinResponses {
		return st, fmt.Errorf("%w: insufficient responses (%d < %d)",
			ErrIllegalState, st.ResponseCount, e.thresholds.MinResponses)
	}
	if !e.thresholds.meetsActiveCriteria(st.Difficulty, st.Discrimination) {
		return st, fmt.Errorf("%w: poor metrics (discrimination %s, difficulty %s)",
			ErrIllegalState, formatIndex(st.Discrimination), formatIndex(st.Difficulty))
	}

	st.Status = model.ValidityActive
	st.RetiredReason = nil
	if err := e.store.SaveItemStatistics(ctx, st); err != nil {
		return model.ItemStatistics{}, fmt.Errorf("save statistics for %s: %w", questionID, err)
	}
	if err := e.store.SetQuestionActive(ctx, questionID, true); err != nil {
		return model.ItemStatistics{}, fmt.Errorf("activate question %s: %w", questionID, err)
	}
	e.log.Info(ctx, "item activated", logger.QuestionID(questionID))
	return st, nil
}

func formatIndex(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

// HealthReport summarises stored item and reliability statistics.
func (e *Engine) HealthReport(ctx context.Context) (model.HealthReport, error) {
	items, err := e.store.ListItemStatistics(ctx)
	if err != nil {
		return model.HealthReport{}, fmt.Errorf("list item statistics: %w", err)
	}
	rels, err := e.store.ListReliability(ctx)
	if err != nil {
		return model.HealthReport{}, fmt.Errorf("list reliability: %w", err)
	}

	rep := model.HealthReport{
		TotalItems:        len(items),
		ReliabilityCounts: make(map[model.ReliabilityStatus]int),
	}
	for _, st := range items {
		switch st.Status {
		case model.ValidityActive:
			rep.ActiveItems++
		case model.ValidityProbation:
			rep.ProbationItems++
		case model.ValidityFlagged:
			rep.FlaggedItems++
		case model.ValidityRetired:
			rep.RetiredItems++
		}
	}

	var sum float64
	var n int
	for _, r := range rels {
		rep.ReliabilityCounts[r.Status]++
		if r.Alpha != nil {
			sum += *r.Alpha
			n++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		rep.AverageReliability = &avg
	}

	metrics.UpdateItemStatusCount(string(model.ValidityActive), rep.ActiveItems)
	metrics.UpdateItemStatusCount(string(model.ValidityProbation), rep.ProbationItems)
	metrics.UpdateItemStatusCount(string(model.ValidityFlagged), rep.FlaggedItems)
	metrics.UpdateItemStatusCount(string(model.ValidityRetired), rep.RetiredItems)
	return rep, nil
}

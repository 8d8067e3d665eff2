package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/pkg/metrics"
)

// MemoryStore is a concurrency-safe, in-memory Repository.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]model.Session
	answers      map[string][]model.Answer
	sessionOrder []string
	questions    map[string]model.Question
	indicators   map[string]model.Indicator
	competencies map[string]model.Competency
	results      map[string]model.TestResult // by session id
	items        map[string]model.ItemStatistics
	reliability  map[string]model.CompetencyReliability
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]model.Session),
		answers:      make(map[string][]model.Answer),
		questions:    make(map[string]model.Question),
		indicators:   make(map[string]model.Indicator),
		competencies: make(map[string]model.Competency),
		results:      make(map[string]model.TestResult),
		items:        make(map[string]model.ItemStatistics),
		reliability:  make(map[string]model.CompetencyReliability),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Session implements SessionReader.
func (s *MemoryStore) Session(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return sess, nil
}

// Answers implements AnswerReader.
func (s *MemoryStore) Answers(_ context.Context, sessionID string) ([]model.Answer, error) {
	defer observe("answers", time.Now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Answer(nil), s.answers[sessionID]...), nil
}

// HistoricalAnswers implements AnswerReader. Sessions are returned in the
// order they were first seeded.
func (s *MemoryStore) HistoricalAnswers(_ context.Context) ([]model.SessionAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.SessionAnswer
	for _, sid := range s.sessionOrder {
		for _, a := range s.answers[sid] {
			out = append(out, model.SessionAnswer{SessionID: sid, Answer: a})
		}
	}
	return out, nil
}

func pick[T any](m map[string]T, ids []string) []T {
	out := make([]T, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if v, ok := m[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

func values[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// Questions implements CatalogReader.
func (s *MemoryStore) Questions(_ context.Context, ids []string) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pick(s.questions, ids), nil
}

// Indicators implements CatalogReader.
func (s *MemoryStore) Indicators(_ context.Context, ids []string) ([]model.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pick(s.indicators, ids), nil
}

// Competencies implements CatalogReader.
func (s *MemoryStore) Competencies(_ context.Context, ids []string) ([]model.Competency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pick(s.competencies, ids), nil
}

// AllQuestions implements CatalogReader.
func (s *MemoryStore) AllQuestions(_ context.Context) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.questions), nil
}

// AllIndicators implements CatalogReader.
func (s *MemoryStore) AllIndicators(_ context.Context) ([]model.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.indicators), nil
}

// ResultBySession implements ResultStore.
func (s *MemoryStore) ResultBySession(_ context.Context, sessionID string) (model.TestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[sessionID]
	if !ok {
		return model.TestResult{}, fmt.Errorf("result for session %s: %w", sessionID, ErrNotFound)
	}
	return r, nil
}

// SaveResult implements ResultStore.
func (s *MemoryStore) SaveResult(_ context.Context, r model.TestResult) error {
	defer observe("save_result", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.SessionID]; ok {
		return fmt.Errorf("result for session %s: %w", r.SessionID, ErrConflict)
	}
	s.results[r.SessionID] = r
	return nil
}

// DeleteResult implements ResultStore.
func (s *MemoryStore) DeleteResult(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, sessionID)
	return nil
}

// ItemStatistics implements ItemStore.
func (s *MemoryStore) ItemStatistics(_ context.Context, questionID string) (model.ItemStatistics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.items[questionID]
	return st, ok, nil
}

// ListItemStatistics implements ItemStore.
func (s *MemoryStore) ListItemStatistics(_ context.Context) ([]model.ItemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.items), nil
}

// SaveItemStatistics implements ItemStore.
func (s *MemoryStore) SaveItemStatistics(_ context.Context, st model.ItemStatistics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[st.QuestionID] = st
	return nil
}

// ListReliability implements ItemStore.
func (s *MemoryStore) ListReliability(_ context.Context) ([]model.CompetencyReliability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return values(s.reliability), nil
}

// SaveReliability implements ItemStore.
func (s *MemoryStore) SaveReliability(_ context.Context, r model.CompetencyReliability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reliability[r.CompetencyID] = r
	return nil
}

// SetQuestionActive implements QuestionWriter.
func (s *MemoryStore) SetQuestionActive(_ context.Context, questionID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	q.Active = active
	s.questions[questionID] = q
	return nil
}

// PutSession implements Seeder.
func (s *MemoryStore) PutSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

// PutAnswers implements Seeder. Answers are appended to any already stored.
func (s *MemoryStore) PutAnswers(_ context.Context, sessionID string, answers []model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.answers[sessionID]; !ok {
		s.sessionOrder = append(s.sessionOrder, sessionID)
	}
	s.answers[sessionID] = append(s.answers[sessionID], answers...)
	return nil
}

// PutCatalog implements Seeder.
func (s *MemoryStore) PutCatalog(_ context.Context, questions []model.Question, indicators []model.Indicator, competencies []model.Competency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.questions[q.ID] = q
	}
	for _, i := range indicators {
		s.indicators[i.ID] = i
	}
	for _, c := range competencies {
		s.competencies[c.ID] = c
	}
	return nil
}

// Stats returns record counts.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Sessions:  len(s.sessions),
		Questions: len(s.questions),
		Results:   len(s.results),
		Items:     len(s.items),
	}
	for _, as := range s.answers {
		st.Answers += len(as)
	}
	return st, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

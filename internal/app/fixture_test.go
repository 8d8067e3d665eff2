package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/assay/internal/adapters/repository"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/domain/scoring"
)

func ptr[T any](v T) *T { return &v }

func likert(questionID string, v float64) model.Answer {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.Answer{QuestionID: questionID, OrdinalValue: &v, AnsweredAt: &at, TimeSpentSeconds: ptr(20)}
}

// seed loads one competency with one indicator and three Likert questions,
// and session s1 answering 5, 4 and 3 (75%) plus one skipped question.
func seed(ctx context.Context, s repository.Seeder, goal model.Goal) {
	must(s.PutCatalog(ctx,
		[]model.Question{
			{ID: "q1", Kind: model.KindLikert, IndicatorID: "i1", Active: true},
			{ID: "q2", Kind: model.KindLikert, IndicatorID: "i1", Active: true},
			{ID: "q3", Kind: model.KindLikert, IndicatorID: "i1", Active: true},
			{ID: "q4", Kind: model.KindLikert, IndicatorID: "i1", Active: true},
		},
		[]model.Indicator{{ID: "i1", CompetencyID: "c1", Title: "Listens", Weight: 1}},
		[]model.Competency{{ID: "c1", Name: "Communication"}},
	))
	must(s.PutSession(ctx, model.Session{ID: "s1", TemplateID: "t1", Goal: goal, PassingScore: 70}))
	must(s.PutAnswers(ctx, "s1", []model.Answer{
		likert("q1", 5), likert("q2", 4), likert("q3", 3),
		{QuestionID: "q4", Skipped: true},
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// countingStore counts answer fetches and injects failures.
type countingStore struct {
	*repository.MemoryStore

	answerFetches atomic.Int32

	mu           sync.Mutex
	answersErr   error
	questionsErr error
	saveErr      error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: repository.NewMemoryStore()}
}

func (c *countingStore) Answers(ctx context.Context, sessionID string) ([]model.Answer, error) {
	c.answerFetches.Add(1)
	c.mu.Lock()
	err := c.answersErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryStore.Answers(ctx, sessionID)
}

func (c *countingStore) Questions(ctx context.Context, ids []string) ([]model.Question, error) {
	c.mu.Lock()
	err := c.questionsErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryStore.Questions(ctx, ids)
}

func (c *countingStore) SaveResult(ctx context.Context, r model.TestResult) error {
	c.mu.Lock()
	err := c.saveErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryStore.SaveResult(ctx, r)
}

// countingTable wraps the default strategies and counts invocations.
func countingTable(calls *atomic.Int32) scoring.Table {
	t := scoring.DefaultTable()
	for goal, s := range t {
		t[goal] = func(in scoring.Input, cfg scoring.Config) (model.ScoringResult, error) {
			calls.Add(1)
			return s(in, cfg)
		}
	}
	return t
}

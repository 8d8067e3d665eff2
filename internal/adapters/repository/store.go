// Package repository defines the persistence boundary of the scoring
// service and its in-memory and SQL implementations.
package repository

import (
	"context"

	"github.com/okian/assay/internal/domain/model"
)

// SessionReader resolves assessment sessions.
type SessionReader interface {
	// Session returns ErrNotFound if the session is unknown.
	Session(ctx context.Context, id string) (model.Session, error)
}

// AnswerReader exposes captured answers.
type AnswerReader interface {
	// Answers returns the answers of one session in capture order.
	Answers(ctx context.Context, sessionID string) ([]model.Answer, error)
	// HistoricalAnswers returns every answer of every session.
	HistoricalAnswers(ctx context.Context) ([]model.SessionAnswer, error)
}

// CatalogReader batch-loads question, indicator and competency metadata.
// Unknown ids are silently omitted from the results.
type CatalogReader interface {
	Questions(ctx context.Context, ids []string) ([]model.Question, error)
	Indicators(ctx context.Context, ids []string) ([]model.Indicator, error)
	Competencies(ctx context.Context, ids []string) ([]model.Competency, error)
	AllQuestions(ctx context.Context) ([]model.Question, error)
	AllIndicators(ctx context.Context) ([]model.Indicator, error)
}

// ResultStore persists one result per session.
type ResultStore interface {
	// ResultBySession returns ErrNotFound when no result exists.
	ResultBySession(ctx context.Context, sessionID string) (model.TestResult, error)
	// SaveResult returns ErrConflict if the session already has a result.
	SaveResult(ctx context.Context, r model.TestResult) error
	// DeleteResult is a no-op for a session without a result.
	DeleteResult(ctx context.Context, sessionID string) error
}

// ItemStore persists psychometric statistics.
type ItemStore interface {
	ItemStatistics(ctx context.Context, questionID string) (model.ItemStatistics, bool, error)
	ListItemStatistics(ctx context.Context) ([]model.ItemStatistics, error)
	SaveItemStatistics(ctx context.Context, st model.ItemStatistics) error
	ListReliability(ctx context.Context) ([]model.CompetencyReliability, error)
	SaveReliability(ctx context.Context, r model.CompetencyReliability) error
}

// QuestionWriter toggles whether a question is served.
type QuestionWriter interface {
	// SetQuestionActive returns ErrNotFound for an unknown question.
	SetQuestionActive(ctx context.Context, questionID string, active bool) error
}

// Seeder loads sessions, answers and catalog data. It stands in for the
// authoring and session services that own these records.
type Seeder interface {
	PutSession(ctx context.Context, s model.Session) error
	PutAnswers(ctx context.Context, sessionID string, answers []model.Answer) error
	PutCatalog(ctx context.Context, questions []model.Question, indicators []model.Indicator, competencies []model.Competency) error
}

// Stats counts stored records.
type Stats struct {
	Sessions  int `json:"sessions"`
	Answers   int `json:"answers"`
	Questions int `json:"questions"`
	Results   int `json:"results"`
	Items     int `json:"items"`
}

// Repository is everything the service needs from storage.
type Repository interface {
	SessionReader
	AnswerReader
	CatalogReader
	ResultStore
	ItemStore
	QuestionWriter
	Seeder
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

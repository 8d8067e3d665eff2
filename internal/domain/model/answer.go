// Package model contains domain models passed between layers.
package model

import "time"

// Answer is one raw response captured during an assessment session.
// Answers are never mutated after creation.
type Answer struct {
	QuestionID       string     `json:"question_id"`
	OrdinalValue     *float64   `json:"ordinal_value,omitempty"`     // Likert-family rating
	PrecomputedScore *float64   `json:"precomputed_score,omitempty"` // SJT/MCQ score in [0,1]
	Skipped          bool       `json:"skipped"`
	AnsweredAt       *time.Time `json:"answered_at,omitempty"`
	TimeSpentSeconds *int       `json:"time_spent_seconds,omitempty"`
}

// Valid reports whether the answer takes part in scoring.
func (a Answer) Valid() bool {
	return !a.Skipped && a.AnsweredAt != nil
}

// Session is the slice of an assessment session the scorer needs.
type Session struct {
	ID           string  `json:"id"`
	TemplateID   string  `json:"template_id"`
	Goal         Goal    `json:"goal"`
	PassingScore float64 `json:"passing_score"`
}

// Goal selects the scoring strategy for a session.
type Goal string

// Known assessment goals. Unknown goals are legal and fall back to legacy scoring.
const (
	GoalOverview Goal = "OVERVIEW"
	GoalJobFit   Goal = "JOB_FIT"
	GoalTeamFit  Goal = "TEAM_FIT"
)

// AnswerStats are the descriptive statistics that survive a scoring failure.
type AnswerStats struct {
	Answered         int
	Skipped          int
	TotalTimeSeconds int
}

// DescribeAnswers counts answered and skipped items and sums time spent.
func DescribeAnswers(answers []Answer) AnswerStats {
	var st AnswerStats
	for _, a := range answers {
		switch {
		case a.Skipped:
			st.Skipped++
		case a.AnsweredAt != nil:
			st.Answered++
		}
		if a.TimeSpentSeconds != nil {
			st.TotalTimeSeconds += *a.TimeSpentSeconds
		}
	}
	return st
}

// SessionAnswer ties a historical answer to the session that produced it.
// Psychometric analysis treats each session as one respondent.
type SessionAnswer struct {
	SessionID string `json:"session_id"`
	Answer
}

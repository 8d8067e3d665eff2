package model

import "time"

// ResultStatus is the lifecycle state of a test result.
type ResultStatus string

// Result states: none -> PENDING -> COMPLETED.
const (
	StatusPending   ResultStatus = "PENDING"
	StatusCompleted ResultStatus = "COMPLETED"
)

// UnknownCompetencyName labels scores whose competency could not be resolved.
const UnknownCompetencyName = "Unknown Competency"

// IndicatorScore is the indicator-level breakdown of a competency score.
type IndicatorScore struct {
	IndicatorID       string  `json:"indicator_id"`
	Title             string  `json:"title,omitempty"`
	Weight            float64 `json:"weight"`
	Score             float64 `json:"score"`
	MaxScore          float64 `json:"max_score"`
	Percentage        float64 `json:"percentage"`
	QuestionsAnswered int     `json:"questions_answered"`
	ProficiencyLabel  string  `json:"proficiency_label"`
}

// CompetencyScore is the scored outcome for one competency.
type CompetencyScore struct {
	CompetencyID         string           `json:"competency_id"`
	CompetencyName       string           `json:"competency_name"`
	OnetCode             *string          `json:"onet_code"`
	Score                float64          `json:"score"`
	MaxScore             float64          `json:"max_score"`
	Percentage           float64          `json:"percentage"`
	QuestionsAnswered    int              `json:"questions_answered"`
	ProficiencyLabel     string           `json:"proficiency_label"`
	InsufficientEvidence *bool            `json:"insufficient_evidence,omitempty"`
	EvidenceNote         *string          `json:"evidence_note,omitempty"`
	IndicatorScores      []IndicatorScore `json:"indicator_scores"`
}

// Flagged reports whether the competency was marked as low-evidence.
func (c CompetencyScore) Flagged() bool {
	return c.InsufficientEvidence != nil && *c.InsufficientEvidence
}

// ExtendedMetricProfilePattern is the extended-metrics key for the profile pattern.
const ExtendedMetricProfilePattern = "profilePattern"

// ScoringResult is the output of a scoring strategy.
type ScoringResult struct {
	OverallScore      float64           `json:"overall_score"`
	OverallPercentage float64           `json:"overall_percentage"`
	Goal              Goal              `json:"goal"`
	CompetencyScores  []CompetencyScore `json:"competency_scores"`
	ExtendedMetrics   map[string]any    `json:"extended_metrics"`
}

// TestResult is the persisted outcome of a scoring request. Score fields are
// nil while the result is PENDING.
type TestResult struct {
	ID                string            `json:"id"`
	SessionID         string            `json:"session_id"`
	Status            ResultStatus      `json:"status"`
	Goal              Goal              `json:"goal"`
	OverallScore      *float64          `json:"overall_score,omitempty"`
	OverallPercentage *float64          `json:"overall_percentage,omitempty"`
	Passed            *bool             `json:"passed,omitempty"`
	QuestionsAnswered int               `json:"questions_answered"`
	QuestionsSkipped  int               `json:"questions_skipped"`
	TotalTimeSeconds  int               `json:"total_time_seconds"`
	CompetencyScores  []CompetencyScore `json:"competency_scores,omitempty"`
	ExtendedMetrics   map[string]any    `json:"extended_metrics,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

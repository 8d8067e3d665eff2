package model

import "time"

// ValidityStatus is the lifecycle state of a question item.
type ValidityStatus string

// Item validity states.
const (
	ValidityProbation ValidityStatus = "PROBATION"
	ValidityActive    ValidityStatus = "ACTIVE"
	ValidityFlagged   ValidityStatus = "FLAGGED_FOR_REVIEW"
	ValidityRetired   ValidityStatus = "RETIRED"
)

// ItemStatistics tracks the psychometric health of one question across runs.
type ItemStatistics struct {
	QuestionID     string         `json:"question_id"`
	ResponseCount  int            `json:"response_count"`
	Difficulty     *float64       `json:"difficulty_index"`
	Discrimination *float64       `json:"discrimination_index"`
	Status         ValidityStatus `json:"validity_status"`
	RetiredReason  *string        `json:"retired_reason,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ItemResponse is one historical, normalized answer to an item.
type ItemResponse struct {
	QuestionID   string
	RespondentID string
	Score        float64
}

// ReliabilityStatus classifies a competency's internal consistency.
type ReliabilityStatus string

// Reliability bands.
const (
	ReliabilityReliable     ReliabilityStatus = "RELIABLE"
	ReliabilityAcceptable   ReliabilityStatus = "ACCEPTABLE"
	ReliabilityUnreliable   ReliabilityStatus = "UNRELIABLE"
	ReliabilityInsufficient ReliabilityStatus = "INSUFFICIENT_DATA"
)

// CompetencyReliability is the persisted internal-consistency measure.
type CompetencyReliability struct {
	CompetencyID string            `json:"competency_id"`
	Alpha        *float64          `json:"alpha"`
	SampleSize   int               `json:"sample_size"`
	ItemCount    int               `json:"item_count"`
	Status       ReliabilityStatus `json:"status"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// HealthReport summarises the item bank and competency reliability.
type HealthReport struct {
	TotalItems         int                       `json:"total_items"`
	ActiveItems        int                       `json:"active_items"`
	ProbationItems     int                       `json:"probation_items"`
	FlaggedItems       int                       `json:"flagged_items"`
	RetiredItems       int                       `json:"retired_items"`
	ReliabilityCounts  map[ReliabilityStatus]int `json:"reliability_counts"`
	AverageReliability *float64                  `json:"average_reliability"`
}

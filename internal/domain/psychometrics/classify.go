package psychometrics

import "github.com/okian/assay/internal/domain/model"

// Default psychometric thresholds.
const (
	DefaultMinResponses            = 50
	DefaultDiscriminationThreshold = 0.30
	DefaultDifficultyMin           = 0.20
	DefaultDifficultyMax           = 0.90
	DefaultReliabilityMinSample    = 30
	DefaultReliableAlpha           = 0.80
	DefaultAcceptableAlpha         = 0.70
)

// Thresholds drive item validity and competency reliability classification.
type Thresholds struct {
	MinResponses            int
	DiscriminationThreshold float64
	DifficultyMin           float64
	DifficultyMax           float64
	ReliabilityMinSample    int
	ReliableAlpha           float64
	AcceptableAlpha         float64
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinResponses:            DefaultMinResponses,
		DiscriminationThreshold: DefaultDiscriminationThreshold,
		DifficultyMin:           DefaultDifficultyMin,
		DifficultyMax:           DefaultDifficultyMax,
		ReliabilityMinSample:    DefaultReliabilityMinSample,
		ReliableAlpha:           DefaultReliableAlpha,
		AcceptableAlpha:         DefaultAcceptableAlpha,
	}
}

// meetsActiveCriteria reports whether discrimination and difficulty are in the ACTIVE band.
func (t Thresholds) meetsActiveCriteria(difficulty, discrimination *float64) bool {
	return discrimination != nil && *discrimination >= t.DiscriminationThreshold &&
		difficulty != nil && *difficulty >= t.DifficultyMin && *difficulty <= t.DifficultyMax
}

// ClassifyValidity applies the item decision order:
// too few responses, negative discrimination, healthy metrics, otherwise review.
func ClassifyValidity(responses int, difficulty, discrimination *float64, t Thresholds) model.ValidityStatus {
	switch {
	case responses < t.MinResponses:
		return model.ValidityProbation
	case discrimination != nil && *discrimination < 0:
		return model.ValidityRetired
	case t.meetsActiveCriteria(difficulty, discrimination):
		return model.ValidityActive
	default:
		return model.ValidityFlagged
	}
}

// ClassifyReliability bands an alpha coefficient. A nil alpha or a sample
// below the minimum is INSUFFICIENT_DATA.
func ClassifyReliability(alpha *float64, sampleSize int, t Thresholds) model.ReliabilityStatus {
	switch {
	case alpha == nil || sampleSize < t.ReliabilityMinSample:
		return model.ReliabilityInsufficient
	case *alpha >= t.ReliableAlpha:
		return model.ReliabilityReliable
	case *alpha >= t.AcceptableAlpha:
		return model.ReliabilityAcceptable
	default:
		return model.ReliabilityUnreliable
	}
}

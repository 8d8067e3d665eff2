package scoring

import "github.com/okian/assay/internal/domain/model"

// Proficiency labels.
const (
	LabelBeginning  = "Beginning"
	LabelDeveloping = "Developing"
	LabelProficient = "Proficient"
	LabelAdvanced   = "Advanced"
	LabelExpert     = "Expert"
)

// Proficiency band lower bounds (inclusive).
const (
	developingFloor = 30.0
	proficientFloor = 50.0
	advancedFloor   = 70.0
	expertFloor     = 85.0
)

// ProficiencyLabel maps a percentage to its proficiency band.
func ProficiencyLabel(p float64) string {
	p = round4(p)
	switch {
	case p >= expertFloor:
		return LabelExpert
	case p >= advancedFloor:
		return LabelAdvanced
	case p >= proficientFloor:
		return LabelProficient
	case p >= developingFloor:
		return LabelDeveloping
	default:
		return LabelBeginning
	}
}

// PatternCategory classifies a competency relative to the overall score.
type PatternCategory string

// Profile-pattern categories in priority order.
const (
	SignatureStrength PatternCategory = "SIGNATURE_STRENGTH"
	Strength          PatternCategory = "STRENGTH"
	CriticalGap       PatternCategory = "CRITICAL_GAP"
	Developing        PatternCategory = "DEVELOPING"
	Average           PatternCategory = "AVERAGE"
)

// Classify returns the profile-pattern category of percentage p given the
// overall percentage. Both values are rounded to four decimals first.
func Classify(p, overall float64, th Thresholds) PatternCategory {
	p = round4(p)
	overall = round4(overall)
	switch {
	case p >= th.Strength && p >= overall+th.SignatureBand:
		return SignatureStrength
	case p >= th.Strength:
		return Strength
	case p < th.CriticalGap:
		return CriticalGap
	case p >= th.Development:
		return Developing
	default:
		return Average
	}
}

// ProfilePattern groups competency names by category.
func ProfilePattern(scores []model.CompetencyScore, overall float64, th Thresholds) map[string][]string {
	out := make(map[string][]string)
	for _, s := range scores {
		cat := string(Classify(s.Percentage, overall, th))
		out[cat] = append(out[cat], s.CompetencyName)
	}
	return out
}

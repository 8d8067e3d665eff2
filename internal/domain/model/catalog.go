package model

// QuestionKind is the answer format of a question.
type QuestionKind string

// Question kinds understood by the normalizer.
const (
	KindLikert     QuestionKind = "LIKERT"
	KindFrequency  QuestionKind = "FREQUENCY"
	KindSJT        QuestionKind = "SJT"
	KindMCQ        QuestionKind = "MCQ"
	KindTrueFalse  QuestionKind = "TRUE_FALSE"
	KindCapability QuestionKind = "CAPABILITY"
	KindOpenText   QuestionKind = "OPEN_TEXT"
)

// Ordinal reports whether the kind is a 1..5 rating scale.
func (k QuestionKind) Ordinal() bool {
	return k == KindLikert || k == KindFrequency
}

// Question links an item to the indicator it measures.
type Question struct {
	ID          string       `json:"id"`
	Kind        QuestionKind `json:"kind"`
	IndicatorID string       `json:"indicator_id"`
	Active      bool         `json:"active"`
}

// DefaultIndicatorWeight is used when an indicator carries no positive weight.
const DefaultIndicatorWeight = 1.0

// Indicator is an observable behaviour owned by exactly one competency.
type Indicator struct {
	ID           string  `json:"id"`
	CompetencyID string  `json:"competency_id"`
	Title        string  `json:"title,omitempty"`
	Weight       float64 `json:"weight"`
}

// EffectiveWeight returns the roll-up weight, defaulting non-positive values.
func (i Indicator) EffectiveWeight() float64 {
	if i.Weight <= 0 {
		return DefaultIndicatorWeight
	}
	return i.Weight
}

// Competency is the aggregation key of a profile.
type Competency struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	StandardCode *string `json:"onet_code,omitempty"`
}

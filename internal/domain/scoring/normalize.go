package scoring

import (
	"math"

	"github.com/okian/assay/internal/domain/model"
)

// Ordinal scale bounds.
const (
	ordinalMin = 1.0
	ordinalMax = 5.0
)

// Normalize converts one answer into a score in [0,1] according to the
// question kind. Missing values normalize to 0.
func Normalize(kind model.QuestionKind, a model.Answer) float64 {
	if kind.Ordinal() && a.OrdinalValue != nil {
		v := clamp(*a.OrdinalValue, ordinalMin, ordinalMax)
		return (v - ordinalMin) / (ordinalMax - ordinalMin)
	}
	if a.PrecomputedScore == nil {
		return 0
	}
	return clamp(*a.PrecomputedScore, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// round4 rounds to four decimals so threshold comparisons do not flicker on
// floating-point noise.
func round4(v float64) float64 {
	return math.Round(v*10_000) / 10_000
}

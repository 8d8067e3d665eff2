package scoring

import (
	"fmt"

	"github.com/okian/assay/internal/domain/model"
)

// AnnotateEvidence flags competencies backed by fewer than minQuestions
// answered questions. Sufficient competencies keep nil flag and note.
func AnnotateEvidence(scores []model.CompetencyScore, minQuestions int) []model.CompetencyScore {
	for i := range scores {
		n := scores[i].QuestionsAnswered
		if n >= minQuestions {
			continue
		}
		flag := true
		note := fmt.Sprintf("%d question(s) answered, minimum %d required", n, minQuestions)
		scores[i].InsufficientEvidence = &flag
		scores[i].EvidenceNote = &note
	}
	return scores
}

// OverallPercentage weights each competency by its answered question count,
// discounted by lowEvidenceFactor when the competency is flagged.
func OverallPercentage(scores []model.CompetencyScore, lowEvidenceFactor float64) float64 {
	switch len(scores) {
	case 0:
		return 0
	case 1:
		return scores[0].Percentage
	}
	var num, den float64
	for _, s := range scores {
		w := float64(s.QuestionsAnswered)
		if s.Flagged() {
			w *= lowEvidenceFactor
		}
		num += s.Percentage * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// CountFlagged returns how many competencies carry the insufficient-evidence flag.
func CountFlagged(scores []model.CompetencyScore) int {
	n := 0
	for _, s := range scores {
		if s.Flagged() {
			n++
		}
	}
	return n
}

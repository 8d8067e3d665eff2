package scoring_test

import (
	"fmt"
	"time"

	"github.com/okian/assay/internal/domain/model"
	scoring "github.com/okian/assay/internal/domain/scoring"
)

var answeredAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func likert(questionID string, v float64) model.Answer {
	return model.Answer{QuestionID: questionID, OrdinalValue: f64(v), AnsweredAt: &answeredAt}
}

func prescored(questionID string, s float64) model.Answer {
	return model.Answer{QuestionID: questionID, PrecomputedScore: f64(s), AnsweredAt: &answeredAt}
}

// builder assembles a catalog and answers for one scenario.
type builder struct {
	questions    []model.Question
	indicators   []model.Indicator
	competencies []model.Competency
	answers      []model.Answer
	seq          int
}

func (b *builder) competency(id, name string) *builder {
	b.competencies = append(b.competencies, model.Competency{ID: id, Name: name})
	return b
}

func (b *builder) indicator(id, competencyID string, weight float64) *builder {
	b.indicators = append(b.indicators, model.Indicator{ID: id, CompetencyID: competencyID, Weight: weight})
	return b
}

// likerts adds one LIKERT question per value under indicatorID and answers it.
func (b *builder) likerts(indicatorID string, values ...float64) *builder {
	for _, v := range values {
		b.seq++
		qid := fmt.Sprintf("q%d", b.seq)
		b.questions = append(b.questions, model.Question{ID: qid, Kind: model.KindLikert, IndicatorID: indicatorID, Active: true})
		b.answers = append(b.answers, likert(qid, v))
	}
	return b
}

// mcqs adds one MCQ question per pre-computed score under indicatorID.
func (b *builder) mcqs(indicatorID string, scores ...float64) *builder {
	for _, s := range scores {
		b.seq++
		qid := fmt.Sprintf("q%d", b.seq)
		b.questions = append(b.questions, model.Question{ID: qid, Kind: model.KindMCQ, IndicatorID: indicatorID, Active: true})
		b.answers = append(b.answers, prescored(qid, s))
	}
	return b
}

func (b *builder) input(goal model.Goal) scoring.Input {
	return scoring.Input{
		Goal:    goal,
		Answers: b.answers,
		Catalog: scoring.NewCatalog(b.questions, b.indicators, b.competencies),
	}
}

func scoreFor(res model.ScoringResult, name string) (model.CompetencyScore, bool) {
	for _, s := range res.CompetencyScores {
		if s.CompetencyName == name {
			return s, true
		}
	}
	return model.CompetencyScore{}, false
}

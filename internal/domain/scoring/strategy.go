package scoring

import (
	"sort"

	"github.com/okian/assay/internal/domain/model"
)

// Extended metric keys added by goal-specific strategies.
const (
	MetricReadiness       = "readiness"
	MetricTopCompetencies = "topCompetencies"
	MetricLegacy          = "legacy"

	topCompetencyCount = 3
)

// Input is everything a strategy needs for one scoring run.
type Input struct {
	Goal    model.Goal
	Answers []model.Answer
	Catalog Catalog
}

// Strategy is a pure scoring function for one assessment goal.
type Strategy func(in Input, cfg Config) (model.ScoringResult, error)

// Table dispatches goals to strategies.
type Table map[model.Goal]Strategy

// DefaultTable returns a fresh table with the built-in goal strategies.
func DefaultTable() Table {
	return Table{
		model.GoalOverview: Overview,
		model.GoalJobFit:   JobFit,
		model.GoalTeamFit:  TeamFit,
	}
}

// Lookup returns the strategy registered for goal.
func (t Table) Lookup(goal model.Goal) (Strategy, bool) {
	s, ok := t[goal]
	return s, ok && s != nil
}

// Evaluate runs the shared pipeline: normalize, aggregate, roll up, build,
// annotate evidence, compute the overall score and the profile pattern.
func Evaluate(in Input, cfg Config) model.ScoringResult {
	indicators := AggregateIndicators(in.Answers, in.Catalog)
	competencies := RollUp(indicators, in.Catalog)
	scores := AnnotateEvidence(BuildScores(competencies, in.Catalog), cfg.MinEvidenceQuestions)
	overall := OverallPercentage(scores, cfg.LowEvidenceFactor)

	var raw float64
	for _, s := range scores {
		raw += s.Score
	}
	return model.ScoringResult{
		OverallScore:      raw,
		OverallPercentage: overall,
		Goal:              in.Goal,
		CompetencyScores:  scores,
		ExtendedMetrics: map[string]any{
			model.ExtendedMetricProfilePattern: ProfilePattern(scores, overall, cfg.Thresholds),
		},
	}
}

// Overview is the general-purpose competency profile.
func Overview(in Input, cfg Config) (model.ScoringResult, error) {
	return Evaluate(in, cfg), nil
}

// JobFit adds the share of competencies at Proficient or above.
func JobFit(in Input, cfg Config) (model.ScoringResult, error) {
	res := Evaluate(in, cfg)
	readiness := 0.0
	if n := len(res.CompetencyScores); n > 0 {
		ready := 0
		for _, s := range res.CompetencyScores {
			if round4(s.Percentage) >= proficientFloor {
				ready++
			}
		}
		readiness = 100 * float64(ready) / float64(n)
	}
	res.ExtendedMetrics[MetricReadiness] = readiness
	return res, nil
}

// TeamFit adds the names of the strongest competencies.
func TeamFit(in Input, cfg Config) (model.ScoringResult, error) {
	res := Evaluate(in, cfg)
	ranked := make([]model.CompetencyScore, len(res.CompetencyScores))
	copy(ranked, res.CompetencyScores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Percentage > ranked[j].Percentage
	})
	top := make([]string, 0, topCompetencyCount)
	for i := 0; i < len(ranked) && i < topCompetencyCount; i++ {
		top = append(top, ranked[i].CompetencyName)
	}
	res.ExtendedMetrics[MetricTopCompetencies] = top
	return res, nil
}

// Legacy scores a session whose goal has no registered strategy:
// percentage = 100 * sum(score) / sum(maxScore) over valid answers, where
// each valid answer has a max score of 1.
func Legacy(in Input) model.ScoringResult {
	var sum float64
	n := 0
	for _, a := range in.Answers {
		if !a.Valid() {
			continue
		}
		kind := model.QuestionKind("")
		if q, ok := in.Catalog.Question(a.QuestionID); ok {
			kind = q.Kind
		}
		sum += Normalize(kind, a)
		n++
	}
	pct := 0.0
	if n > 0 {
		pct = 100 * sum / float64(n)
	}
	return model.ScoringResult{
		OverallScore:      sum,
		OverallPercentage: pct,
		Goal:              in.Goal,
		CompetencyScores:  []model.CompetencyScore{},
		ExtendedMetrics:   map[string]any{MetricLegacy: true},
	}
}

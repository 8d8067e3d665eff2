package scoring

import (
	"sort"

	"github.com/okian/assay/internal/domain/model"
)

// IndicatorAggregation accumulates normalized scores for one indicator.
type IndicatorAggregation struct {
	Sum   float64
	Count int
}

// Percentage returns 100 * Sum / Count, or 0 when nothing was answered.
func (a IndicatorAggregation) Percentage() float64 {
	if a.Count == 0 {
		return 0
	}
	return 100 * a.Sum / float64(a.Count)
}

// AggregateIndicators groups valid answers by indicator. Answers whose
// question or indicator cannot be resolved are dropped.
func AggregateIndicators(answers []model.Answer, cat Catalog) map[string]IndicatorAggregation {
	out := make(map[string]IndicatorAggregation)
	for _, a := range answers {
		if !a.Valid() {
			continue
		}
		q, ok := cat.Question(a.QuestionID)
		if !ok || q.IndicatorID == "" {
			continue
		}
		if _, ok := cat.Indicator(q.IndicatorID); !ok {
			continue
		}
		agg := out[q.IndicatorID]
		agg.Sum += Normalize(q.Kind, a)
		agg.Count++
		out[q.IndicatorID] = agg
	}
	return out
}

// CompetencyAggregation accumulates weighted indicator percentages for one competency.
type CompetencyAggregation struct {
	CompetencyID          string
	RawScore              float64
	QuestionCount         int
	WeightedPercentageSum float64
	TotalWeight           float64
	Indicators            []model.IndicatorScore
}

// Percentage returns the weighted mean of indicator percentages.
func (c *CompetencyAggregation) Percentage() float64 {
	if c.TotalWeight == 0 {
		return 0
	}
	return c.WeightedPercentageSum / c.TotalWeight
}

func (c *CompetencyAggregation) add(ind model.Indicator, agg IndicatorAggregation) {
	w := ind.EffectiveWeight()
	pct := agg.Percentage()
	c.RawScore += agg.Sum
	c.QuestionCount += agg.Count
	c.WeightedPercentageSum += w * pct
	c.TotalWeight += w
	c.Indicators = append(c.Indicators, model.IndicatorScore{
		IndicatorID:       ind.ID,
		Title:             ind.Title,
		Weight:            w,
		Score:             agg.Sum,
		MaxScore:          float64(agg.Count),
		Percentage:        pct,
		QuestionsAnswered: agg.Count,
		ProficiencyLabel:  ProficiencyLabel(pct),
	})
}

// RollUp merges indicator aggregates into their owning competencies.
// Indicators without answers or without an owning competency are skipped.
func RollUp(indicators map[string]IndicatorAggregation, cat Catalog) map[string]*CompetencyAggregation {
	ids := make([]string, 0, len(indicators))
	for id := range indicators {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make(map[string]*CompetencyAggregation)
	for _, id := range ids {
		agg := indicators[id]
		if agg.Count == 0 {
			continue
		}
		ind, ok := cat.Indicator(id)
		if !ok || ind.CompetencyID == "" {
			continue
		}
		comp, ok := out[ind.CompetencyID]
		if !ok {
			comp = &CompetencyAggregation{CompetencyID: ind.CompetencyID}
			out[ind.CompetencyID] = comp
		}
		comp.add(ind, agg)
	}
	return out
}

// BuildScores converts competency aggregates into output scores. Competencies
// with no answered questions are excluded. Output is ordered by name, then id.
func BuildScores(aggs map[string]*CompetencyAggregation, cat Catalog) []model.CompetencyScore {
	out := make([]model.CompetencyScore, 0, len(aggs))
	for id, agg := range aggs {
		if agg.QuestionCount == 0 {
			continue
		}
		name := model.UnknownCompetencyName
		var code *string
		if comp, ok := cat.Competency(id); ok {
			name = comp.Name
			code = comp.StandardCode
		}
		pct := agg.Percentage()
		out = append(out, model.CompetencyScore{
			CompetencyID:      id,
			CompetencyName:    name,
			OnetCode:          code,
			Score:             agg.RawScore,
			MaxScore:          float64(agg.QuestionCount),
			Percentage:        pct,
			QuestionsAnswered: agg.QuestionCount,
			ProficiencyLabel:  ProficiencyLabel(pct),
			IndicatorScores:   agg.Indicators,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompetencyName != out[j].CompetencyName {
			return out[i].CompetencyName < out[j].CompetencyName
		}
		return out[i].CompetencyID < out[j].CompetencyID
	})
	return out
}

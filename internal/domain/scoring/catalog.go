package scoring

import "github.com/okian/assay/internal/domain/model"

// Catalog is the request-scoped, read-only lookup of questions, indicators
// and competencies used by a single scoring run. It is safe to share between
// goroutines because it is never mutated after construction.
type Catalog struct {
	questions    map[string]model.Question
	indicators   map[string]model.Indicator
	competencies map[string]model.Competency
}

// NewCatalog copies the given metadata into a new Catalog.
func NewCatalog(questions []model.Question, indicators []model.Indicator, competencies []model.Competency) Catalog {
	c := Catalog{
		questions:    make(map[string]model.Question, len(questions)),
		indicators:   make(map[string]model.Indicator, len(indicators)),
		competencies: make(map[string]model.Competency, len(competencies)),
	}
	for _, q := range questions {
		c.questions[q.ID] = q
	}
	for _, i := range indicators {
		c.indicators[i.ID] = i
	}
	for _, comp := range competencies {
		c.competencies[comp.ID] = comp
	}
	return c
}

// Question resolves a question by id.
func (c Catalog) Question(id string) (model.Question, bool) {
	q, ok := c.questions[id]
	return q, ok
}

// Indicator resolves an indicator by id.
func (c Catalog) Indicator(id string) (model.Indicator, bool) {
	i, ok := c.indicators[id]
	return i, ok
}

// Competency resolves a competency by id.
func (c Catalog) Competency(id string) (model.Competency, bool) {
	comp, ok := c.competencies[id]
	return comp, ok
}

// IndicatorIDs returns the distinct indicator ids referenced by the given questions.
func IndicatorIDs(questions []model.Question) []string {
	return distinct(questions, func(q model.Question) string { return q.IndicatorID })
}

// CompetencyIDs returns the distinct competency ids owning the given indicators.
func CompetencyIDs(indicators []model.Indicator) []string {
	return distinct(indicators, func(i model.Indicator) string { return i.CompetencyID })
}

// QuestionIDs returns the distinct question ids referenced by answers.
func QuestionIDs(answers []model.Answer) []string {
	return distinct(answers, func(a model.Answer) string { return a.QuestionID })
}

func distinct[T any](items []T, key func(T) string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		k := key(it)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

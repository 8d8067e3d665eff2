package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/assay/internal/domain/model"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }

var testTime = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

func seed(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.PutCatalog(ctx,
		[]model.Question{
			{ID: "q1", Kind: model.KindLikert, IndicatorID: "i1", Active: true},
			{ID: "q2", Kind: model.KindMCQ, IndicatorID: "i1", Active: true},
		},
		[]model.Indicator{{ID: "i1", CompetencyID: "c1", Title: "Listens", Weight: 2}},
		[]model.Competency{{ID: "c1", Name: "Communication", StandardCode: str("2.A.1.a")}},
	))
	require.NoError(t, repo.PutSession(ctx, model.Session{ID: "s1", TemplateID: "t1", Goal: model.GoalJobFit, PassingScore: 60}))
	spent := 12
	require.NoError(t, repo.PutAnswers(ctx, "s1", []model.Answer{
		{QuestionID: "q1", OrdinalValue: f64(4), AnsweredAt: &testTime, TimeSpentSeconds: &spent},
		{QuestionID: "q2", PrecomputedScore: f64(0.5), AnsweredAt: &testTime},
	}))
	require.NoError(t, repo.PutAnswers(ctx, "s1", []model.Answer{{QuestionID: "q3", Skipped: true}}))
}

// runContract exercises behaviour every Repository must share.
func runContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	t.Run("sessions", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		s, err := repo.Session(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, model.GoalJobFit, s.Goal)
		assert.Equal(t, 60.0, s.PassingScore)

		_, err = repo.Session(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("answers keep capture order", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		answers, err := repo.Answers(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, answers, 3)
		assert.Equal(t, "q1", answers[0].QuestionID)
		assert.Equal(t, 4.0, *answers[0].OrdinalValue)
		assert.Nil(t, answers[0].PrecomputedScore)
		assert.Equal(t, 12, *answers[0].TimeSpentSeconds)
		assert.True(t, answers[0].AnsweredAt.Equal(testTime))
		assert.Equal(t, 0.5, *answers[1].PrecomputedScore)
		assert.True(t, answers[2].Skipped)
		assert.Nil(t, answers[2].AnsweredAt)

		none, err := repo.Answers(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)

		history, err := repo.HistoricalAnswers(ctx)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "s1", history[0].SessionID)
	})

	t.Run("catalog lookups omit unknown ids", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		qs, err := repo.Questions(ctx, []string{"q1", "nope", "q2"})
		require.NoError(t, err)
		assert.Len(t, qs, 2)

		inds, err := repo.Indicators(ctx, []string{"i1"})
		require.NoError(t, err)
		require.Len(t, inds, 1)
		assert.Equal(t, 2.0, inds[0].Weight)
		assert.Equal(t, "Listens", inds[0].Title)

		comps, err := repo.Competencies(ctx, []string{"c1", "c9"})
		require.NoError(t, err)
		require.Len(t, comps, 1)
		assert.Equal(t, "2.A.1.a", *comps[0].StandardCode)

		empty, err := repo.Questions(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, empty)

		all, err := repo.AllQuestions(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		allInd, err := repo.AllIndicators(ctx)
		require.NoError(t, err)
		assert.Len(t, allInd, 1)
	})

	t.Run("one result per session", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		_, err := repo.ResultBySession(ctx, "s1")
		require.ErrorIs(t, err, ErrNotFound)

		passed := true
		res := model.TestResult{
			ID:                "r1",
			SessionID:         "s1",
			Status:            model.StatusCompleted,
			Goal:              model.GoalJobFit,
			OverallScore:      f64(1.25),
			OverallPercentage: f64(68.75),
			Passed:            &passed,
			QuestionsAnswered: 2,
			QuestionsSkipped:  1,
			TotalTimeSeconds:  12,
			CompetencyScores: []model.CompetencyScore{{
				CompetencyID: "c1", CompetencyName: "Communication", Score: 1.25, MaxScore: 2,
				Percentage: 68.75, QuestionsAnswered: 2, ProficiencyLabel: "Proficient",
			}},
			ExtendedMetrics: map[string]any{"readiness": 100.0},
			CreatedAt:       testTime,
		}
		require.NoError(t, repo.SaveResult(ctx, res))

		got, err := repo.ResultBySession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, res.ID, got.ID)
		assert.Equal(t, model.StatusCompleted, got.Status)
		assert.Equal(t, 68.75, *got.OverallPercentage)
		assert.True(t, *got.Passed)
		assert.Equal(t, res.CompetencyScores, got.CompetencyScores)
		assert.Equal(t, 100.0, got.ExtendedMetrics["readiness"])
		assert.True(t, got.CreatedAt.Equal(testTime))

		dup := res
		dup.ID = "r2"
		assert.ErrorIs(t, repo.SaveResult(ctx, dup), ErrConflict)

		require.NoError(t, repo.DeleteResult(ctx, "s1"))
		require.NoError(t, repo.DeleteResult(ctx, "s1"))
		_, err = repo.ResultBySession(ctx, "s1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("pending results keep nil scores", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.SaveResult(ctx, model.TestResult{
			ID: "r1", SessionID: "s2", Status: model.StatusPending, Goal: model.GoalOverview, CreatedAt: testTime,
		}))
		got, err := repo.ResultBySession(ctx, "s2")
		require.NoError(t, err)
		assert.Nil(t, got.OverallScore)
		assert.Nil(t, got.Passed)
		assert.Nil(t, got.CompetencyScores)
	})

	t.Run("item statistics upsert", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		_, found, err := repo.ItemStatistics(ctx, "q1")
		require.NoError(t, err)
		assert.False(t, found)

		st := model.ItemStatistics{QuestionID: "q1", ResponseCount: 10, Difficulty: f64(0.4), Status: model.ValidityProbation, UpdatedAt: testTime}
		require.NoError(t, repo.SaveItemStatistics(ctx, st))
		st.Status = model.ValidityRetired
		st.RetiredReason = str("leaks the answer")
		require.NoError(t, repo.SaveItemStatistics(ctx, st))

		got, found, err := repo.ItemStatistics(ctx, "q1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, model.ValidityRetired, got.Status)
		assert.Equal(t, "leaks the answer", *got.RetiredReason)
		assert.Nil(t, got.Discrimination)

		list, err := repo.ListItemStatistics(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("reliability upsert", func(t *testing.T) {
		repo := newRepo(t)
		r := model.CompetencyReliability{CompetencyID: "c1", SampleSize: 10, ItemCount: 3, Status: model.ReliabilityInsufficient, UpdatedAt: testTime}
		require.NoError(t, repo.SaveReliability(ctx, r))
		r.Alpha, r.SampleSize, r.Status = f64(0.83), 40, model.ReliabilityReliable
		require.NoError(t, repo.SaveReliability(ctx, r))

		list, err := repo.ListReliability(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 0.83, *list[0].Alpha)
		assert.Equal(t, model.ReliabilityReliable, list[0].Status)
	})

	t.Run("question activation", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)

		require.NoError(t, repo.SetQuestionActive(ctx, "q1", false))
		qs, err := repo.Questions(ctx, []string{"q1"})
		require.NoError(t, err)
		assert.False(t, qs[0].Active)

		assert.ErrorIs(t, repo.SetQuestionActive(ctx, "nope", true), ErrNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		repo := newRepo(t)
		seed(t, repo)
		st, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, Stats{Sessions: 1, Answers: 3, Questions: 2}, st)
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, func(t *testing.T) Repository {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runContract(t, func(t *testing.T) Repository {
		repo, err := Open(context.Background(), DialectSQLite, ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("oracle"), "dsn")
	assert.ErrorIs(t, err, ErrUnknownStore)
}

package scoring_test

import (
	"testing"

	"github.com/okian/assay/internal/domain/model"
	scoring "github.com/okian/assay/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTable(t *testing.T) {
	Convey("Given the default strategy table", t, func() {
		table := scoring.DefaultTable()

		Convey("Then the built-in goals are registered", func() {
			for _, g := range []model.Goal{model.GoalOverview, model.GoalJobFit, model.GoalTeamFit} {
				_, ok := table.Lookup(g)
				So(ok, ShouldBeTrue)
			}
		})

		Convey("Then unknown goals are not", func() {
			_, ok := table.Lookup(model.Goal("CAREER_SWITCH"))
			So(ok, ShouldBeFalse)
		})

		Convey("Then a nil entry counts as unregistered", func() {
			table[model.Goal("NIL")] = nil
			_, ok := table.Lookup(model.Goal("NIL"))
			So(ok, ShouldBeFalse)
		})
	})
}

func TestEvaluateEmpty(t *testing.T) {
	Convey("Given no answers", t, func() {
		res := scoring.Evaluate(scoring.Input{Goal: model.GoalOverview}, scoring.NewConfig())

		Convey("Then the result is zero with no competencies", func() {
			So(res.OverallScore, ShouldEqual, 0.0)
			So(res.OverallPercentage, ShouldEqual, 0.0)
			So(res.CompetencyScores, ShouldBeEmpty)
			So(res.Goal, ShouldEqual, model.GoalOverview)
		})
	})

	Convey("Given only skipped answers", t, func() {
		b := (&builder{}).competency("c1", "Focus").indicator("i1", "c1", 1).likerts("i1", 4, 5)
		for i := range b.answers {
			b.answers[i].Skipped = true
		}
		res := scoring.Evaluate(b.input(model.GoalOverview), scoring.NewConfig())

		So(res.OverallPercentage, ShouldEqual, 0.0)
		So(res.CompetencyScores, ShouldBeEmpty)
	})
}

func TestGoalStrategies(t *testing.T) {
	b := (&builder{}).
		competency("c1", "Alpha").
		competency("c2", "Bravo").
		competency("c3", "Charlie").
		competency("c4", "Delta").
		indicator("i1", "c1", 1).
		indicator("i2", "c2", 1).
		indicator("i3", "c3", 1).
		indicator("i4", "c4", 1).
		likerts("i1", 5, 5, 5).
		likerts("i2", 4, 4, 4).
		likerts("i3", 2, 2, 2).
		likerts("i4", 3, 3, 3)
	cfg := scoring.NewConfig()

	Convey("Given the job-fit strategy", t, func() {
		res, err := scoring.JobFit(b.input(model.GoalJobFit), cfg)

		Convey("Then readiness is the share at Proficient or above", func() {
			So(err, ShouldBeNil)
			So(res.ExtendedMetrics[scoring.MetricReadiness], ShouldEqual, 75.0)
			So(res.ExtendedMetrics, ShouldContainKey, model.ExtendedMetricProfilePattern)
		})
	})

	Convey("Given the team-fit strategy", t, func() {
		res, err := scoring.TeamFit(b.input(model.GoalTeamFit), cfg)

		Convey("Then the three strongest competencies are listed in order", func() {
			So(err, ShouldBeNil)
			So(res.ExtendedMetrics[scoring.MetricTopCompetencies], ShouldResemble, []string{"Alpha", "Bravo", "Delta"})
		})

		Convey("Then the competency list itself keeps name order", func() {
			So(res.CompetencyScores[0].CompetencyName, ShouldEqual, "Alpha")
			So(res.CompetencyScores[2].CompetencyName, ShouldEqual, "Charlie")
		})
	})

	Convey("Given the overview strategy", t, func() {
		res, err := scoring.Overview(b.input(model.GoalOverview), cfg)

		So(err, ShouldBeNil)
		So(res.CompetencyScores, ShouldHaveLength, 4)
		So(res.OverallPercentage, ShouldAlmostEqual, 62.5, 0.0001)
		So(res.OverallScore, ShouldEqual, 7.5)
	})
}

func TestLegacy(t *testing.T) {
	Convey("Given answers scored without a goal strategy", t, func() {
		b := (&builder{}).indicator("i1", "c1", 1).likerts("i1", 5, 3).mcqs("i1", 0.5)
		skipped := likert("q-skip", 5)
		skipped.Skipped = true
		in := b.input(model.Goal("UNMAPPED"))
		in.Answers = append(in.Answers, skipped)

		res := scoring.Legacy(in)

		Convey("Then percentage is 100 x sum / count over valid answers", func() {
			So(res.OverallScore, ShouldEqual, 2.0)
			So(res.OverallPercentage, ShouldAlmostEqual, 66.6667, 0.001)
			So(res.ExtendedMetrics[scoring.MetricLegacy], ShouldEqual, true)
			So(res.CompetencyScores, ShouldBeEmpty)
		})
	})

	Convey("Given no valid answers", t, func() {
		res := scoring.Legacy(scoring.Input{})
		So(res.OverallPercentage, ShouldEqual, 0.0)
	})
}

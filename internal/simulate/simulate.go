// Package simulate generates synthetic respondents for an item bank. It is
// used to exercise scoring end to end and to give the psychometric engine
// enough responses to classify items.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/assay/internal/adapters/repository"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/pkg/logger"
)

const (
	defaultSessions     = 100
	defaultConcurrency  = 4
	defaultPassingScore = 60
	answerNoise         = 0.15
	itemOffsetSpread    = 0.3
	secondsPerAnswer    = 30
)

// Profile is a class of respondent with a latent ability in [0,1].
type Profile struct {
	Name    string
	Ability float64
}

// DefaultProfiles spreads respondents from low to elite performers.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "low", Ability: 0.2},
		{Name: "average", Ability: 0.5},
		{Name: "high", Ability: 0.75},
		{Name: "elite", Ability: 0.92},
	}
}

// Config controls a simulation run.
type Config struct {
	Sessions     int
	Goal         model.Goal
	PassingScore float64
	SkipRate     float64
	Concurrency  int
	Seed         uint64
	Profiles     []Profile
}

// DefaultConfig returns a run of 100 OVERVIEW sessions.
func DefaultConfig() Config {
	return Config{
		Sessions:     defaultSessions,
		Goal:         model.GoalOverview,
		PassingScore: defaultPassingScore,
		Concurrency:  defaultConcurrency,
		Seed:         1,
		Profiles:     DefaultProfiles(),
	}
}

// Stats summarises a run.
type Stats struct {
	Sessions  int            `json:"sessions"`
	Answers   int            `json:"answers"`
	Skipped   int            `json:"skipped"`
	Completed int            `json:"completed"`
	Pending   int            `json:"pending"`
	Failed    int            `json:"failed"`
	ByProfile map[string]int `json:"by_profile"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// QuestionSource lists the questions respondents are served.
type QuestionSource interface {
	AllQuestions(ctx context.Context) ([]model.Question, error)
}

// Scorer scores a seeded session.
type Scorer interface {
	Score(ctx context.Context, sessionID string) (model.TestResult, error)
}

// ErrNoQuestions is returned when the bank has no active question.
var ErrNoQuestions = errors.New("no active questions")

// Run seeds cfg.Sessions respondents answering every active question, then
// scores them when scorer is not nil.
func Run(ctx context.Context, src QuestionSource, seeder repository.Seeder, scorer Scorer, cfg Config) (Stats, error) {
	start := time.Now()
	log := logger.Named("simulate")
	if cfg.Sessions <= 0 {
		cfg.Sessions = defaultSessions
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if len(cfg.Profiles) == 0 {
		cfg.Profiles = DefaultProfiles()
	}

	all, err := src.AllQuestions(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list questions: %w", err)
	}
	questions := all[:0:0]
	for _, q := range all {
		if q.Active {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return Stats{}, ErrNoQuestions
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	stats := Stats{ByProfile: make(map[string]int)}
	ids := make([]string, 0, cfg.Sessions)
	for i := range cfg.Sessions {
		p := cfg.Profiles[i%len(cfg.Profiles)]
		s := model.Session{ID: "sim-" + uuid.NewString(), TemplateID: "simulated", Goal: cfg.Goal, PassingScore: cfg.PassingScore}
		answers := respond(rng, p, questions, cfg.SkipRate, start)

		if err := seeder.PutSession(ctx, s); err != nil {
			return stats, fmt.Errorf("seed session: %w", err)
		}
		if err := seeder.PutAnswers(ctx, s.ID, answers); err != nil {
			return stats, fmt.Errorf("seed answers: %w", err)
		}
		ids = append(ids, s.ID)
		stats.Sessions++
		stats.ByProfile[p.Name]++
		for _, a := range answers {
			if a.Skipped {
				stats.Skipped++
			} else {
				stats.Answers++
			}
		}
	}
	log.Info(ctx, "respondents seeded",
		logger.Int("sessions", stats.Sessions),
		logger.Int("questions", len(questions)))

	if scorer != nil {
		scoreAll(ctx, scorer, ids, cfg.Concurrency, &stats, log)
	}
	stats.Elapsed = time.Since(start)
	return stats, ctx.Err()
}

// respond draws one answer per question. Ordinal items get a 1..5 rating,
// everything else a precomputed score; each item carries a fixed difficulty
// offset derived from its id.
func respond(rng *rand.Rand, p Profile, questions []model.Question, skipRate float64, at time.Time) []model.Answer {
	out := make([]model.Answer, 0, len(questions))
	for i, q := range questions {
		if skipRate > 0 && rng.Float64() < skipRate {
			out = append(out, model.Answer{QuestionID: q.ID, Skipped: true})
			continue
		}
		level := clamp01(p.Ability + itemOffset(q.ID) + rng.NormFloat64()*answerNoise)
		answeredAt := at.Add(time.Duration(i*secondsPerAnswer) * time.Second)
		spent := secondsPerAnswer
		a := model.Answer{QuestionID: q.ID, AnsweredAt: &answeredAt, TimeSpentSeconds: &spent}
		switch {
		case q.Kind.Ordinal():
			v := 1 + math.Round(4*level)
			a.OrdinalValue = &v
		case q.Kind == model.KindMCQ || q.Kind == model.KindTrueFalse:
			v := 0.0
			if rng.Float64() < level {
				v = 1
			}
			a.PrecomputedScore = &v
		default:
			v := math.Round(level*100) / 100
			a.PrecomputedScore = &v
		}
		out = append(out, a)
	}
	return out
}

func itemOffset(questionID string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(questionID))
	return (float64(h.Sum32()%1000)/1000 - 0.5) * itemOffsetSpread
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func scoreAll(ctx context.Context, scorer Scorer, ids []string, concurrency int, stats *Stats, log logger.Logger) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan string)
	)
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				res, err := scorer.Score(ctx, id)
				mu.Lock()
				switch {
				case err != nil:
					stats.Failed++
					log.Warn(ctx, "simulated session not scored", logger.SessionID(id), logger.Error(err))
				case res.Status == model.StatusCompleted:
					stats.Completed++
				default:
					stats.Pending++
				}
				mu.Unlock()
			}
		}()
	}
	for _, id := range ids {
		select {
		case jobs <- id:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
}

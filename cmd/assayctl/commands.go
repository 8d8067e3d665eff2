package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/assay/internal/app"
	"github.com/okian/assay/internal/domain/model"
	"github.com/okian/assay/internal/simulate"
)

func newScoreCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <session-id>",
		Short: "Score a session and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Score(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newResultCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "result <session-id>",
		Short: "Print the stored result of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Result(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newRecalcCmd(o *rootOptions) *cobra.Command {
	var item, competency string
	cmd := &cobra.Command{
		Use:   "recalc",
		Short: "Recalculate item statistics and competency reliability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if competency != "" {
					rel, err := svc.RecalculateCompetency(ctx, competency)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), rel)
				}
				if item != "" {
					st, err := svc.RecalculateItem(ctx, item)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), st)
				}
				summary, err := svc.Recalculate(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"items":        summary.Items,
					"competencies": summary.Competencies,
					"took":         summary.Duration.String(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&item, "item", "", "recalculate a single question")
	cmd.Flags().StringVar(&competency, "competency", "", "recalculate the reliability of a single competency")
	cmd.MarkFlagsMutuallyExclusive("item", "competency")
	return cmd
}

func newHealthCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the item bank health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				report, err := svc.HealthReport(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newItemCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "item <question-id>",
		Short: "Print the stored statistics of a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				st, err := svc.Item(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newRetireCmd(o *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "retire <question-id>",
		Short: "Retire a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				st, err := svc.Retire(ctx, args[0], reason)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the question is retired")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newActivateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <question-id>",
		Short: "Return a question to service if its metrics allow it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				st, err := svc.Activate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

// fixture is the file format read by the seed command.
type fixture struct {
	Competencies []model.Competency `json:"competencies"`
	Indicators   []model.Indicator  `json:"indicators"`
	Questions    []model.Question   `json:"questions"`
	Sessions     []struct {
		model.Session
		Answers []model.Answer `json:"answers"`
	} `json:"sessions"`
}

func newSeedCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.json>",
		Short: "Load catalog, sessions and answers from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var fx fixture
			if err := json.Unmarshal(raw, &fx); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				seeder := svc.Seeder()
				if err := seeder.PutCatalog(ctx, fx.Questions, fx.Indicators, fx.Competencies); err != nil {
					return err
				}
				answers := 0
				for _, s := range fx.Sessions {
					if err := seeder.PutSession(ctx, s.Session); err != nil {
						return err
					}
					if err := seeder.PutAnswers(ctx, s.ID, s.Answers); err != nil {
						return err
					}
					answers += len(s.Answers)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d questions, %d sessions, %d answers\n",
					len(fx.Questions), len(fx.Sessions), answers)
				return nil
			})
		},
	}
}

func newSimulateCmd(o *rootOptions) *cobra.Command {
	cfg := simulate.DefaultConfig()
	var (
		score bool
		goal  string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Seed synthetic respondents for the active item bank",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Goal = model.Goal(goal)
			return o.withService(cmd, func(ctx context.Context, svc *service.Service) error {
				seeder := svc.Seeder()
				src, ok := seeder.(simulate.QuestionSource)
				if !ok {
					return fmt.Errorf("repository cannot list questions")
				}
				var scorer simulate.Scorer
				if score {
					scorer = svc
				}
				stats, err := simulate.Run(ctx, src, seeder, scorer, cfg)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Sessions, "sessions", cfg.Sessions, "number of respondents")
	f.StringVar(&goal, "goal", string(cfg.Goal), "session goal")
	f.Float64Var(&cfg.PassingScore, "passing-score", cfg.PassingScore, "passing percentage")
	f.Float64Var(&cfg.SkipRate, "skip-rate", 0, "probability of skipping a question")
	f.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "parallel scoring calls")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	f.BoolVar(&score, "score", false, "score every simulated session")
	return cmd
}

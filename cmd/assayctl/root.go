package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/assay/internal/app"
	"github.com/okian/assay/internal/bootstrap"
	"github.com/okian/assay/internal/config"
	"github.com/okian/assay/pkg/logger"
)

type rootOptions struct {
	configFile string
	driver     string
	dsn        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "assayctl",
		Short:         "Score assessment sessions and manage the item bank",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides "+config.FileEnv+")")
	cmd.PersistentFlags().StringVar(&opts.driver, "db-driver", "", "storage driver: memory, sqlite or postgres")
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "sqlite file path or postgres connection string")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(
		newSeedCmd(opts),
		newScoreCmd(opts),
		newResultCmd(opts),
		newRecalcCmd(opts),
		newHealthCmd(opts),
		newItemCmd(opts),
		newRetireCmd(opts),
		newActivateCmd(opts),
		newSimulateCmd(opts),
	)
	return cmd
}

// load layers flags over the usual config sources.
func (o *rootOptions) load(ctx context.Context) (*config.Config, error) {
	if o.configFile != "" {
		if err := os.Setenv(config.FileEnv, o.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if o.driver != "" {
		cfg.DBDriver = o.driver
	}
	if o.dsn != "" {
		cfg.DBDSN = o.dsn
	}
	cfg.WorkerCount = 1
	return cfg, cfg.Validate()
}

// withService runs fn against a started service and always shuts it down.
func (o *rootOptions) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := o.load(ctx)
	if err != nil {
		return err
	}
	log, err := logger.New(cmd.ErrOrStderr(), cfg.LogFormat)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(o.logLevel); err != nil {
		return err
	}

	rt, err := bootstrap.Start(ctx, cfg, log)
	if err != nil {
		return err
	}
	runErr := fn(ctx, rt.Service)
	if err := rt.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

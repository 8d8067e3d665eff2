// Package bootstrap builds a Service from configuration. It is shared by the
// HTTP server and the assayctl CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/assay/internal/adapters/events"
	"github.com/okian/assay/internal/adapters/lock"
	"github.com/okian/assay/internal/adapters/repository"
	service "github.com/okian/assay/internal/app"
	"github.com/okian/assay/internal/config"
	"github.com/okian/assay/internal/domain/psychometrics"
	"github.com/okian/assay/internal/domain/scoring"
	"github.com/okian/assay/pkg/logger"
)

const (
	redisDialTimeout = 5 * time.Second
	redisIOTimeout   = 3 * time.Second
	redisPoolSize    = 10
)

// Runtime is a started service and what it depends on.
type Runtime struct {
	Service *service.Service
	Redis   redis.UniversalClient
}

// Close stops the service, which closes the repository, and the redis client.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.Service.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ScoringConfig maps configuration onto scoring options.
func ScoringConfig(cfg *config.Config) scoring.Config {
	return scoring.NewConfig(
		scoring.WithMinEvidenceQuestions(cfg.MinEvidenceQuestions),
		scoring.WithLowEvidenceFactor(cfg.LowEvidenceFactor),
		scoring.WithThresholds(scoring.Thresholds{
			Strength:      cfg.StrengthThreshold,
			CriticalGap:   cfg.CriticalGapThreshold,
			Development:   cfg.DevelopmentThreshold,
			SignatureBand: cfg.SignatureBand,
		}),
	)
}

// PsychometricThresholds maps configuration onto engine thresholds.
func PsychometricThresholds(cfg *config.Config) psychometrics.Thresholds {
	return psychometrics.Thresholds{
		MinResponses:            cfg.MinItemResponses,
		DiscriminationThreshold: cfg.DiscriminationThreshold,
		DifficultyMin:           cfg.DifficultyMin,
		DifficultyMax:           cfg.DifficultyMax,
		ReliabilityMinSample:    cfg.ReliabilityMinSample,
		ReliableAlpha:           cfg.ReliableAlpha,
		AcceptableAlpha:         cfg.AcceptableAlpha,
	}
}

// OpenRepository selects the storage backend named by cfg.DBDriver.
func OpenRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		return repository.Open(ctx, repository.DialectSQLite, cfg.DBDSN)
	case config.DriverPostgres:
		return repository.Open(ctx, repository.DialectPostgres, cfg.DBDSN)
	default:
		return nil, fmt.Errorf("%w: %s", repository.ErrUnknownStore, cfg.DBDriver)
	}
}

// OpenRedis returns nil when no redis address is configured.
func OpenRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
		PoolSize:     redisPoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Start opens storage and redis, then starts the service.
func Start(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runtime, error) {
	repo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client, err := OpenRedis(ctx, cfg)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithRepository(repo),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithGuardSize(cfg.GuardSize),
		service.WithScoring(ScoringConfig(cfg)),
		service.WithPsychometrics(PsychometricThresholds(cfg)),
	}
	publisher := events.Publisher(events.NewLogPublisher(log.Named("events")))
	if client != nil {
		publisher = events.Multi{publisher, events.NewRedisPublisher(client, cfg.EventChannel)}
		opts = append(opts, service.WithLocker(
			lock.NewLocker(client, ""),
			time.Duration(cfg.SessionLockTTLMS)*time.Millisecond,
		))
	}
	opts = append(opts, service.WithEventPublisher(publisher))

	svc := service.New(opts...)
	if err := svc.Start(ctx); err != nil {
		_ = repo.Close()
		if client != nil {
			_ = client.Close()
		}
		return nil, fmt.Errorf("start service: %w", err)
	}
	log.Info(ctx, "runtime ready",
		logger.String("db_driver", cfg.DBDriver),
		logger.Bool("redis", client != nil),
	)
	return &Runtime{Service: svc, Redis: client}, nil
}

// Package config defines service configuration and its defaults.
//
// Conventions:
// - Keys are flat snake_case and match the koanf tags below.
// - New returns defaults; Load layers a YAML file and ASSAY_ env vars on top.
// - Errors returned from this package wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Supported storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of asynchronous scoring workers.
	WorkerCount int `koanf:"worker_count"`
	// QueueSize bounds the in-memory scoring job queue.
	QueueSize int `koanf:"queue_size"`
	// GuardSize bounds the number of sessions tracked by the in-process session guard.
	GuardSize int `koanf:"guard_size"`

	// DBDriver is one of memory, sqlite, postgres.
	DBDriver string `koanf:"db_driver"`
	// DBDSN is a file path for sqlite or a connection string for postgres.
	DBDSN string `koanf:"db_dsn"`

	// Redis is optional. When RedisAddr is empty no distributed lock or
	// redis event channel is used.
	RedisAddr        string `koanf:"redis_addr"`
	RedisPassword    string `koanf:"redis_password"`
	RedisDB          int    `koanf:"redis_db"`
	EventChannel     string `koanf:"event_channel"`
	SessionLockTTLMS int    `koanf:"session_lock_ttl_ms"`

	// Scoring
	MinEvidenceQuestions int     `koanf:"min_evidence_questions"`
	LowEvidenceFactor    float64 `koanf:"low_evidence_factor"`
	StrengthThreshold    float64 `koanf:"strength_threshold"`
	CriticalGapThreshold float64 `koanf:"critical_gap_threshold"`
	DevelopmentThreshold float64 `koanf:"development_threshold"`
	SignatureBand        float64 `koanf:"signature_band"`

	// Psychometrics
	MinItemResponses        int     `koanf:"min_item_responses"`
	DiscriminationThreshold float64 `koanf:"discrimination_threshold"`
	DifficultyMin           float64 `koanf:"difficulty_min"`
	DifficultyMax           float64 `koanf:"difficulty_max"`
	ReliabilityMinSample    int     `koanf:"reliability_min_sample"`
	ReliableAlpha           float64 `koanf:"reliable_alpha"`
	AcceptableAlpha         float64 `koanf:"acceptable_alpha"`
}

// New returns the default configuration.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		WorkerCount: runtime.NumCPU(),
		QueueSize:   10_000,
		GuardSize:   100_000,

		DBDriver: DriverMemory,

		EventChannel:     "assay.scoring",
		SessionLockTTLMS: 30_000,

		MinEvidenceQuestions: 3,
		LowEvidenceFactor:    0.5,
		StrengthThreshold:    75,
		CriticalGapThreshold: 30,
		DevelopmentThreshold: 40,
		SignatureBand:        10,

		MinItemResponses:        50,
		DiscriminationThreshold: 0.30,
		DifficultyMin:           0.20,
		DifficultyMax:           0.90,
		ReliabilityMinSample:    30,
		ReliableAlpha:           0.80,
		AcceptableAlpha:         0.70,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != DriverMemory && c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDriver != DriverMemory && c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn is required for %s", ErrInvalidConfig, c.DBDriver)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MinEvidenceQuestions <= 0:
		return fmt.Errorf("%w: min_evidence_questions must be positive", ErrInvalidConfig)
	case c.LowEvidenceFactor <= 0 || c.LowEvidenceFactor > 1:
		return fmt.Errorf("%w: low_evidence_factor must be in (0,1]", ErrInvalidConfig)
	case c.DifficultyMin > c.DifficultyMax:
		return fmt.Errorf("%w: difficulty_min exceeds difficulty_max", ErrInvalidConfig)
	case c.MinItemResponses <= 0:
		return fmt.Errorf("%w: min_item_responses must be positive", ErrInvalidConfig)
	}
	return nil
}

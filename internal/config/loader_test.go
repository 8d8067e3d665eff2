package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/assay/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.EventChannel, convey.ShouldEqual, "assay.scoring")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ASSAY_ADDR", ":8080")
			_ = os.Setenv("ASSAY_QUEUE_SIZE", "500")
			_ = os.Setenv("ASSAY_WORKER_COUNT", "16")
			_ = os.Setenv("ASSAY_LOW_EVIDENCE_FACTOR", "0.25")
			_ = os.Setenv("ASSAY_REDIS_ADDR", "localhost:6379")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 500)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.LowEvidenceFactor, convey.ShouldEqual, 0.25)
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "localhost:6379")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
# storage
addr: ":9090"
db_driver: sqlite
db_dsn: /tmp/assay.db
min_evidence_questions: 5
strength_threshold: 80
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ASSAY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.DBDSN, convey.ShouldEqual, "/tmp/assay.db")
				convey.So(cfg.MinEvidenceQuestions, convey.ShouldEqual, 5)
				convey.So(cfg.StrengthThreshold, convey.ShouldEqual, 80)
				convey.So(cfg.CriticalGapThreshold, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When both file and environment set a key", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nworker_count: 2\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ASSAY_CONFIG", tmpFile)
			_ = os.Setenv("ASSAY_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile("addr: [unclosed")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("ASSAY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the file does not exist", func() {
			_ = os.Setenv("ASSAY_CONFIG", "/nonexistent/assay.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a numeric env var is not a number", func() {
			_ = os.Setenv("ASSAY_QUEUE_SIZE", "lots")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("When the resulting config is invalid", func() {
			_ = os.Setenv("ASSAY_DB_DRIVER", "oracle")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "assay-config-*.yaml")
	if err != nil {
		panic(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	return f.Name()
}

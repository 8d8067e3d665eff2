package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/assay/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.MinEvidenceQuestions, convey.ShouldEqual, 3)
			convey.So(cfg.LowEvidenceFactor, convey.ShouldEqual, 0.5)
			convey.So(cfg.StrengthThreshold, convey.ShouldEqual, 75)
			convey.So(cfg.MinItemResponses, convey.ShouldEqual, 50)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with a single bad setting", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }},
			{"unknown driver", func(c *config.Config) { c.DBDriver = "mongo" }},
			{"sqlite without dsn", func(c *config.Config) { c.DBDriver = config.DriverSQLite }},
			{"no workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"no queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"zero evidence minimum", func(c *config.Config) { c.MinEvidenceQuestions = 0 }},
			{"zero evidence factor", func(c *config.Config) { c.LowEvidenceFactor = 0 }},
			{"evidence factor above one", func(c *config.Config) { c.LowEvidenceFactor = 1.5 }},
			{"inverted difficulty band", func(c *config.Config) { c.DifficultyMin, c.DifficultyMax = 0.9, 0.2 }},
			{"zero item responses", func(c *config.Config) { c.MinItemResponses = 0 }},
		}
		for _, tc := range cases {
			convey.Convey("When the config has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("When sqlite has a dsn", func() {
			cfg := config.New()
			cfg.DBDriver = config.DriverSQLite
			cfg.DBDSN = "assay.db"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

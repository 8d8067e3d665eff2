// Package scoring turns raw assessment answers into a weighted, multi-level
// competency profile. Every function in this package is pure: all lookups are
// passed in through an immutable Catalog built once per scoring run.
package scoring

// Default scoring configuration constants.
const (
	defaultMinEvidenceQuestions = 3
	defaultLowEvidenceFactor    = 0.5
	defaultStrengthThreshold    = 75.0
	defaultCriticalGapThreshold = 30.0
	defaultDevelopmentThreshold = 40.0
	defaultSignatureBand        = 10.0
)

// Thresholds drive profile-pattern classification.
type Thresholds struct {
	Strength      float64 // S: strength floor
	CriticalGap   float64 // C: critical-gap ceiling (exclusive)
	Development   float64 // D: developing floor
	SignatureBand float64 // B: distance above overall for a signature strength
}

// DefaultThresholds returns S=75, C=30, D=40, B=10.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Strength:      defaultStrengthThreshold,
		CriticalGap:   defaultCriticalGapThreshold,
		Development:   defaultDevelopmentThreshold,
		SignatureBand: defaultSignatureBand,
	}
}

// Config parameterises a scoring run.
type Config struct {
	MinEvidenceQuestions int
	LowEvidenceFactor    float64
	Thresholds           Thresholds
}

// Option applies a configuration option to Config.
type Option func(*Config)

// WithMinEvidenceQuestions sets the minimum answered questions per competency.
func WithMinEvidenceQuestions(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MinEvidenceQuestions = n
		}
	}
}

// WithLowEvidenceFactor sets the overall-score weight multiplier for flagged competencies.
func WithLowEvidenceFactor(f float64) Option {
	return func(c *Config) {
		if f > 0 && f <= 1 {
			c.LowEvidenceFactor = f
		}
	}
}

// WithThresholds replaces the profile-pattern thresholds.
func WithThresholds(t Thresholds) Option {
	return func(c *Config) {
		c.Thresholds = t
	}
}

// NewConfig builds a Config with defaults and applies opts.
func NewConfig(opts ...Option) Config {
	c := Config{
		MinEvidenceQuestions: defaultMinEvidenceQuestions,
		LowEvidenceFactor:    defaultLowEvidenceFactor,
		Thresholds:           DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

package risk

import "github.com/sirupsen/logrus"

// Default weights per severity. The score is their sum, capped at 100.
const (
	DefaultHighWeight   = 40
	DefaultMediumWeight = 15
	DefaultLowWeight    = 5
)

type config struct {
	weights map[Severity]int
	logger  *logrus.Logger
}

// Option configures a Scanner.
type Option func(*config)

// WithWeights replaces the score contribution of each severity.
func WithWeights(high, medium, low int) Option {
	return func(c *config) {
		c.weights = map[Severity]int{High: high, Medium: medium, Low: low}
	}
}

// WithLogger sets the logger for debug output. nil selects the logging
// package logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) config {
	c := config{
		weights: map[Severity]int{
			High:   DefaultHighWeight,
			Medium: DefaultMediumWeight,
			Low:    DefaultLowWeight,
		},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

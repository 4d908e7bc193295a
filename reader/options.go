package reader

import "github.com/sirupsen/logrus"

type config struct {
	strict bool
	logger *logrus.Logger
}

// Option configures a Reader
type Option func(*config)

// WithStrict disables repair. Files that would need a re-scan fail with
// the error that triggered it.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithLogger sets the logger for repair diagnostics (default: the
// package-level logger from the logging package).
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

package writer

import "github.com/sirupsen/logrus"

// Option configures serialization.
type Option func(*config)

type config struct {
	objectStreams int
	logger        *logrus.Logger
}

// WithObjectStreams packs up to n non-stream objects into each object
// stream. Zero, the default, writes every object directly.
func WithObjectStreams(n int) Option {
	return func(c *config) {
		if n < 0 {
			n = 0
		}
		c.objectStreams = n
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) config {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

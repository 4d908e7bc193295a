package document

import (
	"github.com/sirupsen/logrus"
	"github.com/tsawler/safepdf/reader"
)

type config struct {
	logger  *logrus.Logger
	readers []reader.Option
}

// Option configures how a document is opened.
type Option func(*config)

// WithLogger sets the logger used by the document and its reader.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.logger = l
		c.readers = append(c.readers, reader.WithLogger(l))
	}
}

// WithStrict disables cross-reference repair.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.readers = append(c.readers, reader.WithStrict(strict))
	}
}

func newConfig(opts []Option) config {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

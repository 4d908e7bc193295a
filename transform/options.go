package transform

import (
	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/logging"
	"github.com/tsawler/safepdf/pdfimage"
)

type config struct {
	jpegQuality int
	logger      *logrus.Logger
}

// Option configures a Transformer.
type Option func(*config)

// WithJPEGQuality sets the quality, 1 to 100, of re-encoded DCT images.
func WithJPEGQuality(q int) Option {
	return func(c *config) {
		if q >= 1 && q <= 100 {
			c.jpegQuality = q
		}
	}
}

// WithLogger sets the logger for debug output. nil selects the logging
// package logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Transformer runs document transforms with one configuration. The
// package-level functions use a Transformer with default settings.
type Transformer struct {
	cfg config
	log *logrus.Entry
}

// New returns a Transformer configured by opts.
func New(opts ...Option) *Transformer {
	cfg := newConfig(opts)
	return &Transformer{cfg: cfg, log: logging.Component(cfg.logger, "transform")}
}

func newConfig(opts []Option) config {
	c := config{jpegQuality: pdfimage.DefaultJPEGQuality}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

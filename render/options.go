package render

import (
	"image/color"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/pdfimage"
)

// DefaultDPI is the resolution used when none is given. At 72 DPI one
// pixel is one point.
const DefaultDPI = 72

type config struct {
	dpi         float64
	maxPixels   int
	background  color.Color
	annotations bool
	logger      *logrus.Logger
}

// Option configures a Renderer.
type Option func(*config)

// WithDPI sets the output resolution. Values that are not positive are
// ignored.
func WithDPI(dpi float64) Option {
	return func(c *config) {
		if dpi > 0 {
			c.dpi = dpi
		}
	}
}

// WithMaxPixels bounds the pixel count of one tile. Pages that would be
// larger at the requested resolution are scaled down to fit.
func WithMaxPixels(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxPixels = n
		}
	}
}

// WithBackground sets the colour the canvas starts as. The default is
// opaque white.
func WithBackground(bg color.Color) Option {
	return func(c *config) {
		if bg != nil {
			c.background = bg
		}
	}
}

// WithAnnotations controls whether annotation appearance streams are
// drawn. They are by default.
func WithAnnotations(draw bool) Option {
	return func(c *config) {
		c.annotations = draw
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
		dpi:         DefaultDPI,
		maxPixels:   pdfimage.MaxPixels,
		background:  color.White,
		annotations: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

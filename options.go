package safepdf

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/pdfimage"
	"github.com/tsawler/safepdf/render"
	"github.com/tsawler/safepdf/transform"
	"github.com/tsawler/safepdf/writer"
)

// Options holds the configuration shared by the facade functions.
type Options struct {
	logger *logrus.Logger

	// Parsing
	strict bool

	// Previews
	dpi         float64
	annotations bool

	// Reduce
	jpegQuality int
}

// Option configures a facade call.
type Option func(*Options)

// defaultOptions returns the default configuration.
func defaultOptions() Options {
	return Options{
		strict:      false,
		dpi:         render.DefaultDPI,
		annotations: true,
		jpegQuality: pdfimage.DefaultJPEGQuality,
	}
}

func newOptions(opts []Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger every package logs to for this call. nil
// selects the logging package logger.
func WithLogger(l *logrus.Logger) Option {
	return func(o *Options) {
		o.logger = l
	}
}

// WithStrict disables repair: files whose cross-reference data does not
// locate their objects fail to open.
func WithStrict(strict bool) Option {
	return func(o *Options) {
		o.strict = strict
	}
}

// WithDPI sets the preview resolution.
func WithDPI(dpi float64) Option {
	return func(o *Options) {
		o.dpi = dpi
	}
}

// WithAnnotations controls whether previews draw annotation appearances.
func WithAnnotations(draw bool) Option {
	return func(o *Options) {
		o.annotations = draw
	}
}

// WithJPEGQuality sets the quality of images Reduce re-encodes as JPEG.
func WithJPEGQuality(q int) Option {
	return func(o *Options) {
		o.jpegQuality = q
	}
}

func (o Options) open(ctx context.Context, data []byte) (*document.Document, error) {
	doc, err := document.OpenContext(ctx, data, document.WithLogger(o.logger), document.WithStrict(o.strict))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return doc, nil
}

func (o Options) renderOptions() []render.Option {
	return []render.Option{
		render.WithDPI(o.dpi),
		render.WithAnnotations(o.annotations),
		render.WithLogger(o.logger),
	}
}

func (o Options) transformer() *transform.Transformer {
	return transform.New(
		transform.WithJPEGQuality(o.jpegQuality),
		transform.WithLogger(o.logger),
	)
}

func (o Options) write(ctx context.Context, doc *document.Document, extra ...writer.Option) ([]byte, error) {
	opts := append([]writer.Option{writer.WithLogger(o.logger)}, extra...)
	out, err := writer.Write(ctx, doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return out, nil
}

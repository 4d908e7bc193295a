package safepdf

import (
	"context"
	"fmt"

	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/transform"
)

// Merge concatenates the pages of every input, in order.
func Merge(ctx context.Context, inputs [][]byte, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	docs := make([]*document.Document, 0, len(inputs))
	for i, data := range inputs {
		doc, err := o.open(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		docs = append(docs, doc)
	}
	merged, err := o.transformer().Merge(ctx, docs...)
	if err != nil {
		return nil, err
	}
	return o.write(ctx, merged)
}

// Split returns one file per page range. Ranges are 0-based and
// inclusive.
func Split(ctx context.Context, data []byte, ranges []transform.PageRange, opts ...Option) ([][]byte, error) {
	o := newOptions(opts)
	doc, err := o.open(ctx, data)
	if err != nil {
		return nil, err
	}
	parts, err := o.transformer().Split(ctx, doc, ranges...)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(parts))
	for _, part := range parts {
		b, err := o.write(ctx, part)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Crop sets the crop box of the selected pages, or of every page when
// pages is empty.
func Crop(ctx context.Context, data []byte, box model.Rect, pages []int, opts ...Option) ([]byte, error) {
	return edit(ctx, data, opts, func(t *transform.Transformer, doc *document.Document) (*document.Document, error) {
		return t.Crop(ctx, doc, box, len(pages) == 0, pages...)
	})
}

// Trim takes margins off the visible box of the selected pages, or of
// every page when pages is empty.
func Trim(ctx context.Context, data []byte, margins transform.Margins, pages []int, opts ...Option) ([]byte, error) {
	return edit(ctx, data, opts, func(t *transform.Transformer, doc *document.Document) (*document.Document, error) {
		return t.Trim(ctx, doc, margins, len(pages) == 0, pages...)
	})
}

// Rotate turns the selected pages, or every page when pages is empty, by
// a multiple of 90 degrees clockwise.
func Rotate(ctx context.Context, data []byte, degrees int, pages []int, opts ...Option) ([]byte, error) {
	return edit(ctx, data, opts, func(t *transform.Transformer, doc *document.Document) (*document.Document, error) {
		return t.Rotate(ctx, doc, degrees, len(pages) == 0, pages...)
	})
}

// Reduce shrinks data at the given level and writes it with the
// serializer settings of that level.
func Reduce(ctx context.Context, data []byte, level transform.Level, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	doc, err := o.open(ctx, data)
	if err != nil {
		return nil, err
	}
	small, err := o.transformer().Reduce(ctx, doc, level)
	if err != nil {
		return nil, err
	}
	return o.write(ctx, small, level.WriterOptions()...)
}

func edit(ctx context.Context, data []byte, opts []Option, fn func(*transform.Transformer, *document.Document) (*document.Document, error)) ([]byte, error) {
	o := newOptions(opts)
	doc, err := o.open(ctx, data)
	if err != nil {
		return nil, err
	}
	out, err := fn(o.transformer(), doc)
	if err != nil {
		return nil, err
	}
	return o.write(ctx, out)
}

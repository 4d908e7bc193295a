// Package safepdf is a sandboxed PDF engine working on byte buffers. It
// parses untrusted files into an object graph, scans them statically for
// active content, renders previews without running anything the file
// asks for, and merges, splits, crops, rotates and shrinks them.
//
// Nothing here opens files or sockets: inputs and outputs are []byte and
// hosts decide where they come from and go.
//
// Basic usage:
//
//	report, err := safepdf.Scan(ctx, data)
//	if err != nil {
//	    log.Fatal(safepdf.Category(err), err)
//	}
//	fmt.Println("risk score:", report.Score)
//
//	tile, err := safepdf.Preview(ctx, data, 0, safepdf.WithDPI(96))
//	if err != nil {
//	    return err
//	}
//	err = render.EncodePNG(w, tile)
//
// Transformations return serialized PDF bytes:
//
//	merged, err := safepdf.Merge(ctx, [][]byte{a, b})
//	small, err := safepdf.Reduce(ctx, merged, transform.Balanced)
//
// For finer control, the document, risk, render, transform and writer
// packages can be used directly.
package safepdf

import (
	"context"
	"fmt"

	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/render"
	"github.com/tsawler/safepdf/risk"
)

// Open parses data into a document. Malformed cross-reference data is
// repaired by scanning for objects unless WithStrict is given.
func Open(data []byte, opts ...Option) (*document.Document, error) {
	o := newOptions(opts)
	return o.open(context.Background(), data)
}

// Scan opens data and reports the active content it holds. Nothing
// found is executed or fetched.
func Scan(ctx context.Context, data []byte, opts ...Option) (*risk.Report, error) {
	o := newOptions(opts)
	doc, err := o.open(ctx, data)
	if err != nil {
		return nil, err
	}
	report, err := risk.NewScanner(risk.WithLogger(o.logger)).Scan(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return report, nil
}

// Preview renders the page at index, 0-based, into an RGBA tile.
// Scripts and actions are counted in the tile but never run.
func Preview(ctx context.Context, data []byte, index int, opts ...Option) (*render.Tile, error) {
	o := newOptions(opts)
	doc, err := o.open(ctx, data)
	if err != nil {
		return nil, err
	}
	tile, err := render.New(doc, o.renderOptions()...).RenderPage(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", index, err)
	}
	return tile, nil
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	doc := safepdf.Must(safepdf.Open(data))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

package transform

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/pages"
)

// PageRange is an inclusive range of 0-based page indexes.
type PageRange struct {
	First, Last int
}

// String returns the range as "first-last".
func (r PageRange) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

// Split is [Transformer.Split] with default settings.
func Split(ctx context.Context, doc *document.Document, ranges ...PageRange) ([]*document.Document, error) {
	return New().Split(ctx, doc, ranges...)
}

// Split returns one document per range, each holding the pages of that
// range in order with everything they reference. Objects reachable only
// from other pages are left out. The document information dictionary is
// carried into every part.
func (t *Transformer) Split(ctx context.Context, doc *document.Document, ranges ...PageRange) ([]*document.Document, error) {
	if doc.Encrypted() {
		return nil, core.ErrEncrypted
	}
	if len(ranges) == 0 {
		return nil, errorf("split", core.IndirectRef{}, "no page ranges")
	}
	all := doc.PageTree().Pages()
	for _, r := range ranges {
		if r.First < 0 || r.First > r.Last || r.Last >= len(all) {
			return nil, errorf("split", core.IndirectRef{}, "page range %s outside [0, %d)", r, len(all))
		}
	}

	info := doc.Trailer()["Info"]
	parts := make([]*document.Document, 0, len(ranges))
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sel := selection{doc: doc, pages: append([]*pages.Page(nil), all[r.First:r.Last+1]...)}
		part, err := assemble(ctx, []selection{sel}, info)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	t.log.WithFields(logrus.Fields{
		"pages": len(all),
		"parts": len(parts),
	}).Debug("split")
	return parts, nil
}

// SplitEvery is [Transformer.SplitEvery] with default settings.
func SplitEvery(ctx context.Context, doc *document.Document, n int) ([]*document.Document, error) {
	return New().SplitEvery(ctx, doc, n)
}

// SplitEvery divides doc into parts of n pages, the last possibly shorter.
func (t *Transformer) SplitEvery(ctx context.Context, doc *document.Document, n int) ([]*document.Document, error) {
	if n < 1 {
		return nil, errorf("split", core.IndirectRef{}, "part size %d is not positive", n)
	}
	count := doc.PageCount()
	var ranges []PageRange
	for first := 0; first < count; first += n {
		last := first + n - 1
		if last >= count {
			last = count - 1
		}
		ranges = append(ranges, PageRange{First: first, Last: last})
	}
	return t.Split(ctx, doc, ranges...)
}

package transform

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/pages"
)

// Margins are distances, in points, taken off each edge of a page box.
type Margins struct {
	Left, Bottom, Right, Top float64
}

// Crop is [Transformer.Crop] with default settings.
func Crop(ctx context.Context, doc *document.Document, box model.Rect, applyToAll bool, indexes ...int) (*document.Document, error) {
	return New().Crop(ctx, doc, box, applyToAll, indexes...)
}

// Trim is [Transformer.Trim] with default settings.
func Trim(ctx context.Context, doc *document.Document, m Margins, applyToAll bool, indexes ...int) (*document.Document, error) {
	return New().Trim(ctx, doc, m, applyToAll, indexes...)
}

// Rotate is [Transformer.Rotate] with default settings.
func Rotate(ctx context.Context, doc *document.Document, degrees int, applyToAll bool, indexes ...int) (*document.Document, error) {
	return New().Rotate(ctx, doc, degrees, applyToAll, indexes...)
}

// Crop sets an explicit /CropBox of box, intersected with the media box,
// on every target page. Content streams are not touched, so the crop can
// be undone by removing the entry. Targets are all pages when applyToAll
// is set and the given 0-based indexes otherwise.
func (t *Transformer) Crop(ctx context.Context, doc *document.Document, box model.Rect, applyToAll bool, indexes ...int) (*document.Document, error) {
	return t.updatePages(ctx, doc, "crop", applyToAll, indexes, func(p *pages.Page, d core.Dict) error {
		return setCropBox("crop", p, d, box, "crop box")
	})
}

// Trim sets the /CropBox of every target page to its current visible box
// less the margins.
func (t *Transformer) Trim(ctx context.Context, doc *document.Document, m Margins, applyToAll bool, indexes ...int) (*document.Document, error) {
	return t.updatePages(ctx, doc, "trim", applyToAll, indexes, func(p *pages.Page, d core.Dict) error {
		box := p.CropBox().Inset(m.Left, m.Bottom, m.Right, m.Top)
		return setCropBox("trim", p, d, box, "trimmed box")
	})
}

// Rotate turns every target page by degrees clockwise, relative to the
// rotation it inherits, and writes the result as the page's own /Rotate.
func (t *Transformer) Rotate(ctx context.Context, doc *document.Document, degrees int, applyToAll bool, indexes ...int) (*document.Document, error) {
	if degrees%90 != 0 {
		return nil, errorf("rotate", core.IndirectRef{}, "rotation %d is not a multiple of 90", degrees)
	}
	return t.updatePages(ctx, doc, "rotate", applyToAll, indexes, func(p *pages.Page, d core.Dict) error {
		d["Rotate"] = core.Int(pages.NormalizeRotation(p.Rotate() + degrees))
		return nil
	})
}

func setCropBox(op string, p *pages.Page, d core.Dict, box model.Rect, what string) error {
	clipped := box.Intersect(p.MediaBox())
	if box.IsEmpty() || clipped.IsEmpty() {
		return errorf(op, p.Ref, "%s %v does not overlap media box of page %d", what, box.Array(), p.Index)
	}
	d["CropBox"] = pages.RectArray(clipped)
	return nil
}

// updatePages applies edit to a copy of each target page dictionary and
// returns a document deriving from doc with the edited pages.
func (t *Transformer) updatePages(ctx context.Context, doc *document.Document, op string, applyToAll bool, indexes []int,
	edit func(p *pages.Page, d core.Dict) error) (*document.Document, error) {

	if doc.Encrypted() {
		return nil, core.ErrEncrypted
	}
	targets, err := targets(doc, op, applyToAll, indexes)
	if err != nil {
		return nil, err
	}
	changes := make(map[int]core.Object, len(targets))
	for _, p := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p.Ref.Number == 0 {
			return nil, errorf(op, p.Ref, "page %d is not an indirect object", p.Index)
		}
		d := p.Dict.Clone()
		if err := edit(p, d); err != nil {
			return nil, err
		}
		changes[p.Ref.Number] = d
	}
	t.log.WithFields(logrus.Fields{
		"op":    op,
		"pages": len(changes),
	}).Debug("pages updated")
	return doc.Derive(changes, nil), nil
}

// targets resolves the pages an operation applies to, in document order
// and without duplicates.
func targets(doc *document.Document, op string, applyToAll bool, indexes []int) ([]*pages.Page, error) {
	all := doc.PageTree().Pages()
	if applyToAll {
		return all, nil
	}
	if len(indexes) == 0 {
		return nil, errorf(op, core.IndirectRef{}, "no pages selected")
	}
	seen := make(map[int]bool, len(indexes))
	sorted := make([]int, 0, len(indexes))
	for _, i := range indexes {
		if i < 0 || i >= len(all) {
			return nil, errorf(op, core.IndirectRef{}, "page index %d outside [0, %d)", i, len(all))
		}
		if !seen[i] {
			seen[i] = true
			sorted = append(sorted, i)
		}
	}
	sort.Ints(sorted)
	out := make([]*pages.Page, len(sorted))
	for j, i := range sorted {
		out[j] = all[i]
	}
	return out, nil
}

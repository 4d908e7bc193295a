package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/logging"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/pages"
)

// MaxFormDepth bounds nested form XObjects and annotation appearances.
const MaxFormDepth = 16

// ErrPageRange is returned for page indexes outside the document.
var ErrPageRange = errors.New("page index out of range")

// Document is what the renderer reads. *document.Document implements it.
type Document interface {
	Resolve(obj core.Object) core.Object
	Catalog() (core.Dict, error)
	PageCount() int
	Page(index int) (*pages.Page, error)
	Encrypted() bool
}

// Tile is one rendered page.
type Tile struct {
	// Page is the 0-based page index.
	Page  int
	Image *image.RGBA
	// DPI is the resolution actually used, lower than requested when the
	// page had to be scaled down to the pixel limit.
	DPI float64
	// Ignored counts the actions and scripts attached to the document,
	// the page and its annotations. None of them run.
	Ignored int
	// Unsupported counts images, shadings and forms that were skipped.
	Unsupported int
}

// Renderer rasterizes pages. Rendering never executes scripts, follows
// links or loads font programs; text is drawn with placeholder glyphs at
// the positions and widths the fonts give. A Renderer is safe for
// concurrent use when its Document is.
type Renderer struct {
	doc Document
	cfg config
	log *logrus.Entry
}

// New creates a renderer for doc.
func New(doc Document, opts ...Option) *Renderer {
	cfg := newConfig(opts)
	return &Renderer{doc: doc, cfg: cfg, log: logging.Component(cfg.logger, "render")}
}

// RenderPage rasterizes one page. ctx is checked before the page, between
// form XObjects and periodically while operators run.
func (r *Renderer) RenderPage(ctx context.Context, index int) (*Tile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.doc.Encrypted() {
		return nil, core.ErrEncrypted
	}
	if count := r.doc.PageCount(); index < 0 || index >= count {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrPageRange, index, count)
	}
	page, err := r.doc.Page(index)
	if err != nil {
		return nil, err
	}

	lay := r.layout(page)
	canvas := image.NewRGBA(image.Rect(0, 0, lay.width, lay.height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(r.cfg.background), image.Point{}, draw.Src)

	log := r.log.WithField("page", index)
	in := newInterp(ctx, r.doc, log, canvas, lay.ctm, page.Resources())
	if err := in.content(r.pageContent(page, log)); err != nil {
		return nil, err
	}
	if r.cfg.annotations {
		for _, a := range page.Annotations() {
			in.reset(lay.ctm, page.Resources())
			if err := in.annotation(a); err != nil {
				return nil, err
			}
		}
	}

	tile := &Tile{
		Page:        index,
		Image:       canvas,
		DPI:         lay.dpi,
		Ignored:     r.ignored(page),
		Unsupported: in.unsupported,
	}
	log.WithFields(logrus.Fields{
		"width":       lay.width,
		"height":      lay.height,
		"operators":   in.ops,
		"ignored":     tile.Ignored,
		"unsupported": tile.Unsupported,
	}).Debug("page rendered")
	return tile, nil
}

// pageContent joins the page's content streams. Streams that do not
// decode are left out.
func (r *Renderer) pageContent(page *pages.Page, log *logrus.Entry) []byte {
	var buf bytes.Buffer
	for i, s := range page.Contents() {
		data, err := s.Decode()
		if err != nil {
			log.WithFields(logrus.Fields{"stream": i, "error": err}).Debug("content stream skipped")
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes()
}

type layout struct {
	ctm           model.Matrix
	width, height int
	dpi           float64
}

// layout sizes the canvas for the crop box and builds the matrix from
// user space to pixels, y down and /Rotate applied clockwise.
func (r *Renderer) layout(page *pages.Page) layout {
	box := page.CropBox()
	scale := r.cfg.dpi / 72
	w, h := box.Width()*scale, box.Height()*scale
	pw, ph := pixels(math.Round(w)), pixels(math.Round(h))
	if area := w * h; area > float64(r.cfg.maxPixels) || pw*ph > r.cfg.maxPixels {
		f := math.Sqrt(float64(r.cfg.maxPixels) / area)
		scale *= f
		pw, ph = pixels(math.Floor(w*f)), pixels(math.Floor(h*f))
	}

	ctm := model.Translate(-box.LLX, -box.URY).Multiply(model.Scale(scale, -scale))
	fw, fh := float64(pw), float64(ph)
	switch page.Rotate() {
	case 90:
		ctm = ctm.Multiply(model.Matrix{0, 1, -1, 0, fh, 0})
		pw, ph = ph, pw
	case 180:
		ctm = ctm.Multiply(model.Matrix{-1, 0, 0, -1, fw, fh})
	case 270:
		ctm = ctm.Multiply(model.Matrix{0, -1, 1, 0, 0, fw})
		pw, ph = ph, pw
	}
	return layout{ctm: ctm, width: pw, height: ph, dpi: scale * 72}
}

func pixels(v float64) int {
	if v < 1 || math.IsNaN(v) {
		return 1
	}
	return int(v)
}

// ignored counts the action and script entries that apply to page.
func (r *Renderer) ignored(page *pages.Page) int {
	n := 0
	if catalog, err := r.doc.Catalog(); err == nil {
		n += present(catalog, "OpenAction", "AA")
		if names, ok := r.doc.Resolve(catalog["Names"]).(core.Dict); ok && names.Has("JavaScript") {
			n++
		}
	}
	n += present(page.Dict, "AA")
	for _, a := range page.Annotations() {
		n += present(a, "A", "AA", "JS")
	}
	return n
}

func present(d core.Dict, keys ...string) int {
	n := 0
	for _, k := range keys {
		if d.Has(k) {
			n++
		}
	}
	return n
}

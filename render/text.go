package render

import (
	"image"
	"image/color"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/font"
	"github.com/tsawler/safepdf/model"
)

// Glyphs are drawn with a fixed bitmap face standing in for the font
// program, stretched to each glyph's advance width. Font programs are
// never executed.
var placeholder = basicfont.Face7x13

// currentFont returns the font selected by Tf in the current resources.
// Fonts reached through a reference are loaded once per page.
func (in *interp) currentFont() *font.Font {
	obj := in.resource("Font", in.gs().Text.FontName)
	ref, isRef := obj.(core.IndirectRef)
	if isRef {
		if f, ok := in.fonts[ref.Number]; ok {
			return f
		}
	}
	dict, _ := in.doc.Resolve(obj).(core.Dict)
	f := font.Load(dict, in.doc)
	if isRef {
		in.fonts[ref.Number] = f
	}
	return f
}

// showString draws a string operand and advances the text matrix past it.
func (in *interp) showString(obj core.Object) {
	s, ok := obj.(core.String)
	if !ok {
		return
	}
	gs := in.gs()
	f := in.currentFont()
	mode := gs.Text.RenderingMode
	visible := mode != 3 && mode != 7
	c := deviceColor(gs.FillColor, gs.FillAlpha)
	if mode == 1 || mode == 5 {
		c = deviceColor(gs.StrokeColor, gs.StrokeAlpha)
	}
	for _, g := range f.Decode([]byte(s)) {
		if visible {
			in.glyph(g, c)
		}
		gs.GlyphAdvance(g.Width, g.Space)
	}
}

// glyph draws the placeholder for g at the current text position.
func (in *interp) glyph(g font.Glyph, c color.NRGBA) {
	r, _ := utf8.DecodeRuneInString(g.Text)
	if g.Text == "" {
		r = utf8.RuneError
	}
	if unicode.IsSpace(r) {
		return
	}
	dr, mask, maskp, _, ok := placeholder.Glyph(fixed.P(0, 0), r)
	if !ok && dr.Empty() {
		return
	}
	width := g.Width
	if width <= 0 {
		width = 500
	}

	// Map atlas pixels to a unit em: the advance spans the glyph width
	// and the cell height spans one em, baseline at the ascent.
	ascent := float64(placeholder.Ascent)
	sx := width / 1000 / float64(placeholder.Advance)
	sy := 1 / float64(placeholder.Ascent+placeholder.Descent)
	cell := model.Matrix{sx, 0, 0, -sy, -sx * float64(maskp.X), sy * (float64(maskp.Y) + ascent)}
	m := cell.Multiply(in.gs().TextRenderingMatrix())

	src := image.Rect(maskp.X, maskp.Y, maskp.X+dr.Dx(), maskp.Y+dr.Dy())
	box := transformedBounds(src, m, in.canvas.Bounds())
	if box.Empty() {
		return
	}
	scratch := image.NewAlpha(box)
	draw.ApproxBiLinear.Transform(scratch, affine(m), mask, src, draw.Src, nil)
	composite(in.canvas, scratch, in.gs().Clip, c)
}

// affine converts m to the row-major form x/image/draw expects.
func affine(m model.Matrix) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

// transformedBounds returns the canvas pixels covered by r mapped
// through m.
func transformedBounds(r image.Rectangle, m model.Matrix, canvas image.Rectangle) image.Rectangle {
	box := model.Rect{LLX: float64(r.Min.X), LLY: float64(r.Min.Y), URX: float64(r.Max.X), URY: float64(r.Max.Y)}.Transform(m)
	if !finite([]model.Point{{X: box.LLX, Y: box.LLY}, {X: box.URX, Y: box.URY}}) {
		return image.Rectangle{}
	}
	return clampRect(box.LLX, box.LLY, box.URX, box.URY, canvas)
}

package render

import (
	"image"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/pdfimage"
)

// drawImage paints an image XObject or inline image into the unit square
// of the current CTM. named resolves colour space names of inline images.
// Images that cannot be decoded are skipped.
func (in *interp) drawImage(s *core.Stream, named core.Dict) {
	img, err := pdfimage.FromStream(s, in.doc, named)
	if err != nil {
		in.skipImage(err)
		return
	}
	src, err := img.ToImage()
	if err != nil {
		in.skipImage(err)
		return
	}

	gs := in.gs()
	m := unitSquare(img.Width, img.Height).Multiply(gs.CTM)
	box := transformedBounds(src.Bounds(), m, in.canvas.Bounds())
	if box.Empty() {
		return
	}

	if alpha, ok := src.(*image.Alpha); ok && img.Mask {
		// Stencil masks paint the fill colour where the mask is set
		scratch := image.NewAlpha(box)
		draw.ApproxBiLinear.Transform(scratch, affine(m), alpha, alpha.Bounds(), draw.Src, nil)
		composite(in.canvas, scratch, gs.Clip, deviceColor(gs.FillColor, gs.FillAlpha))
		return
	}

	layer := image.NewRGBA(box)
	draw.ApproxBiLinear.Transform(layer, affine(m), src, src.Bounds(), draw.Src, nil)

	mask := in.softMask(img.SMask, box)
	if gs.FillAlpha < 1 {
		if mask == nil {
			mask = image.NewAlpha(box)
			draw.Draw(mask, box, image.Opaque, image.Point{}, draw.Src)
		}
		scaleMask(mask, gs.FillAlpha)
	}
	if gs.Clip != nil {
		if mask == nil {
			mask = image.NewAlpha(box)
			draw.Draw(mask, box, image.Opaque, image.Point{}, draw.Src)
		}
		intersectMask(mask, gs.Clip)
	}
	if mask == nil {
		draw.Draw(in.canvas, box, layer, box.Min, draw.Over)
		return
	}
	draw.DrawMask(in.canvas, box, layer, box.Min, mask, box.Min, draw.Over)
}

// unitSquare maps image pixels, top row first, onto the unit square.
func unitSquare(w, h int) model.Matrix {
	return model.Matrix{1 / float64(w), 0, 0, -1 / float64(h), 0, 1}
}

// softMask decodes an /SMask into device space over box. Luminosity
// becomes coverage.
func (in *interp) softMask(s *core.Stream, box image.Rectangle) *image.Alpha {
	if s == nil {
		return nil
	}
	img, err := pdfimage.FromStream(s, in.doc, nil)
	if err != nil {
		in.skipImage(err)
		return nil
	}
	src, err := img.ToImage()
	if err != nil {
		in.skipImage(err)
		return nil
	}
	lum := image.NewAlpha(src.Bounds())
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			lum.Pix[lum.PixOffset(x, y)] = uint8((299*r + 587*g + 114*bl) / 1000 >> 8)
		}
	}
	m := unitSquare(img.Width, img.Height).Multiply(in.gs().CTM)
	mask := image.NewAlpha(box)
	draw.ApproxBiLinear.Transform(mask, affine(m), lum, lum.Bounds(), draw.Src, nil)
	return mask
}

func scaleMask(mask *image.Alpha, alpha float64) {
	for i, v := range mask.Pix {
		mask.Pix[i] = uint8(float64(v)*alpha + 0.5)
	}
}

func (in *interp) skipImage(err error) {
	in.unsupported++
	in.log.WithFields(logrus.Fields{"error": err}).Debug("image skipped")
}

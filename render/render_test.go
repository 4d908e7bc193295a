package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/internal/pdftest"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
	green = color.RGBA{0, 255, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
)

func open(t *testing.T, data []byte) *document.Document {
	t.Helper()
	doc, err := document.Open(data)
	require.NoError(t, err)
	return doc
}

func renderBytes(t *testing.T, data []byte, index int, opts ...Option) *Tile {
	t.Helper()
	tile, err := New(open(t, data), opts...).RenderPage(context.Background(), index)
	require.NoError(t, err)
	return tile
}

// setPage replaces the first page's content and adds entries to its
// dictionary. The page keeps the shared font under its own resources.
func setPage(b *pdftest.Builder, l pdftest.Layout, content, resources, extra string) {
	b.SetStream(l.Contents[0], "", []byte(content))
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Resources << /Font << /F1 %s >> %s >> %s >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0]), pdftest.Ref(l.Font), resources, extra))
}

func drawing(t *testing.T, content, resources string, opts ...Option) *Tile {
	t.Helper()
	b, l := pdftest.Pages(1)
	setPage(b, l, content, resources, "")
	return renderBytes(t, b.Bytes(), 0, opts...)
}

// near reports whether every channel is within 16 of want.
func near(got color.RGBA, want color.RGBA) bool {
	d := func(a, b uint8) bool { return int(a)-int(b) < 16 && int(b)-int(a) < 16 }
	return d(got.R, want.R) && d(got.G, want.G) && d(got.B, want.B)
}

func assertPixel(t *testing.T, tile *Tile, x, y int, want color.RGBA) {
	t.Helper()
	got := tile.Image.RGBAAt(x, y)
	assert.Truef(t, near(got, want), "pixel (%d, %d) = %v, want %v", x, y, got, want)
}

func TestPageSize(t *testing.T) {
	data := pdftest.Document(1)
	tile := renderBytes(t, data, 0)
	assert.Equal(t, image.Rect(0, 0, 612, 792), tile.Image.Bounds())
	assert.Equal(t, float64(DefaultDPI), tile.DPI)

	tile = renderBytes(t, data, 0, WithDPI(144))
	assert.Equal(t, image.Rect(0, 0, 1224, 1584), tile.Image.Bounds())
	assert.Equal(t, 144.0, tile.DPI)
}

func TestFilledRectangle(t *testing.T) {
	tile := renderBytes(t, pdftest.Document(1), 0)
	// The square spans x 60..160 and y 100..200 in user space
	assert.Equal(t, color.RGBA{51, 102, 204, 255}, tile.Image.RGBAAt(110, 642))
	assert.Equal(t, white, tile.Image.RGBAAt(10, 10))
	assert.Equal(t, white, tile.Image.RGBAAt(170, 642))
	assert.Equal(t, white, tile.Image.RGBAAt(110, 580))
}

func TestBackground(t *testing.T) {
	gray := color.RGBA{10, 20, 30, 255}
	tile := renderBytes(t, pdftest.Document(1), 0, WithBackground(gray))
	assert.Equal(t, gray, tile.Image.RGBAAt(5, 5))
}

func darkPixels(img *image.RGBA, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y).R < 128 {
				n++
			}
		}
	}
	return n
}

func TestTextPlaceholders(t *testing.T) {
	// Page 1 is shown at 72 700 in 24 point type
	line := image.Rect(72, 66, 200, 96)
	tile := renderBytes(t, pdftest.Document(1), 0)
	assert.Greater(t, darkPixels(tile.Image, line), 20)

	tile = drawing(t, "BT /F1 24 Tf 3 Tr 72 700 Td (Page 1) Tj ET", "")
	assert.Zero(t, darkPixels(tile.Image, line))

	// Advances follow the font widths, so a second string starts after
	// the first one
	tile = drawing(t, "BT /F1 24 Tf 72 700 Td (MMMM) Tj (I) Tj ET", "")
	assert.Greater(t, darkPixels(tile.Image, image.Rect(150, 66, 160, 96)), 0)
	assert.Zero(t, darkPixels(tile.Image, image.Rect(170, 66, 300, 96)))
}

func TestRotation(t *testing.T) {
	for _, tt := range []struct {
		rotate int
		size   image.Rectangle
		x, y   int
	}{
		{90, image.Rect(0, 0, 792, 612), 150, 110},
		{180, image.Rect(0, 0, 612, 792), 502, 150},
		{270, image.Rect(0, 0, 792, 612), 642, 502},
		{-90, image.Rect(0, 0, 792, 612), 642, 502},
	} {
		t.Run(fmt.Sprint(tt.rotate), func(t *testing.T) {
			b, l := pdftest.Pages(1)
			b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Rotate %d >>",
				pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0]), tt.rotate))
			tile := renderBytes(t, b.Bytes(), 0)
			assert.Equal(t, tt.size, tile.Image.Bounds())
			assert.Equal(t, color.RGBA{51, 102, 204, 255}, tile.Image.RGBAAt(tt.x, tt.y))
		})
	}
}

func TestCropBoxSetsCanvas(t *testing.T) {
	b, l := pdftest.Pages(1)
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /CropBox [50 90 250 290] >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0])))
	tile := renderBytes(t, b.Bytes(), 0)
	assert.Equal(t, image.Rect(0, 0, 200, 200), tile.Image.Bounds())
	// User (110, 150) is 60 right of and 140 below the crop box top left
	assert.Equal(t, color.RGBA{51, 102, 204, 255}, tile.Image.RGBAAt(60, 140))
	assert.Equal(t, white, tile.Image.RGBAAt(5, 195))
}

func TestMaxPixels(t *testing.T) {
	tile := renderBytes(t, pdftest.Document(1), 0, WithDPI(300), WithMaxPixels(10000))
	bounds := tile.Image.Bounds()
	assert.LessOrEqual(t, bounds.Dx()*bounds.Dy(), 10000)
	assert.Less(t, tile.DPI, 72.0)
	assert.InDelta(t, 612.0/792.0, float64(bounds.Dx())/float64(bounds.Dy()), 0.05)

	b, l := pdftest.Pages(1)
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /MediaBox [0 0 1000000000 1000000000] >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0])))
	tile = renderBytes(t, b.Bytes(), 0, WithMaxPixels(1<<16))
	assert.LessOrEqual(t, tile.Image.Bounds().Dx()*tile.Image.Bounds().Dy(), 1<<16)
}

func TestClipping(t *testing.T) {
	tile := drawing(t, "q 100 100 50 50 re W n 0 0 1 rg 0 0 612 792 re f Q 0 1 0 rg 0 0 10 10 re f", "")
	assertPixel(t, tile, 125, 667, blue)
	assertPixel(t, tile, 300, 300, white)
	assertPixel(t, tile, 99, 667, white)
	// The clip ends with Q
	assertPixel(t, tile, 5, 787, green)
}

func TestStrokeAndCurves(t *testing.T) {
	tile := drawing(t, "1 0 0 RG 10 w 100 400 m 300 400 l S 0 0 0 rg 300 300 m 400 300 400 400 300 400 c h f", "")
	assertPixel(t, tile, 200, 392, red)
	assertPixel(t, tile, 200, 380, white)
	// Inside the bulge of the curve and outside its chord
	assertPixel(t, tile, 330, 442, color.RGBA{0, 0, 0, 255})
	assertPixel(t, tile, 395, 442, white)
}

func TestConstantAlpha(t *testing.T) {
	tile := drawing(t, "/Half gs 0 0 0 rg 0 0 100 100 re f", "/ExtGState << /Half << /ca 0.5 >> >>")
	got := tile.Image.RGBAAt(50, 742)
	assert.InDelta(t, 128, int(got.R), 2)
}

func TestImageXObject(t *testing.T) {
	b, l := pdftest.Pages(1)
	im := b.AddStream("/Type /XObject /Subtype /Image /Width 4 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8",
		[]byte{255, 0, 0, 255, 0, 0, 0, 0, 255, 0, 0, 255})
	mask := b.AddStream("/Type /XObject /Subtype /Image /Width 8 /Height 1 /ImageMask true", []byte{0x00})
	setPage(b, l, "q 100 0 0 50 200 300 cm /Im0 Do Q q 0 1 0 rg 80 0 0 10 400 100 cm /Mk Do Q",
		fmt.Sprintf("/XObject << /Im0 %s /Mk %s >>", pdftest.Ref(im), pdftest.Ref(mask)), "")

	tile := renderBytes(t, b.Bytes(), 0)
	assertPixel(t, tile, 230, 467, red)
	assertPixel(t, tile, 270, 467, blue)
	assertPixel(t, tile, 195, 467, white)
	assertPixel(t, tile, 440, 687, green)
	assert.Zero(t, tile.Unsupported)
}

func TestInlineImage(t *testing.T) {
	tile := drawing(t, "q 10 0 0 10 400 400 cm BI /W 1 /H 1 /CS /G /BPC 8 ID \x80 EI Q", "")
	got := tile.Image.RGBAAt(405, 387)
	assert.InDelta(t, 128, int(got.R), 8)
	assert.InDelta(t, 128, int(got.B), 8)
}

func TestUndecodableImageIsSkipped(t *testing.T) {
	b, l := pdftest.Pages(1)
	im := b.AddStream("/Subtype /Image /Width 2 /Height 2 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /JBIG2Decode", []byte("junk"))
	setPage(b, l, "q 100 0 0 100 0 0 cm /Im0 Do Q 0 0 1 rg 0 0 10 10 re f", fmt.Sprintf("/XObject << /Im0 %s >>", pdftest.Ref(im)), "")
	tile := renderBytes(t, b.Bytes(), 0)
	assert.Equal(t, 1, tile.Unsupported)
	assertPixel(t, tile, 5, 787, blue)
}

func TestFormXObject(t *testing.T) {
	b, l := pdftest.Pages(1)
	form := b.AddStream("/Type /XObject /Subtype /Form /BBox [0 0 50 50] /Matrix [1 0 0 1 100 100]",
		[]byte("1 0 0 rg 0 0 100 100 re f"))
	setPage(b, l, "/Fm0 Do", fmt.Sprintf("/XObject << /Fm0 %s >>", pdftest.Ref(form)), "")

	tile := renderBytes(t, b.Bytes(), 0)
	assertPixel(t, tile, 125, 667, red)
	assertPixel(t, tile, 175, 617, white)
}

func TestRecursiveFormTerminates(t *testing.T) {
	b, l := pdftest.Pages(1)
	form := b.Reserve()
	b.SetStream(form, fmt.Sprintf("/Subtype /Form /BBox [0 0 612 792] /Resources << /XObject << /Fm0 %s >> >>", pdftest.Ref(form)),
		[]byte("/Fm0 Do"))
	setPage(b, l, "/Fm0 Do 0 1 0 rg 0 0 10 10 re f", fmt.Sprintf("/XObject << /Fm0 %s >>", pdftest.Ref(form)), "")

	tile := renderBytes(t, b.Bytes(), 0)
	assert.Equal(t, 1, tile.Unsupported)
	assertPixel(t, tile, 5, 787, green)
}

func TestDeepFormChainIsBounded(t *testing.T) {
	b, l := pdftest.Pages(1)
	next := b.AddStream("/Subtype /Form /BBox [0 0 612 792]", []byte("0 0 1 rg 0 0 10 10 re f"))
	for i := 0; i < MaxFormDepth+4; i++ {
		next = b.AddStream(fmt.Sprintf("/Subtype /Form /BBox [0 0 612 792] /Resources << /XObject << /X %s >> >>", pdftest.Ref(next)),
			[]byte("/X Do"))
	}
	setPage(b, l, "/X Do", fmt.Sprintf("/XObject << /X %s >>", pdftest.Ref(next)), "")

	tile := renderBytes(t, b.Bytes(), 0)
	assert.Equal(t, 1, tile.Unsupported)
	assertPixel(t, tile, 5, 787, white)
}

func annotatedPage(t *testing.T, flags string) []byte {
	t.Helper()
	b, l := pdftest.Pages(1)
	ap := b.AddStream("/Type /XObject /Subtype /Form /BBox [0 0 10 10]", []byte("1 0 0 rg 0 0 10 10 re f"))
	annot := b.Add(fmt.Sprintf("<< /Type /Annot /Subtype /Stamp /Rect [300 300 320 320] %s /AP << /N %s >> >>", flags, pdftest.Ref(ap)))
	setPage(b, l, "", "", fmt.Sprintf("/Annots [%s]", pdftest.Ref(annot)))
	return b.Bytes()
}

func TestAnnotationAppearances(t *testing.T) {
	tile := renderBytes(t, annotatedPage(t, ""), 0)
	assertPixel(t, tile, 310, 482, red)
	assertPixel(t, tile, 318, 474, red)
	assertPixel(t, tile, 330, 482, white)

	tile = renderBytes(t, annotatedPage(t, ""), 0, WithAnnotations(false))
	assertPixel(t, tile, 310, 482, white)

	tile = renderBytes(t, annotatedPage(t, "/F 2"), 0)
	assertPixel(t, tile, 310, 482, white)
}

func TestAppearanceStates(t *testing.T) {
	b, l := pdftest.Pages(1)
	on := b.AddStream("/Subtype /Form /BBox [0 0 10 10]", []byte("0 1 0 rg 0 0 10 10 re f"))
	off := b.AddStream("/Subtype /Form /BBox [0 0 10 10]", []byte("1 0 0 rg 0 0 10 10 re f"))
	annot := b.Add(fmt.Sprintf("<< /Subtype /Widget /Rect [300 300 320 320] /AS /Yes /AP << /N << /Yes %s /Off %s >> >> >>",
		pdftest.Ref(on), pdftest.Ref(off)))
	setPage(b, l, "", "", fmt.Sprintf("/Annots [%s]", pdftest.Ref(annot)))

	tile := renderBytes(t, b.Bytes(), 0)
	assertPixel(t, tile, 310, 482, green)
}

func TestActionsAreCountedNotRun(t *testing.T) {
	b, l := pdftest.Pages(1)
	js := b.Add("<< /S /JavaScript /JS (app.alert\\(1\\)) >>")
	l.SetCatalog(b, "/OpenAction "+pdftest.Ref(js))
	link := b.Add("<< /Subtype /Link /Rect [0 0 10 10] /A << /S /URI /URI (https://example.com/) >> >>")
	setPage(b, l, string(pdftest.PageContent(0)), "", fmt.Sprintf("/AA << /O %s >> /Annots [%s]", pdftest.Ref(js), pdftest.Ref(link)))

	tile := renderBytes(t, b.Bytes(), 0)
	assert.Equal(t, 3, tile.Ignored)
	assert.Equal(t, color.RGBA{51, 102, 204, 255}, tile.Image.RGBAAt(110, 642))
}

func TestMalformedContentRendersPrefix(t *testing.T) {
	tile := drawing(t, "0 0 1 rg 0 0 10 10 re f <<< ) ]] 1 0 0 rg 0 0 612 792 re f", "")
	assertPixel(t, tile, 5, 787, blue)
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	r := New(open(t, pdftest.Document(2)))

	_, err := r.RenderPage(ctx, 2)
	assert.ErrorIs(t, err, ErrPageRange)
	_, err = r.RenderPage(ctx, -1)
	assert.ErrorIs(t, err, ErrPageRange)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = r.RenderPage(canceled, 0)
	assert.ErrorIs(t, err, context.Canceled)

	b, l := pdftest.Pages(1)
	b.Trailer(fmt.Sprintf("/Root %s /Encrypt << /Filter /Standard >>", pdftest.Ref(l.Catalog)))
	_, err = New(open(t, b.Bytes())).RenderPage(ctx, 0)
	assert.ErrorIs(t, err, core.ErrEncrypted)
}

func TestTileIterator(t *testing.T) {
	ctx := context.Background()
	r := New(open(t, pdftest.Document(3)), WithDPI(36))

	it := r.Tiles()
	assert.Equal(t, 3, it.Len())
	var seen []int
	for it.Next(ctx) {
		seen = append(seen, it.Tile().Page)
		assert.Equal(t, image.Rect(0, 0, 306, 396), it.Tile().Image.Bounds())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Nil(t, it.Tile())

	it.Reset()
	require.True(t, it.Next(ctx))
	assert.Equal(t, 0, it.Tile().Page)

	it = r.Tiles(2, 0)
	require.True(t, it.Next(ctx))
	assert.Equal(t, 2, it.Tile().Page)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, it.Next(canceled))
	assert.ErrorIs(t, it.Err(), context.Canceled)

	it = r.Tiles(0, 7)
	assert.True(t, it.Next(ctx))
	assert.False(t, it.Next(ctx))
	assert.ErrorIs(t, it.Err(), ErrPageRange)
}

func TestEncodePNG(t *testing.T) {
	tile := renderBytes(t, pdftest.Document(1), 0, WithDPI(36))
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, tile))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, tile.Image.Bounds(), img.Bounds())
}

func TestRenderingIsDeterministic(t *testing.T) {
	data := pdftest.Document(2)
	a := renderBytes(t, data, 1)
	b := renderBytes(t, data, 1)
	assert.Equal(t, a.Image.Pix, b.Image.Pix)
}

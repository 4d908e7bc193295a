package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/font"
	"github.com/tsawler/safepdf/internal/pdftest"
	"github.com/tsawler/safepdf/writer"
)

// gradient returns the samples of an n by n gray image.
func gradient(n int) []byte {
	data := make([]byte, 0, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			data = append(data, byte((x+y)%256))
		}
	}
	return data
}

func grayImage(b *pdftest.Builder, n int) int {
	return b.AddStream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", n, n),
		gradient(n))
}

// imagePage builds a one-page document drawing image im with content.
func imagePage(b *pdftest.Builder, l pdftest.Layout, im int, content string) {
	b.SetStream(l.Contents[0], "", []byte(content))
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Resources << /XObject << /Im1 %s >> >> >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0]), pdftest.Ref(im)))
}

func reduce(t *testing.T, data []byte, level Level) *document.Document {
	t.Helper()
	out, err := Reduce(context.Background(), open(t, data), level)
	require.NoError(t, err)
	return out
}

// placedImage returns the first page's /Im1.
func placedImage(t *testing.T, doc *document.Document) *core.Stream {
	t.Helper()
	page, err := doc.Page(0)
	require.NoError(t, err)
	xobjects, _ := doc.Resolve(page.Resources()["XObject"]).(core.Dict)
	s, ok := doc.Resolve(xobjects["Im1"]).(*core.Stream)
	require.True(t, ok, "no /Im1 on the page")
	return s
}

func size(s *core.Stream) (int64, int64) {
	w, _ := s.Dict.GetInt("Width")
	h, _ := s.Dict.GetInt("Height")
	return int64(w), int64(h)
}

func TestReduceDownsamplesToLevel(t *testing.T) {
	for level, want := range map[Level]int64{Good: 300, Balanced: 150, Extreme: 96} {
		t.Run(level.String(), func(t *testing.T) {
			b, l := pdftest.Pages(1)
			imagePage(b, l, grayImage(b, 400), "q 72 0 0 72 100 100 cm /Im1 Do Q")
			s := placedImage(t, reduce(t, b.Bytes(), level))

			w, h := size(s)
			assert.Equal(t, want, w)
			assert.Equal(t, want, h)
			assert.Equal(t, core.Name("FlateDecode"), s.Dict["Filter"])
			assert.Equal(t, core.Name("DeviceGray"), s.Dict["ColorSpace"])
			data, err := s.Decode()
			require.NoError(t, err)
			assert.Len(t, data, int(want*want))
		})
	}
}

func TestReduceUsesLargestPlacement(t *testing.T) {
	b, l := pdftest.Pages(1)
	imagePage(b, l, grayImage(b, 400), "q 72 0 0 72 0 0 cm /Im1 Do Q q 144 0 0 144 200 200 cm /Im1 Do Q")
	w, _ := size(placedImage(t, reduce(t, b.Bytes(), Balanced)))
	assert.Equal(t, int64(300), w)
}

func TestReduceLeavesLowResolutionImages(t *testing.T) {
	b, l := pdftest.Pages(1)
	imagePage(b, l, grayImage(b, 100), "q 72 0 0 72 100 100 cm /Im1 Do Q")
	s := placedImage(t, reduce(t, b.Bytes(), Good))
	w, h := size(s)
	assert.Equal(t, int64(100), w)
	assert.Equal(t, int64(100), h)
	data, err := s.Decode()
	require.NoError(t, err)
	assert.Equal(t, gradient(100), data)
}

func TestReduceKeepsJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 400; x++ {
			src.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}))

	b, l := pdftest.Pages(1)
	im := b.AddStream("/Type /XObject /Subtype /Image /Width 400 /Height 400 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode", buf.Bytes())
	imagePage(b, l, im, "q 72 0 0 72 100 100 cm /Im1 Do Q")

	s := placedImage(t, reduce(t, b.Bytes(), Balanced))
	w, _ := size(s)
	assert.Equal(t, int64(150), w)
	assert.Equal(t, core.Name("DCTDecode"), s.Dict["Filter"])
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(s.Data))
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Width)
}

func TestReduceStripsMetadata(t *testing.T) {
	b, l := pdftest.Pages(1)
	xmp := b.AddStream("/Type /Metadata /Subtype /XML", []byte("<x:xmpmeta/>"))
	thumb := b.AddStream("/Width 1 /Height 1 /ColorSpace /DeviceGray /BitsPerComponent 8", []byte{0})
	l.SetCatalog(b, "/Metadata "+pdftest.Ref(xmp))
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Thumb %s /PieceInfo << /App << /Private true >> >> >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0]), pdftest.Ref(thumb)))
	info := b.Add("<< /Title (Plan) /Author (Ops) /Producer (tool) /Creator (tool) >>")
	b.Trailer(fmt.Sprintf("/Root %s /Info %s", pdftest.Ref(l.Catalog), pdftest.Ref(info)))
	data := b.Bytes()

	tests := []struct {
		level Level
		info  []string
	}{
		{Good, []string{"Author", "Creator", "Producer", "Title"}},
		{Balanced, []string{"Author", "Title"}},
		{Extreme, nil},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			out := reduce(t, data, tt.level)
			catalog, err := out.Catalog()
			require.NoError(t, err)
			assert.False(t, catalog.Has("Metadata"))
			page, err := out.Page(0)
			require.NoError(t, err)
			assert.False(t, page.Dict.Has("Thumb"))
			assert.False(t, page.Dict.Has("PieceInfo"))
			// catalog, page tree, page, contents and font, plus the information dictionary
			objects := 5
			if tt.info != nil {
				objects++
			}
			assert.Len(t, out.Refs(), objects)

			d, ok := out.Resolve(out.Trailer()["Info"]).(core.Dict)
			if tt.info == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.info, d.Keys())
		})
	}
}

func TestReduceDropsUnreferencedObjects(t *testing.T) {
	b, _ := pdftest.Pages(2)
	b.Add("<< /Orphan true >>")
	b.AddStream("", []byte("unused"))
	out := reduce(t, b.Bytes(), Good)

	refs := out.Refs()
	// catalog, page tree, two pages, two contents and the font
	require.Len(t, refs, 7)
	for i, ref := range refs {
		assert.Equal(t, i+1, ref.Number)
		obj, _ := out.Lookup(ref.Number)
		if d, ok := obj.(core.Dict); ok {
			assert.False(t, d.Has("Orphan"))
		}
	}
	assert.Equal(t, 2, out.PageCount())
	assert.Equal(t, pdftest.PageContent(1), content(t, out, 1))
}

func TestReduceCompressesStreams(t *testing.T) {
	b, l := pdftest.Pages(1)
	long := bytes.Repeat(pdftest.PageContent(0), 20)
	b.SetStream(l.Contents[0], "", long)
	out := reduce(t, b.Bytes(), Good)

	page, err := out.Page(0)
	require.NoError(t, err)
	streams := page.Contents()
	require.Len(t, streams, 1)
	assert.Equal(t, core.Name("FlateDecode"), streams[0].Dict["Filter"])
	assert.Less(t, len(streams[0].Data), len(long))
	assert.Equal(t, long, content(t, out, 0))
}

// fontPage builds a one-page document showing text in an embedded Go
// Regular font. It returns the program's object number.
func fontPage(b *pdftest.Builder, l pdftest.Layout, text string) (program, fontNum int) {
	program = b.AddStream(fmt.Sprintf("/Length1 %d", len(goregular.TTF)), goregular.TTF)
	desc := b.Add(fmt.Sprintf("<< /Type /FontDescriptor /FontName /GoRegular /Flags 32 /FontBBox [0 -200 1000 900] /ItalicAngle 0 /Ascent 900 /Descent -200 /CapHeight 700 /StemV 80 /FontFile2 %s >>",
		pdftest.Ref(program)))
	fontNum = b.Add(fmt.Sprintf("<< /Type /Font /Subtype /TrueType /BaseFont /GoRegular /Encoding /WinAnsiEncoding /FontDescriptor %s >>",
		pdftest.Ref(desc)))
	b.SetStream(l.Contents[0], "", []byte(fmt.Sprintf("BT /F2 24 Tf 72 700 Td (%s) Tj ET", text)))
	b.Set(l.Page[0], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Resources << /Font << /F2 %s >> >> >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[0]), pdftest.Ref(fontNum)))
	return program, fontNum
}

// fontProgram returns the decoded /FontFile2 of the first page's /F2.
func fontProgram(t *testing.T, doc *document.Document) []byte {
	t.Helper()
	page, err := doc.Page(0)
	require.NoError(t, err)
	fonts, _ := doc.Resolve(page.Resources()["Font"]).(core.Dict)
	dict, ok := doc.Resolve(fonts["F2"]).(core.Dict)
	require.True(t, ok)
	s, ok := font.Load(dict, doc).Program(doc)
	require.True(t, ok)
	data, err := s.Decode()
	require.NoError(t, err)
	if n, ok := s.Dict.GetInt("Length1"); ok {
		assert.Equal(t, len(data), int(n))
	}
	return data
}

func TestReduceSubsetsTrueType(t *testing.T) {
	b, l := pdftest.Pages(1)
	fontPage(b, l, "Hello")
	out := reduce(t, b.Bytes(), Good)

	data := fontProgram(t, out)
	assert.Less(t, len(data), len(goregular.TTF))
	tt, err := font.ParseTrueType(data)
	require.NoError(t, err)
	orig, err := font.ParseTrueType(goregular.TTF)
	require.NoError(t, err)
	assert.Equal(t, orig.NumGlyphs(), tt.NumGlyphs())
	gid, ok := tt.Lookup(3, 1, 'H')
	require.True(t, ok)
	assert.NotZero(t, gid)
}

func TestReduceKeepsFormFonts(t *testing.T) {
	b, l := pdftest.Pages(1)
	_, fontNum := fontPage(b, l, "Hello")
	l.SetCatalog(b, fmt.Sprintf("/AcroForm << /Fields [] /DR << /Font << /Helv %s >> >> >>", pdftest.Ref(fontNum)))
	out := reduce(t, b.Bytes(), Good)
	assert.Equal(t, goregular.TTF, fontProgram(t, out))
}

func TestReduceIsIdempotent(t *testing.T) {
	b, l := pdftest.Pages(2)
	fontPage(b, l, "Idempotent")
	im := grayImage(b, 400)
	b.SetStream(l.Contents[1], "", []byte("q 72 0 0 72 100 100 cm /Im1 Do Q"))
	b.Set(l.Page[1], fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s /Resources << /XObject << /Im1 %s >> >> >>",
		pdftest.Ref(l.Pages), pdftest.Ref(l.Contents[1]), pdftest.Ref(im)))
	info := b.Add("<< /Title (Same) /Producer (x) >>")
	b.Trailer(fmt.Sprintf("/Root %s /Info %s", pdftest.Ref(l.Catalog), pdftest.Ref(info)))

	for _, level := range []Level{Good, Balanced} {
		t.Run(level.String(), func(t *testing.T) {
			ctx := context.Background()
			first, err := writer.Write(ctx, reduce(t, b.Bytes(), level), level.WriterOptions()...)
			require.NoError(t, err)
			second, err := writer.Write(ctx, reduce(t, first, level), level.WriterOptions()...)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestReduceErrors(t *testing.T) {
	b, l := pdftest.Pages(1)
	b.Trailer(fmt.Sprintf("/Root %s /Encrypt << /Filter /Standard >>", pdftest.Ref(l.Catalog)))
	_, err := Reduce(context.Background(), open(t, b.Bytes()), Good)
	assert.ErrorIs(t, err, core.ErrEncrypted)

	doc := open(t, pdftest.Document(1))
	_, err = Reduce(context.Background(), doc, Level(7))
	assertTransformError(t, err, "reduce")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Reduce(ctx, doc, Good)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, 300.0, Good.DPI())
	assert.Equal(t, 150.0, Balanced.DPI())
	assert.Equal(t, 96.0, Extreme.DPI())
	assert.Empty(t, Good.WriterOptions())
	assert.Len(t, Extreme.WriterOptions(), 1)
	assert.Equal(t, "Level(9)", Level(9).String())
}

package safepdf

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/internal/pdftest"
	"github.com/tsawler/safepdf/model"
	"github.com/tsawler/safepdf/risk"
	"github.com/tsawler/safepdf/transform"
)

func TestScan(t *testing.T) {
	ctx := context.Background()
	report, err := Scan(ctx, pdftest.Document(2))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Score)

	b, l := pdftest.Pages(1)
	l.SetCatalog(b, "/OpenAction << /S /JavaScript /JS (app.alert\\(1\\)) >>")
	report, err = Scan(ctx, b.Bytes())
	require.NoError(t, err)
	assert.True(t, report.Has(risk.JavaScript))
	assert.Equal(t, risk.High, report.Highest())
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	tile, err := Preview(ctx, pdftest.Document(2), 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 612, 792), tile.Image.Bounds())
	assert.Equal(t, 1, tile.Page)

	tile, err = Preview(ctx, pdftest.Document(1), 0, WithDPI(36))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 306, 396), tile.Image.Bounds())

	_, err = Preview(ctx, pdftest.Document(1), 4)
	assert.Error(t, err)
}

func TestMergeAndSplit(t *testing.T) {
	ctx := context.Background()
	merged, err := Merge(ctx, [][]byte{pdftest.Document(2), pdftest.Document(3)})
	require.NoError(t, err)
	doc, err := Open(merged)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.PageCount())
	assert.False(t, doc.Repaired())

	parts, err := Split(ctx, merged, []transform.PageRange{{First: 0, Last: 1}, {First: 4, Last: 4}})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	for i, want := range []int{2, 1} {
		part, err := Open(parts[i])
		require.NoError(t, err)
		assert.Equal(t, want, part.PageCount())
	}

	_, err = Merge(ctx, [][]byte{pdftest.Document(1), []byte("not a pdf")})
	assert.ErrorContains(t, err, "input 1")
}

func TestPageEdits(t *testing.T) {
	ctx := context.Background()
	data := pdftest.Document(2)

	out, err := Crop(ctx, data, model.NewRect(0, 0, 300, 300), []int{1})
	require.NoError(t, err)
	doc := Must(Open(out))
	page := Must(doc.Page(1))
	assert.Equal(t, 300.0, page.CropBox().Width())
	assert.Equal(t, 612.0, Must(doc.Page(0)).CropBox().Width())

	out, err = Trim(ctx, data, transform.Margins{Left: 12, Right: 12}, nil)
	require.NoError(t, err)
	doc = Must(Open(out))
	assert.Equal(t, 588.0, Must(doc.Page(0)).CropBox().Width())
	assert.Equal(t, 588.0, Must(doc.Page(1)).CropBox().Width())

	out, err = Rotate(ctx, data, 90, nil)
	require.NoError(t, err)
	doc = Must(Open(out))
	assert.Equal(t, 90, Must(doc.Page(1)).Rotate())

	tile, err := Preview(ctx, out, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 792, 612), tile.Image.Bounds())
}

func TestReduce(t *testing.T) {
	ctx := context.Background()
	once, err := Reduce(ctx, pdftest.Document(3), transform.Good)
	require.NoError(t, err)
	twice, err := Reduce(ctx, once, transform.Good)
	require.NoError(t, err)
	assert.Equal(t, once, twice)

	small, err := Reduce(ctx, pdftest.Document(3), transform.Extreme)
	require.NoError(t, err)
	doc := Must(Open(small))
	assert.Equal(t, 3, doc.PageCount())
	_, hasInfo := doc.Trailer()["Info"]
	assert.False(t, hasInfo)
}

func TestCategory(t *testing.T) {
	ctx := context.Background()
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	encrypted, l := pdftest.Pages(1)
	encrypted.Trailer(fmt.Sprintf("/Root %s /Encrypt << /Filter /Standard >>", pdftest.Ref(l.Catalog)))

	errOf := func(_ []byte, err error) error { return err }
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, Unknown},
		{"other", fmt.Errorf("boom"), Unknown},
		{"garbage", errOf(Reduce(ctx, []byte("%PDF-1.4\nnothing here\n"), transform.Good)), UnresolvableXref},
		{"no trailer", errOf(Reduce(ctx, []byte("%PDF-1.4\n1 0 obj << /Type /Font >> endobj\n"), transform.Good)), MissingTrailer},
		{"encrypted", errOf(Reduce(ctx, encrypted.Bytes(), transform.Good)), Encrypted},
		{"bad rotation", errOf(Rotate(ctx, pdftest.Document(1), 45, nil)), TransformationError},
		{"canceled", errOf(Merge(canceled, [][]byte{pdftest.Document(2)})), Canceled},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), Canceled},
		{"token", fmt.Errorf("object 4: %w", &core.MalformedTokenError{Offset: 9, Reason: "bad"}), MalformedToken},
		{"filter", fmt.Errorf("image: %w", &core.UnsupportedFilterError{Filter: "JBIG2Decode"}), UnsupportedFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Category(tt.err), "error: %v", tt.err)
		})
	}
	assert.Equal(t, "TransformationError", TransformationError.String())
}

func TestMust(t *testing.T) {
	assert.Equal(t, 3, Must(3, nil))
	assert.Panics(t, func() { Must(Open([]byte("junk"))) })
}

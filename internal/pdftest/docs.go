package pdftest

import (
	"fmt"
	"strings"
)

// Layout records the object numbers of a document produced by Pages.
type Layout struct {
	Catalog  int
	Pages    int
	Font     int
	Page     []int
	Contents []int
}

// PageContent returns the content stream drawn on page i by Pages: a
// filled square whose position depends on i, and a line of text.
func PageContent(i int) []byte {
	return []byte(fmt.Sprintf("q 0.2 0.4 0.8 rg %d 100 100 100 re f Q\nBT /F1 24 Tf 72 700 Td (Page %d) Tj ET", 60+40*i, i+1))
}

// Pages starts a builder holding an n-page document. Resources and
// MediaBox live on the page tree root so pages inherit them. Callers may
// add objects and amend the catalog before rendering.
func Pages(n int) (*Builder, Layout) {
	b := New()
	var l Layout
	l.Catalog = b.Reserve()
	l.Pages = b.Reserve()
	l.Font = b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i := 0; i < n; i++ {
		c := b.AddStream("", PageContent(i))
		p := b.Add(fmt.Sprintf("<< /Type /Page /Parent %s /Contents %s >>", Ref(l.Pages), Ref(c)))
		l.Contents = append(l.Contents, c)
		l.Page = append(l.Page, p)
	}

	kids := make([]string, len(l.Page))
	for i, p := range l.Page {
		kids[i] = Ref(p)
	}
	b.Set(l.Pages, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] /Resources << /Font << /F1 %s >> >> >>",
		strings.Join(kids, " "), n, Ref(l.Font)))
	b.Set(l.Catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s >>", Ref(l.Pages)))
	b.Trailer("/Root " + Ref(l.Catalog))
	return b, l
}

// Document renders an n-page document with a classic xref table.
func Document(n int) []byte {
	b, _ := Pages(n)
	return b.Bytes()
}

// SetCatalog replaces the catalog with extra entries appended.
func (l Layout) SetCatalog(b *Builder, extra string) {
	b.Set(l.Catalog, fmt.Sprintf("<< /Type /Catalog /Pages %s %s >>", Ref(l.Pages), extra))
}

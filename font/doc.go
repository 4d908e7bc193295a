// Package font reads the font dictionaries of a PDF far enough to lay out
// shown strings and to shrink embedded TrueType programs.
//
// # Loading
//
// [Load] never fails. Missing or damaged entries fall back to defaults so
// a preview can always advance the text position:
//
//	f := font.Load(fontDict, doc)
//	for _, g := range f.Decode(shown) {
//	    // g.Width is in thousandths of text space units
//	}
//
// Simple fonts take widths from /Widths and /FirstChar, then the Standard
// 14 metrics, then /MissingWidth. Type0 fonts take widths from the
// descendant's /W and /DW entries.
//
// # Text
//
// Codes map to Unicode through the ToUnicode CMap when present, otherwise
// through the font encoding: a base encoding (WinAnsi, MacRoman, Standard)
// decoded with golang.org/x/text/encoding/charmap plus /Differences.
//
// # Subsetting
//
// [ParseTrueType] reads a /FontFile2 program and [TrueType.Subset] empties
// every glyph the document never shows. Glyph numbers are kept, so the
// cmap, hmtx and the PDF widths stay valid.
package font

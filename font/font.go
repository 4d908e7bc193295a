package font

import (
	"github.com/tsawler/safepdf/core"
)

// Resolver resolves indirect references. Dangling references resolve to
// core.Null{}.
type Resolver interface {
	Resolve(obj core.Object) core.Object
}

// defaultWidth is used when a font gives no metrics for a code at all.
const defaultWidth = 500.0

// Font is a PDF font dictionary reduced to what previews and the reducer
// need: how to split a string into codes, each code's advance width and
// the character it most likely draws. Loading never fails; damaged entries
// fall back to defaults.
type Font struct {
	BaseFont string
	Subtype  string

	// Descriptor is the /FontDescriptor of the font, or of the descendant
	// CIDFont for Type0 fonts.
	Descriptor core.Dict

	// Descendant is the CIDFont dictionary of a Type0 font.
	Descendant core.Dict

	encoding  *Encoding
	toUnicode *CMap

	// Simple fonts
	firstChar    int
	widths       []float64
	hasWidths    bool
	missingWidth float64
	standard     string
	scale        float64

	// Composite fonts
	cmap       *CMap
	identity   bool
	cidWidths  []WidthRange
	cidDefault float64
}

// WidthRange is one run of CID widths from a /W array. A range either
// lists one width per CID or gives Width to every CID from Start to End.
type WidthRange struct {
	Start, End int
	Width      float64
	Widths     []float64
}

// Glyph is one character code taken from a shown string.
type Glyph struct {
	Code  uint32
	Bytes int
	// Width is the horizontal advance in thousandths of text space units.
	Width float64
	// Text is the Unicode text for the code, empty if unknown.
	Text string
	// Space is set for the single-byte code 32, which receives word spacing.
	Space bool
}

// Load builds a Font from a font dictionary.
func Load(dict core.Dict, r Resolver) *Font {
	f := &Font{scale: 1, cidDefault: 1000}
	if dict == nil {
		f.encoding = BaseEncoding("WinAnsiEncoding")
		f.standard = "Helvetica"
		return f
	}
	name, _ := dict.GetName("BaseFont")
	subtype, _ := dict.GetName("Subtype")
	f.BaseFont = string(name)
	f.Subtype = string(subtype)

	if s, ok := r.Resolve(dict["ToUnicode"]).(*core.Stream); ok {
		if cm, err := ParseCMapStream(s); err == nil {
			f.toUnicode = cm
		}
	}

	if f.Subtype == "Type0" {
		f.loadComposite(dict, r)
		return f
	}
	f.loadSimple(dict, r)
	return f
}

func (f *Font) loadSimple(dict core.Dict, r Resolver) {
	f.Descriptor, _ = r.Resolve(dict["FontDescriptor"]).(core.Dict)
	f.standard = StandardName(f.BaseFont)

	base := "StandardEncoding"
	if f.Subtype == "TrueType" {
		base = "WinAnsiEncoding"
	}
	if f.standard == "Symbol" || f.standard == "ZapfDingbats" {
		base = f.standard
	}
	var diffs core.Array
	switch enc := r.Resolve(dict["Encoding"]).(type) {
	case core.Name:
		base = string(enc)
	case core.Dict:
		if n, ok := enc.GetName("BaseEncoding"); ok {
			base = string(n)
		}
		diffs, _ = r.Resolve(enc["Differences"]).(core.Array)
	}
	f.encoding = BaseEncoding(base)
	if diffs != nil {
		f.encoding.ApplyDifferences(diffs)
	}

	if fc, ok := core.Number(r.Resolve(dict["FirstChar"])); ok {
		f.firstChar = int(fc)
	}
	if arr, ok := r.Resolve(dict["Widths"]).(core.Array); ok {
		f.hasWidths = true
		f.widths = make([]float64, len(arr))
		for i, w := range arr {
			f.widths[i], _ = core.Number(r.Resolve(w))
		}
	}
	if f.Descriptor != nil {
		f.missingWidth, _ = core.Number(r.Resolve(f.Descriptor["MissingWidth"]))
	}

	if f.Subtype == "Type3" {
		// Type3 widths are in glyph space
		if m, ok := r.Resolve(dict["FontMatrix"]).(core.Array); ok {
			if a, ok := core.Number(r.Resolve(m.Get(0))); ok && a != 0 {
				f.scale = a * 1000
			}
		} else {
			f.scale = 1
		}
	}
	if !f.hasWidths && f.standard == "" {
		// Non-embedded fonts without metrics render with Helvetica widths
		f.standard = "Helvetica"
	}
}

func (f *Font) loadComposite(dict core.Dict, r Resolver) {
	switch enc := r.Resolve(dict["Encoding"]).(type) {
	case core.Name:
		f.identity = enc == "Identity-H" || enc == "Identity-V"
	case *core.Stream:
		if cm, err := ParseCMapStream(enc); err == nil {
			f.cmap = cm
		}
	}
	if !f.identity && f.cmap == nil {
		// Predefined CJK CMaps are not bundled; two-byte identity is the
		// usual layout and keeps widths lined up with most producers
		f.identity = true
	}

	if desc, ok := r.Resolve(dict["DescendantFonts"]).(core.Array); ok && len(desc) > 0 {
		f.Descendant, _ = r.Resolve(desc[0]).(core.Dict)
	}
	if f.Descendant == nil {
		return
	}
	f.Descriptor, _ = r.Resolve(f.Descendant["FontDescriptor"]).(core.Dict)
	if dw, ok := core.Number(r.Resolve(f.Descendant["DW"])); ok {
		f.cidDefault = dw
	}
	if w, ok := r.Resolve(f.Descendant["W"]).(core.Array); ok {
		f.cidWidths = ParseWidthArray(w, r)
	}
}

// ParseWidthArray parses a CIDFont /W array.
func ParseWidthArray(w core.Array, r Resolver) []WidthRange {
	var out []WidthRange
	for i := 0; i < len(w); {
		start, ok := core.Number(r.Resolve(w[i]))
		i++
		if !ok || i >= len(w) {
			break
		}
		if list, ok := r.Resolve(w[i]).(core.Array); ok {
			// c [w1 w2 ... wn]
			widths := make([]float64, len(list))
			for j, v := range list {
				widths[j], _ = core.Number(r.Resolve(v))
			}
			out = append(out, WidthRange{Start: int(start), End: int(start) + len(widths) - 1, Widths: widths})
			i++
			continue
		}
		// cfirst clast w
		if i+1 >= len(w) {
			break
		}
		end, _ := core.Number(r.Resolve(w[i]))
		width, _ := core.Number(r.Resolve(w[i+1]))
		out = append(out, WidthRange{Start: int(start), End: int(end), Width: width})
		i += 2
	}
	return out
}

// IsComposite reports whether the font is a Type0 font with multi-byte codes.
func (f *Font) IsComposite() bool {
	return f.Subtype == "Type0"
}

// IsStandard reports whether the font uses built-in Standard 14 metrics.
func (f *Font) IsStandard() bool {
	return f.standard != "" && !f.hasWidths
}

// Encoding returns the code table of a simple font, nil for Type0 fonts.
func (f *Font) Encoding() *Encoding {
	return f.encoding
}

// CID returns the CID selected by a code of a Type0 font.
func (f *Font) CID(code uint32) int {
	if f.cmap != nil {
		return f.cmap.CID(code)
	}
	return int(code)
}

// Width returns the advance of code in thousandths of text space units.
func (f *Font) Width(code uint32) float64 {
	if f.IsComposite() {
		cid := f.CID(code)
		for _, wr := range f.cidWidths {
			if cid < wr.Start || cid > wr.End {
				continue
			}
			if wr.Widths != nil {
				return wr.Widths[cid-wr.Start]
			}
			return wr.Width
		}
		return f.cidDefault
	}

	if f.hasWidths {
		idx := int(code) - f.firstChar
		if idx >= 0 && idx < len(f.widths) {
			return f.widths[idx] * f.scale
		}
		return f.missingWidth * f.scale
	}
	if table, ok := standardFonts[f.standard]; ok {
		if w, ok := table[f.encoding[code&0xff]]; ok {
			return w
		}
		if f.missingWidth > 0 {
			return f.missingWidth
		}
	}
	return defaultWidth
}

// Text returns the Unicode text of one code.
func (f *Font) Text(code uint32) string {
	if f.toUnicode != nil {
		if s, ok := f.toUnicode.Lookup(code); ok {
			return s
		}
	}
	if f.encoding != nil && code < 256 {
		if r := f.encoding[code]; r != 0 {
			return string(r)
		}
	}
	return ""
}

// Decode splits a shown string into glyphs.
func (f *Font) Decode(data []byte) []Glyph {
	var out []Glyph
	for len(data) > 0 {
		var c uint32
		n := 1
		switch {
		case !f.IsComposite():
			c = uint32(data[0])
		case f.cmap != nil && f.cmap.HasCodespace():
			c, n = f.cmap.NextCode(data, 2)
		default:
			n = 2
			if len(data) < 2 {
				n = 1
			}
			for i := 0; i < n; i++ {
				c = c<<8 | uint32(data[i])
			}
		}
		if n == 0 {
			break
		}
		out = append(out, Glyph{
			Code:  c,
			Bytes: n,
			Width: f.Width(c),
			Text:  f.Text(c),
			Space: n == 1 && c == 32,
		})
		data = data[n:]
	}
	return out
}

// DecodeString returns the Unicode text of a shown string.
func (f *Font) DecodeString(data []byte) string {
	var s []byte
	for _, g := range f.Decode(data) {
		s = append(s, g.Text...)
	}
	return string(s)
}

// Program returns the embedded TrueType program stream (/FontFile2) of the
// font, if any.
func (f *Font) Program(r Resolver) (*core.Stream, bool) {
	if f.Descriptor == nil {
		return nil, false
	}
	s, ok := r.Resolve(f.Descriptor["FontFile2"]).(*core.Stream)
	return s, ok
}

package font

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/tsawler/safepdf/core"
)

// Encoding maps the single-byte codes of a simple font to Unicode.
type Encoding [256]rune

// BaseEncoding returns the table for one of the predefined simple-font
// encodings. Unknown names fall back to WinAnsiEncoding.
func BaseEncoding(name string) *Encoding {
	cm := charmap.Windows1252
	if name == "MacRomanEncoding" {
		cm = charmap.Macintosh
	}
	var enc Encoding
	for i := range enc {
		enc[i] = cm.DecodeByte(byte(i))
	}
	switch name {
	case "StandardEncoding":
		// StandardEncoding differs from WinAnsi on the curly quotes and
		// leaves the Latin-1 half mostly empty
		enc['\''] = '’'
		enc['`'] = '‘'
		for i := 0x80; i < 0x100; i++ {
			enc[i] = 0
		}
		for code, name := range standardHigh {
			if r, ok := GlyphRune(name); ok {
				enc[code] = r
			}
		}
	case "Symbol", "ZapfDingbats":
		// Symbolic fonts carry their own built-in encoding; only the
		// space is dependable
		for i := range enc {
			enc[i] = 0
		}
		enc[' '] = ' '
	}
	return &enc
}

// standardHigh lists the StandardEncoding codes above 0x7f that text
// extraction and subsetting actually meet.
var standardHigh = map[int]string{
	0xa1: "exclamdown", 0xa2: "cent", 0xa3: "sterling", 0xa5: "yen",
	0xa7: "section", 0xa9: "quotesingle", 0xaa: "quotedblleft",
	0xab: "guillemotleft", 0xae: "fi", 0xaf: "fl", 0xb1: "endash",
	0xb2: "dagger", 0xb3: "daggerdbl", 0xb7: "bullet", 0xba: "quotedblright",
	0xbb: "guillemotright", 0xbc: "ellipsis", 0xbf: "questiondown",
	0xd0: "emdash", 0xe1: "AE", 0xe8: "Lslash", 0xe9: "Oslash", 0xea: "OE",
	0xf1: "ae", 0xf5: "dotlessi", 0xf8: "lslash", 0xf9: "oslash", 0xfa: "oe",
	0xfb: "germandbls",
}

// ApplyDifferences overlays a /Differences array: a code followed by the
// glyph names assigned to it and the codes after it.
func (enc *Encoding) ApplyDifferences(diffs core.Array) {
	code := -1
	for _, obj := range diffs {
		switch v := obj.(type) {
		case core.Int:
			code = int(v)
		case core.Real:
			code = int(v)
		case core.Name:
			if code < 0 || code > 255 {
				code++
				continue
			}
			if r, ok := GlyphRune(string(v)); ok {
				enc[code] = r
			} else {
				enc[code] = 0
			}
			code++
		}
	}
}

// GlyphRune maps a glyph name to a rune. It knows the names of the Latin
// glyphs common in PDF encodings plus the uniXXXX and uXXXX[XX] forms.
func GlyphRune(name string) (rune, bool) {
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		// Suffixed variants such as "a.sc" share the base glyph's meaning
		return GlyphRune(name[:i])
	}
	if len(name) == 1 && (name[0] >= 'a' && name[0] <= 'z' || name[0] >= 'A' && name[0] <= 'Z') {
		return rune(name[0]), true
	}
	if strings.HasPrefix(name, "uni") && len(name) == 7 {
		if v, err := strconv.ParseUint(name[3:], 16, 32); err == nil {
			return rune(v), true
		}
	}
	if strings.HasPrefix(name, "u") && len(name) >= 5 && len(name) <= 7 {
		if v, err := strconv.ParseUint(name[1:], 16, 32); err == nil && v <= 0x10ffff {
			return rune(v), true
		}
	}
	return 0, false
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#',
	"dollar": '$', "percent": '%', "ampersand": '&', "quotesingle": '\'',
	"parenleft": '(', "parenright": ')', "asterisk": '*', "plus": '+',
	"comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "nine": '9',
	"colon": ':', "semicolon": ';', "less": '<', "equal": '=',
	"greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "asciicircum": '^',
	"underscore": '_', "grave": '`', "braceleft": '{', "bar": '|',
	"braceright": '}', "asciitilde": '~',

	"quoteleft": '‘', "quoteright": '’', "quotedblleft": '“',
	"quotedblright": '”', "quotesinglbase": '‚',
	"quotedblbase": '„', "guillemotleft": '«',
	"guillemotright": '»', "guilsinglleft": '‹',
	"guilsinglright": '›', "endash": '–', "emdash": '—',
	"bullet": '•', "ellipsis": '…', "dagger": '†',
	"daggerdbl": '‡', "perthousand": '‰', "trademark": '™',
	"copyright": '©', "registered": '®', "degree": '°',
	"section": '§', "paragraph": '¶', "cent": '¢',
	"sterling": '£', "yen": '¥', "Euro": '€',
	"exclamdown": '¡', "questiondown": '¿', "minus": '−',
	"multiply": '×', "divide": '÷', "plusminus": '±',
	"fi": 'ﬁ', "fl": 'ﬂ', "ff": 'ﬀ', "ffi": 'ﬃ',
	"ffl": 'ﬄ', "dotlessi": 'ı', "germandbls": 'ß',
	"AE": 'Æ', "ae": 'æ', "OE": 'Œ', "oe": 'œ',
	"Oslash": 'Ø', "oslash": 'ø', "Lslash": 'Ł',
	"lslash": 'ł', "nbspace": ' ', "sfthyphen": '­',
	"Aacute": 'Á', "aacute": 'á', "Agrave": 'À',
	"agrave": 'à', "Adieresis": 'Ä', "adieresis": 'ä',
	"Eacute": 'É', "eacute": 'é', "Egrave": 'È',
	"egrave": 'è', "Odieresis": 'Ö', "odieresis": 'ö',
	"Udieresis": 'Ü', "udieresis": 'ü', "Ccedilla": 'Ç',
	"ccedilla": 'ç', "Ntilde": 'Ñ', "ntilde": 'ñ',
}

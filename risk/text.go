package risk

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/tsawler/safepdf/core"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// pdfDocEncoding lists the PDFDocEncoding codes that differ from Latin-1.
var pdfDocEncoding = map[byte]rune{
	0x18: '˘', 0x19: 'ˇ', 0x1A: 'ˆ', 0x1B: '˙', 0x1C: '˝', 0x1D: '˛', 0x1E: '˚', 0x1F: '˜',
	0x80: '•', 0x81: '†', 0x82: '‡', 0x83: '…', 0x84: '—', 0x85: '–', 0x86: 'ƒ', 0x87: '⁄',
	0x88: '‹', 0x89: '›', 0x8A: '−', 0x8B: '‰', 0x8C: '„', 0x8D: '“', 0x8E: '”', 0x8F: '‘',
	0x90: '’', 0x91: '‚', 0x92: '™', 0x93: 'ﬁ', 0x94: 'ﬂ', 0x95: 'Ł', 0x96: 'Œ', 0x97: 'Š',
	0x98: 'Ÿ', 0x99: 'Ž', 0x9A: 'ı', 0x9B: 'ł', 0x9C: 'œ', 0x9D: 'š', 0x9E: 'ž', 0xA0: '€',
}

// DecodeText decodes a PDF text string: UTF-16BE or UTF-8 when the string
// starts with a byte order mark, PDFDocEncoding otherwise.
func DecodeText(s core.String) string {
	b := []byte(s)
	switch {
	case bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		if out, err := utf16BE.NewDecoder().Bytes(b); err == nil {
			return string(out)
		}
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return string(b[3:])
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if r, ok := pdfDocEncoding[c]; ok {
			sb.WriteRune(r)
			continue
		}
		sb.WriteRune(charmap.ISO8859_1.DecodeByte(c))
	}
	return sb.String()
}

// truncate shortens s for a description.
func truncate(s string) string {
	const limit = 120
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

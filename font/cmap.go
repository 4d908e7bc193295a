package font

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/tsawler/safepdf/contentstream"
	"github.com/tsawler/safepdf/core"
)

// CMap maps character codes to Unicode text (ToUnicode CMaps) and to CIDs
// (embedded encoding CMaps). Both kinds share the codespace ranges that
// decide how many bytes each code takes.
type CMap struct {
	Name string

	codespace []codespaceRange

	text      map[uint32]string
	textRange []textRange

	cids     map[uint32]int
	cidRange []cidRange
}

type codespaceRange struct {
	lo, hi uint32
	n      int
}

// textRange maps lo..hi either to consecutive code points starting at base
// or to the explicit entries of list.
type textRange struct {
	lo, hi uint32
	base   []rune
	list   []string
}

type cidRange struct {
	lo, hi uint32
	cid    int
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// NewCMap creates a new empty CMap
func NewCMap() *CMap {
	return &CMap{
		text: make(map[uint32]string),
		cids: make(map[uint32]int),
	}
}

// ParseCMapStream decodes and parses a CMap stream.
func ParseCMapStream(s *core.Stream) (*CMap, error) {
	if s == nil {
		return nil, fmt.Errorf("stream is nil")
	}
	data, err := s.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode stream: %w", err)
	}
	return ParseCMap(data)
}

// ParseCMap parses CMap program text. The PostScript in a CMap is a flat
// sequence of operands and operators, so it goes through the content
// stream tokenizer; a syntax error keeps whatever was read before it.
func ParseCMap(data []byte) (*CMap, error) {
	ops, err := contentstream.Parse(data)
	cm := NewCMap()
	for _, op := range ops {
		switch op.Operator {
		case "endcodespacerange":
			cm.addCodespace(op.Operands)
		case "endbfchar":
			cm.addBfChar(op.Operands)
		case "endbfrange":
			cm.addBfRange(op.Operands)
		case "endcidchar":
			cm.addCIDChar(op.Operands)
		case "endcidrange":
			cm.addCIDRange(op.Operands)
		case "def":
			if len(op.Operands) == 2 && op.Operands[0] == core.Name("CMapName") {
				if n, ok := op.Operands[1].(core.Name); ok {
					cm.Name = string(n)
				}
			}
		}
	}
	if err != nil && cm.empty() {
		return nil, fmt.Errorf("failed to parse cmap: %w", err)
	}
	sort.Slice(cm.textRange, func(i, j int) bool { return cm.textRange[i].lo < cm.textRange[j].lo })
	sort.Slice(cm.cidRange, func(i, j int) bool { return cm.cidRange[i].lo < cm.cidRange[j].lo })
	return cm, nil
}

func (cm *CMap) empty() bool {
	return len(cm.codespace) == 0 && len(cm.text) == 0 && len(cm.textRange) == 0 &&
		len(cm.cids) == 0 && len(cm.cidRange) == 0
}

func (cm *CMap) addCodespace(args []core.Object) {
	for i := 0; i+1 < len(args); i += 2 {
		lo, n, ok1 := code(args[i])
		hi, _, ok2 := code(args[i+1])
		if ok1 && ok2 && n > 0 && n <= 4 {
			cm.codespace = append(cm.codespace, codespaceRange{lo: lo, hi: hi, n: n})
		}
	}
}

func (cm *CMap) addBfChar(args []core.Object) {
	for i := 0; i+1 < len(args); i += 2 {
		src, _, ok := code(args[i])
		if !ok {
			continue
		}
		switch dst := args[i+1].(type) {
		case core.String:
			cm.text[src] = decodeUTF16(dst)
		case core.Name:
			if r, ok := GlyphRune(string(dst)); ok {
				cm.text[src] = string(r)
			}
		}
	}
}

func (cm *CMap) addBfRange(args []core.Object) {
	for i := 0; i+2 < len(args); i += 3 {
		lo, _, ok1 := code(args[i])
		hi, _, ok2 := code(args[i+1])
		if !ok1 || !ok2 || hi < lo {
			continue
		}
		switch dst := args[i+2].(type) {
		case core.String:
			cm.textRange = append(cm.textRange, textRange{lo: lo, hi: hi, base: []rune(decodeUTF16(dst))})
		case core.Array:
			r := textRange{lo: lo, hi: hi}
			for _, e := range dst {
				s, _ := e.(core.String)
				r.list = append(r.list, decodeUTF16(s))
			}
			cm.textRange = append(cm.textRange, r)
		}
	}
}

func (cm *CMap) addCIDChar(args []core.Object) {
	for i := 0; i+1 < len(args); i += 2 {
		src, _, ok := code(args[i])
		cid, isInt := args[i+1].(core.Int)
		if ok && isInt {
			cm.cids[src] = int(cid)
		}
	}
}

func (cm *CMap) addCIDRange(args []core.Object) {
	for i := 0; i+2 < len(args); i += 3 {
		lo, _, ok1 := code(args[i])
		hi, _, ok2 := code(args[i+1])
		cid, isInt := args[i+2].(core.Int)
		if ok1 && ok2 && isInt && hi >= lo {
			cm.cidRange = append(cm.cidRange, cidRange{lo: lo, hi: hi, cid: int(cid)})
		}
	}
}

// code reads a big-endian character code from a string operand.
func code(obj core.Object) (value uint32, n int, ok bool) {
	s, isString := obj.(core.String)
	if !isString || len(s) == 0 || len(s) > 4 {
		return 0, 0, false
	}
	for i := 0; i < len(s); i++ {
		value = value<<8 | uint32(s[i])
	}
	return value, len(s), true
}

func decodeUTF16(s core.String) string {
	if len(s)%2 != 0 {
		return string(s)
	}
	out, err := utf16be.NewDecoder().Bytes([]byte(s))
	if err != nil {
		return string(s)
	}
	return string(out)
}

// Lookup returns the text for one character code.
func (cm *CMap) Lookup(c uint32) (string, bool) {
	if s, ok := cm.text[c]; ok {
		return s, true
	}
	idx := sort.Search(len(cm.textRange), func(i int) bool { return cm.textRange[i].hi >= c })
	for ; idx < len(cm.textRange) && cm.textRange[idx].lo <= c; idx++ {
		r := cm.textRange[idx]
		if c > r.hi {
			continue
		}
		off := int(c - r.lo)
		if r.list != nil {
			if off < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		if len(r.base) == 0 {
			return "", false
		}
		base := append([]rune(nil), r.base...)
		base[len(base)-1] += rune(off)
		return string(base), true
	}
	return "", false
}

// CID returns the CID for a character code. Codes outside every cidchar
// and cidrange entry map to CID 0.
func (cm *CMap) CID(c uint32) int {
	if cid, ok := cm.cids[c]; ok {
		return cid
	}
	for _, r := range cm.cidRange {
		if c >= r.lo && c <= r.hi {
			return r.cid + int(c-r.lo)
		}
	}
	return 0
}

// NextCode splits the next character code off data using the codespace
// ranges. Without ranges, or when no range matches, def bytes are taken.
func (cm *CMap) NextCode(data []byte, def int) (uint32, int) {
	for n := 1; n <= 4 && n <= len(data); n++ {
		var v uint32
		for i := 0; i < n; i++ {
			v = v<<8 | uint32(data[i])
		}
		for _, r := range cm.codespace {
			if r.n == n && v >= r.lo && v <= r.hi {
				return v, n
			}
		}
	}
	if def > len(data) {
		def = len(data)
	}
	var v uint32
	for i := 0; i < def; i++ {
		v = v<<8 | uint32(data[i])
	}
	return v, def
}

// HasCodespace reports whether the CMap declares codespace ranges.
func (cm *CMap) HasCodespace() bool {
	return len(cm.codespace) > 0
}

// LookupString maps every code in data to text, using the codespace ranges
// to split codes. Unmapped codes are dropped.
func (cm *CMap) LookupString(data []byte, def int) string {
	var b strings.Builder
	for len(data) > 0 {
		c, n := cm.NextCode(data, def)
		if n == 0 {
			break
		}
		if s, ok := cm.Lookup(c); ok {
			b.WriteString(s)
		}
		data = data[n:]
	}
	return b.String()
}

package font

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/image/font/sfnt"

	"github.com/tsawler/safepdf/core"
)

// ErrNotSubsettable is returned for programs the subsetter leaves alone:
// CFF outlines, collections and fonts missing glyf, loca, head or maxp.
var ErrNotSubsettable = errors.New("font program cannot be subset")

// maxCmapEntries bounds the code to glyph map built from one subtable.
const maxCmapEntries = 1 << 20

// TrueType is a parsed TrueType font program.
type TrueType struct {
	data       []byte
	version    uint32
	tables     map[string][]byte
	numGlyphs  int
	unitsPerEm int
	cmaps      []cmapSubtable
}

type cmapSubtable struct {
	platform, encoding uint16
	glyphs             map[uint32]uint16
}

// ParseTrueType parses a TrueType program. The program must also be
// accepted by golang.org/x/image/font/sfnt.
func ParseTrueType(data []byte) (*TrueType, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid font program: %w", err)
	}
	tt := &TrueType{
		data:      data,
		tables:    make(map[string][]byte),
		numGlyphs: f.NumGlyphs(),
	}
	if err := tt.parseTables(); err != nil {
		return nil, err
	}
	if head, ok := tt.tables["head"]; ok && len(head) >= 54 {
		tt.unitsPerEm = int(binary.BigEndian.Uint16(head[18:]))
	}
	tt.parseCmap()
	return tt, nil
}

// parseTables reads the table directory.
func (tt *TrueType) parseTables() error {
	r := bytes.NewReader(tt.data)
	var offsetTable struct {
		SfntVersion   uint32
		NumTables     uint16
		SearchRange   uint16
		EntrySelector uint16
		RangeShift    uint16
	}
	if err := binary.Read(r, binary.BigEndian, &offsetTable); err != nil {
		return fmt.Errorf("failed to read offset table: %w", err)
	}
	tt.version = offsetTable.SfntVersion

	for i := 0; i < int(offsetTable.NumTables); i++ {
		var entry struct {
			Tag      [4]byte
			Checksum uint32
			Offset   uint32
			Length   uint32
		}
		if err := binary.Read(r, binary.BigEndian, &entry); err != nil {
			return fmt.Errorf("failed to read table entry %d: %w", i, err)
		}
		end := uint64(entry.Offset) + uint64(entry.Length)
		if end <= uint64(len(tt.data)) {
			tt.tables[string(entry.Tag[:])] = tt.data[entry.Offset:end]
		}
	}
	return nil
}

// NumGlyphs returns the number of glyphs in the program.
func (tt *TrueType) NumGlyphs() int { return tt.numGlyphs }

// UnitsPerEm returns the design units per em from the head table.
func (tt *TrueType) UnitsPerEm() int { return tt.unitsPerEm }

// Lookup maps a character code through the (platform, encoding) cmap
// subtable.
func (tt *TrueType) Lookup(platform, encoding uint16, c uint32) (uint16, bool) {
	for _, sub := range tt.cmaps {
		if sub.platform == platform && sub.encoding == encoding {
			gid, ok := sub.glyphs[c]
			return gid, ok && gid != 0
		}
	}
	return 0, false
}

func (tt *TrueType) parseCmap() {
	t := tt.tables["cmap"]
	if len(t) < 4 {
		return
	}
	n := int(binary.BigEndian.Uint16(t[2:]))
	for i := 0; i < n; i++ {
		rec := 4 + i*8
		if rec+8 > len(t) {
			return
		}
		platform := binary.BigEndian.Uint16(t[rec:])
		encoding := binary.BigEndian.Uint16(t[rec+2:])
		off := int(binary.BigEndian.Uint32(t[rec+4:]))
		if off+2 > len(t) {
			continue
		}
		glyphs := parseCmapSubtable(t[off:])
		if glyphs != nil {
			tt.cmaps = append(tt.cmaps, cmapSubtable{platform: platform, encoding: encoding, glyphs: glyphs})
		}
	}
}

func parseCmapSubtable(t []byte) map[uint32]uint16 {
	u16 := func(off int) (uint16, bool) {
		if off < 0 || off+2 > len(t) {
			return 0, false
		}
		return binary.BigEndian.Uint16(t[off:]), true
	}
	u32 := func(off int) (uint32, bool) {
		if off < 0 || off+4 > len(t) {
			return 0, false
		}
		return binary.BigEndian.Uint32(t[off:]), true
	}

	format, _ := u16(0)
	out := make(map[uint32]uint16)
	switch format {
	case 0:
		for c := 0; c < 256 && 6+c < len(t); c++ {
			out[uint32(c)] = uint16(t[6+c])
		}
	case 4:
		segX2, ok := u16(6)
		if !ok {
			return nil
		}
		seg := int(segX2 / 2)
		endOff, startOff := 14, 16+int(segX2)
		deltaOff, rangeOff := startOff+int(segX2), startOff+2*int(segX2)
		for i := 0; i < seg; i++ {
			end, ok1 := u16(endOff + 2*i)
			start, ok2 := u16(startOff + 2*i)
			delta, ok3 := u16(deltaOff + 2*i)
			ro, ok4 := u16(rangeOff + 2*i)
			if !ok1 || !ok2 || !ok3 || !ok4 {
				return out
			}
			for c := uint32(start); c <= uint32(end) && c != 0xffff; c++ {
				var gid uint16
				if ro == 0 {
					gid = uint16(c) + delta
				} else {
					g, ok := u16(rangeOff + 2*i + int(ro) + 2*int(c-uint32(start)))
					if !ok {
						break
					}
					if g != 0 {
						gid = g + delta
					}
				}
				out[c] = gid
			}
		}
	case 6:
		first, ok1 := u16(6)
		count, ok2 := u16(8)
		if !ok1 || !ok2 {
			return nil
		}
		for i := 0; i < int(count); i++ {
			gid, ok := u16(10 + 2*i)
			if !ok {
				break
			}
			out[uint32(first)+uint32(i)] = gid
		}
	case 12:
		groups, ok := u32(12)
		if !ok {
			return nil
		}
		for i := 0; i < int(groups) && len(out) < maxCmapEntries; i++ {
			start, ok1 := u32(16 + 12*i)
			end, ok2 := u32(20 + 12*i)
			gid, ok3 := u32(24 + 12*i)
			if !ok1 || !ok2 || !ok3 {
				break
			}
			for c := start; c <= end && len(out) < maxCmapEntries; c++ {
				out[c] = uint16(gid + (c - start))
			}
		}
	default:
		return nil
	}
	return out
}

// GlyphIDs returns the glyphs of tt that the given codes of f can select.
// Simple fonts are looked up through every cmap subtable a viewer might
// use; composite fonts go through CIDToGIDMap.
func (f *Font) GlyphIDs(tt *TrueType, codes []uint32, r Resolver) map[uint16]bool {
	used := map[uint16]bool{0: true}
	add := func(gid uint16, ok bool) {
		if ok && int(gid) < tt.numGlyphs {
			used[gid] = true
		}
	}

	if f.IsComposite() {
		var gidMap []byte
		if f.Descendant != nil {
			if s, ok := r.Resolve(f.Descendant["CIDToGIDMap"]).(*core.Stream); ok {
				gidMap, _ = s.Decode()
			}
		}
		for _, c := range codes {
			cid := f.CID(c)
			if gidMap != nil {
				if 2*cid+2 <= len(gidMap) {
					add(binary.BigEndian.Uint16(gidMap[2*cid:]), true)
				}
				continue
			}
			add(uint16(cid), cid < 0x10000)
		}
		return used
	}

	for _, c := range codes {
		if c > 0xff {
			continue
		}
		if f.encoding != nil && f.encoding[c] != 0 {
			add(tt.Lookup(3, 1, uint32(f.encoding[c])))
			add(tt.Lookup(0, 3, uint32(f.encoding[c])))
		}
		add(tt.Lookup(3, 0, 0xf000+c))
		add(tt.Lookup(3, 0, c))
		add(tt.Lookup(1, 0, c))
	}
	return used
}

// Subset returns a copy of the program in which every glyph outside keep,
// and outside the components of kept composite glyphs, is emptied. Glyph
// numbering is preserved so no cmap or width table needs rewriting. The
// result is rejected unless sfnt parses it back.
func (tt *TrueType) Subset(keep map[uint16]bool) ([]byte, error) {
	head, glyf, loca, maxp := tt.tables["head"], tt.tables["glyf"], tt.tables["loca"], tt.tables["maxp"]
	if len(head) < 54 || glyf == nil || loca == nil || len(maxp) < 6 || tt.version == 0x4f54544f {
		return nil, ErrNotSubsettable
	}
	n := int(binary.BigEndian.Uint16(maxp[4:]))
	long := binary.BigEndian.Uint16(head[50:]) == 1

	offsets := make([]int, n+1)
	for i := 0; i <= n; i++ {
		if long {
			if 4*i+4 > len(loca) {
				return nil, fmt.Errorf("loca table too short: %w", ErrNotSubsettable)
			}
			offsets[i] = int(binary.BigEndian.Uint32(loca[4*i:]))
		} else {
			if 2*i+2 > len(loca) {
				return nil, fmt.Errorf("loca table too short: %w", ErrNotSubsettable)
			}
			offsets[i] = 2 * int(binary.BigEndian.Uint16(loca[2*i:]))
		}
	}
	glyph := func(gid int) []byte {
		if gid < 0 || gid >= n {
			return nil
		}
		start, end := offsets[gid], offsets[gid+1]
		if start >= end || end > len(glyf) {
			return nil
		}
		return glyf[start:end]
	}

	// Composite glyphs pull in their components
	closed := make(map[int]bool)
	queue := []int{0}
	for gid := range keep {
		queue = append(queue, int(gid))
	}
	for len(queue) > 0 {
		gid := queue[0]
		queue = queue[1:]
		if closed[gid] || gid >= n {
			continue
		}
		closed[gid] = true
		queue = append(queue, components(glyph(gid))...)
	}

	newGlyf := make([]byte, 0, len(glyf))
	newLoca := make([]byte, 4*(n+1))
	for gid := 0; gid < n; gid++ {
		if closed[gid] {
			newGlyf = append(newGlyf, glyph(gid)...)
			for len(newGlyf)%4 != 0 {
				newGlyf = append(newGlyf, 0)
			}
		}
		binary.BigEndian.PutUint32(newLoca[4*(gid+1):], uint32(len(newGlyf)))
	}

	newHead := append([]byte(nil), head...)
	binary.BigEndian.PutUint16(newHead[50:], 1)
	binary.BigEndian.PutUint32(newHead[8:], 0)

	tables := make(map[string][]byte, len(tt.tables))
	for tag, data := range tt.tables {
		if tag == "DSIG" {
			continue
		}
		tables[tag] = data
	}
	tables["glyf"] = newGlyf
	tables["loca"] = newLoca
	tables["head"] = newHead

	out := assemble(tt.version, tables)
	if _, err := sfnt.Parse(out); err != nil {
		return nil, fmt.Errorf("subset program does not parse: %w", err)
	}
	return out, nil
}

// components lists the glyphs referenced by a composite glyph.
func components(g []byte) []int {
	if len(g) < 10 || int16(binary.BigEndian.Uint16(g)) >= 0 {
		return nil
	}
	const (
		argsAreWords  = 0x0001
		haveScale     = 0x0008
		moreComps     = 0x0020
		haveXYScale   = 0x0040
		haveTwoByTwo  = 0x0080
		maxComponents = 256
	)
	var out []int
	off := 10
	for len(out) < maxComponents && off+4 <= len(g) {
		flags := binary.BigEndian.Uint16(g[off:])
		out = append(out, int(binary.BigEndian.Uint16(g[off+2:])))
		off += 4
		if flags&argsAreWords != 0 {
			off += 4
		} else {
			off += 2
		}
		switch {
		case flags&haveScale != 0:
			off += 2
		case flags&haveXYScale != 0:
			off += 4
		case flags&haveTwoByTwo != 0:
			off += 8
		}
		if flags&moreComps == 0 {
			break
		}
	}
	return out
}

// assemble writes an sfnt file with tables in tag order and fixes up the
// checksums.
func assemble(version uint32, tables map[string][]byte) []byte {
	tags := make([]string, 0, len(tables))
	for tag := range tables {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	numTables := len(tags)
	entrySelector := 0
	for 1<<(entrySelector+1) <= numTables {
		entrySelector++
	}
	searchRange := (1 << entrySelector) * 16

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, version)
	binary.Write(&buf, binary.BigEndian, uint16(numTables))
	binary.Write(&buf, binary.BigEndian, uint16(searchRange))
	binary.Write(&buf, binary.BigEndian, uint16(entrySelector))
	binary.Write(&buf, binary.BigEndian, uint16(numTables*16-searchRange))

	offset := 12 + 16*numTables
	headOffset := -1
	for _, tag := range tags {
		data := tables[tag]
		if tag == "head" {
			headOffset = offset
		}
		buf.WriteString(tag)
		binary.Write(&buf, binary.BigEndian, checksum(data))
		binary.Write(&buf, binary.BigEndian, uint32(offset))
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		offset += (len(data) + 3) &^ 3
	}
	for _, tag := range tags {
		data := tables[tag]
		buf.Write(data)
		for i := len(data); i%4 != 0; i++ {
			buf.WriteByte(0)
		}
	}

	out := buf.Bytes()
	if headOffset >= 0 && headOffset+12 <= len(out) {
		binary.BigEndian.PutUint32(out[headOffset+8:], 0xb1b0afba-checksum(out))
	}
	return out
}

func checksum(data []byte) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 4 {
		var word [4]byte
		copy(word[:], data[i:])
		sum += binary.BigEndian.Uint32(word[:])
	}
	return sum
}

package core

import (
	"fmt"
	"sort"
	"strconv"
)

const (
	// MaxXRefChain bounds how many /Prev links are followed.
	MaxXRefChain = 1024

	// MaxXRefSize caps /Size in cross-reference streams.
	MaxXRefSize = 8388607
)

// XRefEntryType distinguishes the three kinds of cross-reference entries.
type XRefEntryType int

const (
	XRefFree XRefEntryType = iota
	XRefInUse
	XRefCompressed
)

func (t XRefEntryType) String() string {
	switch t {
	case XRefFree:
		return "free"
	case XRefInUse:
		return "in-use"
	case XRefCompressed:
		return "compressed"
	}
	return "unknown"
}

// XRefEntry represents a single cross-reference entry. In-use entries carry a
// byte offset; compressed entries name the object stream and the index of
// the object inside it.
type XRefEntry struct {
	Type         XRefEntryType
	Offset       int64
	Generation   int
	StreamNumber int
	Index        int
}

// InUse reports whether the entry points at a live object.
func (e *XRefEntry) InUse() bool {
	return e != nil && e.Type != XRefFree
}

// XRefTable represents a PDF cross-reference table
type XRefTable struct {
	Entries map[int]*XRefEntry // Map from object number to XRef entry
	Trailer Dict               // Trailer dictionary

	// Broken is set when an older section of the /Prev chain could not be
	// read; the newer sections are still used.
	Broken bool
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: make(Dict),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or updates an XRef entry
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// Size returns the number of entries in the table
func (x *XRefTable) Size() int {
	return len(x.Entries)
}

// Live returns the sorted numbers of all in-use and compressed objects.
func (x *XRefTable) Live() []int {
	nums := make([]int, 0, len(x.Entries))
	for n, e := range x.Entries {
		if n > 0 && e.InUse() {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	return nums
}

// ParseXRefSection parses the cross-reference section at offset, either a
// classic "xref" table with its trailer or a cross-reference stream.
func ParseXRefSection(data []byte, offset int64) (*XRefTable, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset %d out of range", offset)
	}
	l := NewLexerAt(data, offset)
	l.SkipWhitespace()
	if l.HasPrefix("xref") {
		return parseXRefTable(data, l.Pos()+int64(len("xref")))
	}

	p := NewParserAt(data, l.Pos())
	obj, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("parsing xref stream at %d: %w", offset, err)
	}
	stream, ok := obj.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("object at xref offset %d is not a stream", offset)
	}
	return ParseXRefStream(stream)
}

// parseXRefTable parses the subsections of a classic table and the trailer
// that follows. The parser is token based so irregular entry widths and
// line endings are tolerated.
func parseXRefTable(data []byte, pos int64) (*XRefTable, error) {
	p := NewParserAt(data, pos)
	table := NewXRefTable()

	for {
		tok, err := p.Next()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Is("trailer"):
			obj, err := p.ParseObject()
			if err != nil {
				return nil, fmt.Errorf("failed to parse trailer: %w", err)
			}
			trailer, ok := obj.(Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is not a dictionary, got %T", obj)
			}
			table.Trailer = trailer
			return table, nil
		case tok.Type == TokenInteger:
		default:
			return nil, fmt.Errorf("unexpected %v %q in xref table at %d", tok.Type, tok.Value, tok.Pos)
		}

		first, err := strconv.Atoi(string(tok.Value))
		if err != nil {
			return nil, fmt.Errorf("invalid first object number: %w", err)
		}
		countTok, err := p.Next()
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(string(countTok.Value))
		if countTok.Type != TokenInteger || err != nil || count < 0 {
			return nil, fmt.Errorf("invalid xref subsection count at %d", countTok.Pos)
		}
		// Each entry needs at least 18 bytes; reject counts the file cannot hold
		if int64(count)*18 > int64(len(data))-countTok.Pos {
			return nil, fmt.Errorf("xref subsection count %d exceeds file size", count)
		}

		for i := 0; i < count; i++ {
			entry, err := parseXRefEntry(p)
			if err != nil {
				return nil, fmt.Errorf("failed to parse xref entry %d: %w", first+i, err)
			}
			if _, dup := table.Entries[first+i]; !dup {
				table.Set(first+i, entry)
			}
		}
	}
}

// parseXRefEntry parses "nnnnnnnnnn ggggg n" or "nnnnnnnnnn ggggg f".
func parseXRefEntry(p *Parser) (*XRefEntry, error) {
	offTok, err := p.Next()
	if err != nil {
		return nil, err
	}
	genTok, err := p.Next()
	if err != nil {
		return nil, err
	}
	flagTok, err := p.Next()
	if err != nil {
		return nil, err
	}
	if offTok.Type != TokenInteger || genTok.Type != TokenInteger || flagTok.Type != TokenKeyword {
		return nil, fmt.Errorf("malformed entry at %d", offTok.Pos)
	}
	offset, err := strconv.ParseInt(string(offTok.Value), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid offset %q: %w", offTok.Value, err)
	}
	gen, err := strconv.Atoi(string(genTok.Value))
	if err != nil {
		return nil, fmt.Errorf("invalid generation %q: %w", genTok.Value, err)
	}

	switch string(flagTok.Value) {
	case "n":
		return &XRefEntry{Type: XRefInUse, Offset: offset, Generation: gen}, nil
	case "f":
		return &XRefEntry{Type: XRefFree, Offset: offset, Generation: gen}, nil
	}
	return nil, fmt.Errorf("invalid in-use flag: %q", flagTok.Value)
}

// ParseXRefStream decodes a cross-reference stream (/Type /XRef). Its
// dictionary doubles as the trailer.
func ParseXRefStream(stream *Stream) (*XRefTable, error) {
	if t, _ := stream.Dict.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("stream is not a cross-reference stream, got type %q", t)
	}
	size, ok := stream.Dict.GetInt("Size")
	if !ok || size < 0 || size > MaxXRefSize {
		return nil, fmt.Errorf("invalid xref stream /Size %v", stream.Dict.Get("Size"))
	}

	wArr, ok := stream.Dict.GetArray("W")
	if !ok || len(wArr) < 3 {
		return nil, fmt.Errorf("xref stream /W must have three entries")
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		n, ok := wArr.GetInt(i)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid xref stream field width %v", wArr.Get(i))
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("xref stream entries have zero width")
	}

	index := Array{Int(0), size}
	if idx, ok := stream.Dict.GetArray("Index"); ok && len(idx)%2 == 0 {
		index = idx
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding xref stream: %w", err)
	}

	table := NewXRefTable()
	table.Trailer = stream.Dict
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, ok1 := index.GetInt(i)
		count, ok2 := index.GetInt(i + 1)
		if !ok1 || !ok2 || first < 0 || count < 0 || first+count > MaxXRefSize {
			return nil, fmt.Errorf("invalid xref stream /Index")
		}
		for j := 0; j < int(count); j++ {
			if pos+entrySize > len(data) {
				return table, nil
			}
			typ := 1
			if w[0] > 0 {
				typ = int(readField(data[pos:], w[0]))
			}
			f2 := readField(data[pos+w[0]:], w[1])
			f3 := readField(data[pos+w[0]+w[1]:], w[2])
			pos += entrySize

			num := int(first) + j
			if _, dup := table.Entries[num]; dup {
				continue
			}
			switch typ {
			case 0:
				table.Set(num, &XRefEntry{Type: XRefFree, Offset: f2, Generation: int(f3)})
			case 1:
				table.Set(num, &XRefEntry{Type: XRefInUse, Offset: f2, Generation: int(f3)})
			case 2:
				table.Set(num, &XRefEntry{Type: XRefCompressed, StreamNumber: int(f2), Index: int(f3)})
			}
		}
	}
	return table, nil
}

func readField(b []byte, width int) int64 {
	var v int64
	for i := 0; i < width; i++ {
		v = v<<8 | int64(b[i])
	}
	return v
}

// LoadXRefChain parses the section at start and follows /Prev (and the
// hybrid /XRefStm) links. Entries from newer sections shadow older ones.
// Loops in the chain are detected by offset. Only a failure of the newest
// section is an error; older failures set Broken.
func LoadXRefChain(data []byte, start int64) (*XRefTable, error) {
	merged := NewXRefTable()
	visited := make(map[int64]bool)

	offset := start
	for i := 0; i < MaxXRefChain; i++ {
		if visited[offset] {
			break
		}
		visited[offset] = true

		section, err := ParseXRefSection(data, offset)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			merged.Broken = true
			break
		}

		if stmOff, ok := section.Trailer.GetInt("XRefStm"); ok && !visited[int64(stmOff)] {
			visited[int64(stmOff)] = true
			if hidden, err := ParseXRefSection(data, int64(stmOff)); err == nil {
				for num, e := range hidden.Entries {
					if cur, ok := section.Entries[num]; !ok || !cur.InUse() {
						section.Entries[num] = e
					}
				}
			} else {
				merged.Broken = true
			}
		}

		for num, e := range section.Entries {
			if _, ok := merged.Entries[num]; !ok {
				merged.Entries[num] = e
			}
		}
		for k, v := range section.Trailer {
			if _, ok := merged.Trailer[k]; !ok {
				merged.Trailer[k] = v
			}
		}

		prev, ok := section.Trailer.GetInt("Prev")
		if !ok || prev < 0 {
			break
		}
		offset = int64(prev)
	}

	for _, k := range []string{"Prev", "XRefStm", "Type", "W", "Index", "Filter", "DecodeParms", "Length"} {
		merged.Trailer.Delete(k)
	}
	return merged, nil
}

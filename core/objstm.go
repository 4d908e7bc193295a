package core

import (
	"fmt"
)

// ObjectStream represents a PDF Object Stream (Type /ObjStm), introduced in PDF 1.5.
// Object streams store multiple non-stream objects in a single compressed
// stream; members are addressed by index rather than byte offset.
type ObjectStream struct {
	n       int
	first   int
	extends IndirectRef
	offsets []objectStreamOffset
	decoded []byte
}

// objectStreamOffset pairs an object number with its byte offset within the decoded data.
type objectStreamOffset struct {
	ObjNum int
	Offset int // relative to First
}

// NewObjectStream decodes stream and parses its header. The stream must
// have Type /ObjStm and the /N and /First entries.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}
	if t, _ := stream.Dict.GetName("Type"); t != "ObjStm" {
		return nil, fmt.Errorf("stream is not an object stream, got type: %q", t)
	}
	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has invalid /N %v", stream.Dict.Get("N"))
	}
	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has invalid /First %v", stream.Dict.Get("First"))
	}

	decoded, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode object stream: %w", err)
	}
	if int(first) > len(decoded) {
		return nil, fmt.Errorf("First offset (%d) exceeds decoded data length (%d)", first, len(decoded))
	}
	// /N is attacker controlled; every header pair needs at least 4 bytes
	if int(n) > int(first)/2+1 {
		return nil, fmt.Errorf("object stream /N %d does not fit a %d byte header", n, first)
	}

	os := &ObjectStream{
		n:       int(n),
		first:   int(first),
		decoded: decoded,
	}
	os.extends, _ = stream.Dict.GetIndirectRef("Extends")

	if err := os.parseHeader(); err != nil {
		return nil, fmt.Errorf("failed to parse object stream header: %w", err)
	}
	return os, nil
}

// N returns the number of objects stored in the stream.
func (os *ObjectStream) N() int { return os.n }

// First returns the byte offset to the first object's data in the decoded stream.
func (os *ObjectStream) First() int { return os.first }

// Extends returns the reference to another object stream this one extends.
// The zero reference means none.
func (os *ObjectStream) Extends() IndirectRef { return os.extends }

// parseHeader parses "objNum1 offset1 objNum2 offset2 ..." preceding /First.
func (os *ObjectStream) parseHeader() error {
	p := NewParser(os.decoded[:os.first])
	os.offsets = make([]objectStreamOffset, 0, os.n)

	for i := 0; i < os.n; i++ {
		numTok, err := p.Next()
		if err != nil {
			return err
		}
		offTok, err := p.Next()
		if err != nil {
			return err
		}
		if numTok.Type != TokenInteger || offTok.Type != TokenInteger {
			return fmt.Errorf("header pair %d is not two integers", i)
		}
		num, err1 := parseIntToken(numTok)
		off, err2 := parseIntToken(offTok)
		if err1 != nil || err2 != nil || num < 0 || off < 0 {
			return fmt.Errorf("header pair %d has negative values", i)
		}
		os.offsets = append(os.offsets, objectStreamOffset{ObjNum: num, Offset: off})
	}
	return nil
}

// GetObjectByIndex extracts an object by its index within the stream (0-based).
// Returns the object and its object number.
func (os *ObjectStream) GetObjectByIndex(index int) (Object, int, error) {
	if index < 0 || index >= len(os.offsets) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(os.offsets))
	}

	start := os.first + os.offsets[index].Offset
	end := len(os.decoded)
	if index+1 < len(os.offsets) {
		if next := os.first + os.offsets[index+1].Offset; next > start && next < end {
			end = next
		}
	}
	if start >= len(os.decoded) {
		return nil, 0, fmt.Errorf("object offset %d exceeds decoded data length %d", start, len(os.decoded))
	}

	obj, err := NewParser(os.decoded[start:end]).ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object at index %d: %w", index, err)
	}
	return obj, os.offsets[index].ObjNum, nil
}

// GetObjectByNumber finds and extracts an object by its object number.
// Returns the object and its index within the stream.
func (os *ObjectStream) GetObjectByNumber(objNum int) (Object, int, error) {
	for i, entry := range os.offsets {
		if entry.ObjNum == objNum {
			obj, _, err := os.GetObjectByIndex(i)
			return obj, i, err
		}
	}
	return nil, 0, fmt.Errorf("object %d not found in object stream", objNum)
}

// ObjectNumbers returns the object numbers stored in this stream in header order.
func (os *ObjectStream) ObjectNumbers() []int {
	nums := make([]int, len(os.offsets))
	for i, entry := range os.offsets {
		nums[i] = entry.ObjNum
	}
	return nums
}

// ContainsObject reports whether the given object number is stored in this stream.
func (os *ObjectStream) ContainsObject(objNum int) bool {
	for _, entry := range os.offsets {
		if entry.ObjNum == objNum {
			return true
		}
	}
	return false
}

func parseIntToken(tok *Token) (int, error) {
	var v int
	neg := false
	for i, b := range tok.Value {
		if i == 0 && (b == '-' || b == '+') {
			neg = b == '-'
			continue
		}
		if !isDigit(b) {
			return 0, fmt.Errorf("not an integer: %q", tok.Value)
		}
		v = v*10 + int(b-'0')
		if v > 1<<40 {
			return 0, fmt.Errorf("integer out of range: %q", tok.Value)
		}
	}
	if neg {
		v = -v
	}
	return v, nil
}

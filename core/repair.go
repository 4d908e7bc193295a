package core

import (
	"bytes"
	"context"
)

// ObjectMarker is an "N G obj" header found by a linear scan.
type ObjectMarker struct {
	Ref    IndirectRef
	Offset int64
}

// ScanResult is the outcome of a linear re-scan of a whole file.
type ScanResult struct {
	// Table maps every object number to the physically last definition.
	Table *XRefTable
	// Markers lists every header found, in file order.
	Markers []ObjectMarker
	// Trailers holds the dictionaries that follow "trailer" keywords, in
	// file order.
	Trailers []Dict
}

// ScanObjects rebuilds cross-reference information by scanning data for
// "N G obj" headers and "trailer" dictionaries. Later definitions of an
// object number replace earlier ones. ctx is checked between objects.
func ScanObjects(ctx context.Context, data []byte) (*ScanResult, error) {
	res := &ScanResult{Table: NewXRefTable()}
	marker := []byte("obj")

	for pos := 0; ; {
		i := bytes.Index(data[pos:], marker)
		if i < 0 {
			break
		}
		at := pos + i
		pos = at + len(marker)

		if len(res.Markers)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if pos < len(data) && !isWhitespace(data[pos]) && !isDelimiter(data[pos]) {
			continue
		}
		ref, start, ok := headerBefore(data, at)
		if !ok {
			continue
		}
		res.Markers = append(res.Markers, ObjectMarker{Ref: ref, Offset: int64(start)})
		res.Table.Set(ref.Number, &XRefEntry{Type: XRefInUse, Offset: int64(start), Generation: ref.Generation})
	}

	for pos := 0; ; {
		i := bytes.Index(data[pos:], []byte("trailer"))
		if i < 0 {
			break
		}
		at := pos + i
		pos = at + len("trailer")
		obj, err := NewParserAt(data, int64(pos)).ParseObject()
		if err != nil {
			continue
		}
		if d, ok := obj.(Dict); ok {
			res.Trailers = append(res.Trailers, d)
		}
	}
	return res, nil
}

// headerBefore parses "N G " immediately preceding the "obj" keyword at
// offset at. It returns the reference and the offset of N.
func headerBefore(data []byte, at int) (IndirectRef, int, bool) {
	i := at
	// "obj" may directly follow the generation: "1 0obj" is rare but legal
	for i > 0 && isWhitespace(data[i-1]) {
		i--
	}
	genEnd := i
	for i > 0 && isDigit(data[i-1]) {
		i--
	}
	if i == genEnd || genEnd-i > 5 {
		return IndirectRef{}, 0, false
	}
	genStart := i

	j := i
	for j > 0 && isWhitespace(data[j-1]) {
		j--
	}
	if j == i {
		return IndirectRef{}, 0, false
	}
	numEnd := j
	for j > 0 && isDigit(data[j-1]) {
		j--
	}
	if j == numEnd || numEnd-j > 10 {
		return IndirectRef{}, 0, false
	}
	if j > 0 && !isWhitespace(data[j-1]) && !isDelimiter(data[j-1]) {
		return IndirectRef{}, 0, false
	}

	num := atoiDigits(data[j:numEnd])
	gen := atoiDigits(data[genStart:genEnd])
	if num <= 0 || gen > 65535 {
		return IndirectRef{}, 0, false
	}
	return IndirectRef{Number: num, Generation: gen}, j, true
}

func atoiDigits(b []byte) int {
	v := 0
	for _, c := range b {
		v = v*10 + int(c-'0')
	}
	return v
}

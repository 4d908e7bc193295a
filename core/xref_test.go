package core

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildClassic lays out objects numbered from 1 after a header and appends a
// classic xref table with computed offsets. It returns the file and the
// offset of the table.
func buildClassic(objs []string, trailer string) ([]byte, int) {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offs := make([]int, len(objs))
	for i, o := range objs {
		offs[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, o := range offs {
		fmt.Fprintf(&b, "%010d 00000 n \n", o)
	}
	fmt.Fprintf(&b, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return b.Bytes(), xref
}

var sampleObjects = []string{
	"<< /Type /Catalog /Pages 2 0 R >>",
	"<< /Type /Pages /Kids [] /Count 0 >>",
}

func TestLoadClassicTable(t *testing.T) {
	data, xref := buildClassic(sampleObjects, "<< /Size 3 /Root 1 0 R >>")

	start, err := FindStartXRef(data)
	require.NoError(t, err)
	assert.Equal(t, int64(xref), start)

	table, err := LoadXRefChain(data, start)
	require.NoError(t, err)
	assert.Equal(t, 3, table.Size())
	assert.Equal(t, []int{1, 2}, table.Live())
	assert.Equal(t, IndirectRef{Number: 1}, table.Trailer["Root"])

	entry, ok := table.Get(2)
	require.True(t, ok)
	obj, err := NewParserAt(data, entry.Offset).ParseIndirectObject()
	require.NoError(t, err)
	assert.Equal(t, 2, obj.Ref.Number)
}

func TestLoadIncrementalUpdate(t *testing.T) {
	base, firstXref := buildClassic(sampleObjects, "<< /Size 3 /Root 1 0 R >>")

	var b bytes.Buffer
	b.Write(base)
	newOff := b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 /Updated true >>\nendobj\n")
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n2 1\n%010d 00000 n \ntrailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", newOff, firstXref, xref)
	data := b.Bytes()

	start, err := FindStartXRef(data)
	require.NoError(t, err)
	table, err := LoadXRefChain(data, start)
	require.NoError(t, err)

	entry, _ := table.Get(2)
	assert.Equal(t, int64(newOff), entry.Offset, "newer section shadows older")
	entry, _ = table.Get(1)
	assert.True(t, entry.InUse())
	assert.False(t, table.Trailer.Has("Prev"))
	assert.False(t, table.Broken)
}

func TestLoadPrevLoop(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	off := b.Len()
	b.WriteString("1 0 obj << /Type /Catalog >> endobj\n")
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \ntrailer\n<< /Size 2 /Root 1 0 R /Prev %d >>\n", off, xref)

	table, err := LoadXRefChain(b.Bytes(), int64(xref))
	require.NoError(t, err, "a self-referencing /Prev must terminate")
	assert.Equal(t, []int{1}, table.Live())
}

func TestLoadBrokenPrev(t *testing.T) {
	data, xref := buildClassic(sampleObjects, "<< /Size 3 /Root 1 0 R /Prev 5 >>")
	table, err := LoadXRefChain(data, int64(xref))
	require.NoError(t, err)
	assert.True(t, table.Broken)
	assert.Equal(t, []int{1, 2}, table.Live())
}

func TestLoadBadStart(t *testing.T) {
	data, _ := buildClassic(sampleObjects, "<< /Size 3 /Root 1 0 R >>")
	_, err := LoadXRefChain(data, 3)
	assert.Error(t, err)
	_, err = LoadXRefChain(data, int64(len(data)+10))
	assert.Error(t, err)
}

func TestXRefTableHugeCount(t *testing.T) {
	data := []byte("xref\n0 99999999\n0000000000 65535 f \ntrailer << >>")
	_, err := ParseXRefSection(data, 0)
	assert.Error(t, err)
}

func xrefStreamBody(t *testing.T, rows [][]byte) []byte {
	var raw []byte
	for _, r := range rows {
		raw = append(raw, r...)
	}
	return flate(t, raw)
}

func TestParseXRefStream(t *testing.T) {
	rows := [][]byte{
		{0, 0, 0, 255}, // 0: free
		{1, 0, 15, 0},  // 1: offset 15
		{2, 0, 5, 3},   // 2: in object stream 5 at index 3
		{1, 1, 0, 2},   // 3: offset 256 generation 2
		{9, 0, 0, 0},   // 4: unknown type is ignored
	}
	s := &Stream{
		Dict: Dict{
			"Type":   Name("XRef"),
			"Size":   Int(5),
			"W":      Array{Int(1), Int(2), Int(1)},
			"Filter": Name("FlateDecode"),
			"Root":   IndirectRef{Number: 1},
		},
		Data: xrefStreamBody(t, rows),
	}
	table, err := ParseXRefStream(s)
	require.NoError(t, err)

	e0, _ := table.Get(0)
	assert.Equal(t, XRefFree, e0.Type)
	e1, _ := table.Get(1)
	assert.Equal(t, &XRefEntry{Type: XRefInUse, Offset: 15}, e1)
	e2, _ := table.Get(2)
	assert.Equal(t, &XRefEntry{Type: XRefCompressed, StreamNumber: 5, Index: 3}, e2)
	e3, _ := table.Get(3)
	assert.Equal(t, &XRefEntry{Type: XRefInUse, Offset: 256, Generation: 2}, e3)
	_, ok := table.Get(4)
	assert.False(t, ok)
	assert.Equal(t, IndirectRef{Number: 1}, table.Trailer["Root"])
}

func TestParseXRefStreamIndex(t *testing.T) {
	s := &Stream{
		Dict: Dict{
			"Type":  Name("XRef"),
			"Size":  Int(20),
			"W":     Array{Int(1), Int(1), Int(0)},
			"Index": Array{Int(10), Int(2)},
		},
		Data: []byte{1, 50, 1, 60},
	}
	table, err := ParseXRefStream(s)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 11}, table.Live())
	e, _ := table.Get(11)
	assert.Equal(t, int64(60), e.Offset)
}

func TestParseXRefStreamInvalid(t *testing.T) {
	tests := []struct {
		name string
		dict Dict
	}{
		{"wrong type", Dict{"Type": Name("ObjStm"), "Size": Int(1), "W": Array{Int(1), Int(1), Int(1)}}},
		{"huge size", Dict{"Type": Name("XRef"), "Size": Int(MaxXRefSize + 1), "W": Array{Int(1), Int(1), Int(1)}}},
		{"short W", Dict{"Type": Name("XRef"), "Size": Int(1), "W": Array{Int(1), Int(1)}}},
		{"wide W", Dict{"Type": Name("XRef"), "Size": Int(1), "W": Array{Int(1), Int(9), Int(1)}}},
		{"zero W", Dict{"Type": Name("XRef"), "Size": Int(1), "W": Array{Int(0), Int(0), Int(0)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseXRefStream(&Stream{Dict: tt.dict})
			assert.Error(t, err)
		})
	}
}

func TestLoadXRefStreamSection(t *testing.T) {
	var b bytes.Buffer
	b.WriteString("%PDF-1.5\n")
	catOff := b.Len()
	b.WriteString("1 0 obj << /Type /Catalog >> endobj\n")
	xrefOff := b.Len()
	body := xrefStreamBody(t, [][]byte{
		{0, 0, 0, 0, 0},
		{1, 0, byte(catOff >> 8), byte(catOff), 0},
		{1, 0, byte(xrefOff >> 8), byte(xrefOff), 0},
	})
	fmt.Fprintf(&b, "2 0 obj << /Type /XRef /Size 3 /W [1 3 1] /Root 1 0 R /Filter /FlateDecode /Length %d >> stream\n", len(body))
	b.Write(body)
	fmt.Fprintf(&b, "\nendstream endobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)

	data := b.Bytes()
	start, err := FindStartXRef(data)
	require.NoError(t, err)
	table, err := LoadXRefChain(data, start)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, table.Live())
	assert.Equal(t, IndirectRef{Number: 1}, table.Trailer["Root"])
	assert.False(t, table.Trailer.Has("W"), "stream keys are stripped from the merged trailer")
}

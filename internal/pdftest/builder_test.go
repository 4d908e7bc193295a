package pdftest

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesOffsetsPointAtObjects(t *testing.T) {
	data := Document(2)
	idx := bytes.LastIndex(data, []byte("startxref"))
	require.Greater(t, idx, 0)
	fields := strings.Fields(string(data[idx:]))
	xref, err := strconv.Atoi(fields[1])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data[xref:], []byte("xref")))

	b, _ := Pages(2)
	_, offsets := b.Body()
	for n, off := range offsets[1:] {
		want := strconv.Itoa(n+1) + " 0 obj"
		assert.True(t, bytes.HasPrefix(data[off:], []byte(want)), "object %d", n+1)
	}
}

func TestObjectStreamUsesXRefStream(t *testing.T) {
	b, l := Pages(1)
	b.AddObjectStream(l.Font)
	data := b.Bytes()
	assert.Contains(t, string(data), "/Type /XRef")
	assert.Contains(t, string(data), "/Type /ObjStm")
	assert.NotContains(t, string(data), "\nxref\n")
	assert.Contains(t, b.Numbers(), l.Font)
}

func TestNoXRefBytes(t *testing.T) {
	b, _ := Pages(1)
	data := b.NoXRefBytes()
	assert.NotContains(t, string(data), "startxref")
	assert.Contains(t, string(data), "trailer")
}

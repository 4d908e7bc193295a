// Package pdftest builds small PDF files for tests. Offsets in the
// generated cross-reference data are always exact, so tests can corrupt
// exactly the structure they mean to.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/tsawler/safepdf/internal/filters"
)

// Builder accumulates numbered object bodies. Object numbers start at 1.
type Builder struct {
	version    string
	objects    [][]byte
	compressed map[int][2]int // member -> {stream number, index}
	trailer    string
}

// New returns an empty builder producing PDF 1.7 files.
func New() *Builder {
	return &Builder{version: "1.7", compressed: make(map[int][2]int)}
}

// Version sets the header version, e.g. "1.4".
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Reserve allocates an object number without a body.
func (b *Builder) Reserve() int {
	b.objects = append(b.objects, nil)
	return len(b.objects)
}

// Add appends an object body and returns its number.
func (b *Builder) Add(body string) int {
	n := b.Reserve()
	b.Set(n, body)
	return n
}

// Set replaces the body of object n verbatim.
func (b *Builder) Set(n int, body string) {
	b.objects[n-1] = []byte(body)
}

// AddStream appends a stream object. dict holds the dictionary entries
// without the enclosing << >>; /Length is added.
func (b *Builder) AddStream(dict string, data []byte) int {
	n := b.Reserve()
	b.SetStream(n, dict, data)
	return n
}

// SetStream replaces object n with a stream.
func (b *Builder) SetStream(n int, dict string, data []byte) {
	b.objects[n-1] = Stream(dict, data)
}

// AddObjectStream moves the given objects into a new object stream. Files
// containing object streams are written with a cross-reference stream.
func (b *Builder) AddObjectStream(members ...int) int {
	var header, body bytes.Buffer
	n := b.Reserve()
	for i, m := range members {
		fmt.Fprintf(&header, "%d %d ", m, body.Len())
		body.Write(b.objects[m-1])
		body.WriteByte('\n')
		b.objects[m-1] = nil
		b.compressed[m] = [2]int{n, i}
	}
	data := append(header.Bytes(), body.Bytes()...)
	b.SetStream(n, fmt.Sprintf("/Type /ObjStm /N %d /First %d /Filter /FlateDecode", len(members), header.Len()),
		mustFlate(data))
	return n
}

// Trailer sets the trailer entries without the enclosing << >>. /Size is
// always added.
func (b *Builder) Trailer(entries string) *Builder {
	b.trailer = entries
	return b
}

// Stream renders a stream object body.
func Stream(dict string, data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<< %s /Length %d >>\nstream\n", dict, len(data))
	buf.Write(data)
	buf.WriteString("\nendstream")
	return buf.Bytes()
}

// Ref formats an indirect reference to object n.
func Ref(n int) string {
	return fmt.Sprintf("%d 0 R", n)
}

// Body renders the header and every object and returns the offsets of the
// objects (0 for free or compressed ones).
func (b *Builder) Body() ([]byte, []int) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.version)
	offsets := make([]int, len(b.objects)+1)
	for i, body := range b.objects {
		if body == nil {
			continue
		}
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(body)
		buf.WriteString("\nendobj\n")
	}
	return buf.Bytes(), offsets
}

// Bytes renders a complete file with a classic xref table, or with an xref
// stream when object streams are present.
func (b *Builder) Bytes() []byte {
	if len(b.compressed) > 0 {
		return b.XRefStreamBytes()
	}
	body, offsets := b.Body()
	buf := bytes.NewBuffer(body)
	xref := buf.Len()
	fmt.Fprintf(buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets))
	for _, off := range offsets[1:] {
		if off == 0 {
			buf.WriteString("0000000000 65535 f \n")
			continue
		}
		fmt.Fprintf(buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(buf, "trailer\n<< /Size %d %s >>\nstartxref\n%d\n%%%%EOF\n", len(offsets), b.trailer, xref)
	return buf.Bytes()
}

// XRefStreamBytes renders a complete file indexed by a cross-reference
// stream with 1/4/2 byte fields.
func (b *Builder) XRefStreamBytes() []byte {
	body, offsets := b.Body()
	buf := bytes.NewBuffer(body)
	xrefNum := len(offsets)
	xrefOff := buf.Len()
	offsets = append(offsets, xrefOff)

	var rows []byte
	for num, off := range offsets {
		switch c, ok := b.compressed[num]; {
		case ok:
			rows = append(rows, 2, 0, 0, byte(c[0]>>8), byte(c[0]), byte(c[1]>>8), byte(c[1]))
		case off == 0:
			rows = append(rows, 0, 0, 0, 0, 0, 0xff, 0xff)
		default:
			rows = append(rows, 1, byte(off>>24), byte(off>>16), byte(off>>8), byte(off), 0, 0)
		}
	}
	fmt.Fprintf(buf, "%d 0 obj\n", xrefNum)
	buf.Write(Stream(fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Filter /FlateDecode %s", len(offsets), b.trailer), mustFlate(rows)))
	fmt.Fprintf(buf, "\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

// NoXRefBytes renders the objects followed by a bare trailer dictionary
// and no cross-reference data at all. An empty trailer omits the keyword.
func (b *Builder) NoXRefBytes() []byte {
	body, _ := b.Body()
	buf := bytes.NewBuffer(body)
	if b.trailer != "" {
		fmt.Fprintf(buf, "trailer\n<< %s >>\n", b.trailer)
	}
	buf.WriteString("%%EOF\n")
	return buf.Bytes()
}

// Numbers returns the numbers of objects that have bodies, in order.
func (b *Builder) Numbers() []int {
	var nums []int
	for i, body := range b.objects {
		if body != nil {
			nums = append(nums, i+1)
		}
	}
	for n := range b.compressed {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func mustFlate(data []byte) []byte {
	out, err := filters.FlateEncode(data)
	if err != nil {
		panic(err)
	}
	return out
}

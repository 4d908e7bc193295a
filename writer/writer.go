package writer

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/internal/filters"
	"github.com/tsawler/safepdf/logging"
	"github.com/tsawler/safepdf/resolver"
)

// header is the file header followed by a comment of high-bit bytes so
// transfer tools treat the file as binary.
const header = "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"

// Source is the object graph being serialized. *document.Document
// implements it.
type Source interface {
	Refs() []core.IndirectRef
	Lookup(num int) (core.Object, bool)
	Trailer() core.Dict
}

// xref is one cross-reference stream row: type, field 2, field 3.
type xref [3]int64

// Write serializes doc into a complete PDF file.
func Write(ctx context.Context, doc Source, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := WriteTo(ctx, &buf, doc, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo serializes doc to w and returns the number of bytes written. The
// file is assembled in memory first so nothing reaches w on failure.
// Object streams and cross-reference streams in doc are not copied; fresh
// ones are generated.
func WriteTo(ctx context.Context, w io.Writer, doc Source, opts ...Option) (int64, error) {
	cfg := newConfig(opts)
	log := logging.Component(cfg.logger, "writer")

	trailer := doc.Trailer()
	if trailer.Has("Encrypt") {
		return 0, core.ErrEncrypted
	}
	root, ok := trailer.GetIndirectRef("Root")
	if !ok {
		return 0, fmt.Errorf("trailer has no /Root reference: %w", core.ErrMissingTrailer)
	}

	// Collect the objects to write in ascending order
	var nums []int
	objects := make(map[int]core.Object)
	for _, ref := range doc.Refs() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		obj, ok := doc.Lookup(ref.Number)
		if !ok || ref.Number <= 0 || isContainer(obj) {
			continue
		}
		nums = append(nums, ref.Number)
		objects[ref.Number] = generationZero(obj)
	}
	sort.Ints(nums)
	if _, ok := objects[root.Number]; !ok {
		return 0, fmt.Errorf("catalog %s is not in the document: %w", root, core.ErrMissingTrailer)
	}

	next := 1
	if len(nums) > 0 {
		next = nums[len(nums)-1] + 1
	}

	var body bytes.Buffer
	body.WriteString(header)
	entries := map[int]xref{0: {0, 0, 65535}}

	// Pack objects into object streams
	packed := make(map[int]bool)
	var streams []*core.IndirectObject
	if cfg.objectStreams > 0 {
		var group []int
		flush := func() error {
			if len(group) == 0 {
				return nil
			}
			s, err := objectStream(group, objects)
			if err != nil {
				return err
			}
			num := next
			next++
			for i, member := range group {
				entries[member] = xref{2, int64(num), int64(i)}
				packed[member] = true
			}
			streams = append(streams, &core.IndirectObject{Ref: core.IndirectRef{Number: num}, Object: s})
			group = nil
			return nil
		}
		for _, num := range nums {
			if _, isStream := objects[num].(*core.Stream); isStream {
				continue
			}
			group = append(group, num)
			if len(group) == cfg.objectStreams {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}
		if err := flush(); err != nil {
			return 0, err
		}
	}

	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if packed[num] {
			continue
		}
		entries[num] = xref{1, int64(body.Len()), 0}
		writeIndirect(&body, num, objects[num])
	}
	for _, s := range streams {
		entries[s.Ref.Number] = xref{1, int64(body.Len()), 0}
		writeIndirect(&body, s.Ref.Number, s.Object)
	}

	// The cross-reference stream describes itself too
	xrefNum := next
	xrefOffset := body.Len()
	entries[xrefNum] = xref{1, int64(xrefOffset), 0}

	dict := core.Dict{
		"Type": core.Name("XRef"),
		"Size": core.Int(xrefNum + 1),
		"Root": core.IndirectRef{Number: root.Number},
	}
	if info, ok := trailer.GetIndirectRef("Info"); ok {
		if _, live := objects[info.Number]; live {
			dict["Info"] = core.IndirectRef{Number: info.Number}
		}
	}
	dict["ID"] = fileID(trailer, body.Bytes())

	data, index, widths := xrefData(entries)
	dict["W"] = core.Array{core.Int(widths[0]), core.Int(widths[1]), core.Int(widths[2])}
	dict["Index"] = index
	compressed, err := filters.FlateEncode(data)
	if err != nil {
		return 0, fmt.Errorf("compressing cross-reference stream: %w", err)
	}
	dict["Filter"] = core.Name("FlateDecode")
	writeIndirect(&body, xrefNum, core.NewStream(dict, compressed))
	fmt.Fprintf(&body, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	log.WithFields(logrus.Fields{
		"objects":        len(nums),
		"object_streams": len(streams),
		"bytes":          body.Len(),
	}).Debug("serialized document")

	n, err := w.Write(body.Bytes())
	return int64(n), err
}

// generationZero rewrites every reference in obj to generation 0, the
// generation all objects are written with.
func generationZero(obj core.Object) core.Object {
	return resolver.Rewrite(obj, func(ref core.IndirectRef) core.Object {
		return core.IndirectRef{Number: ref.Number}
	})
}

// isContainer reports whether obj is an object stream or cross-reference
// stream, which are regenerated rather than copied.
func isContainer(obj core.Object) bool {
	s, ok := obj.(*core.Stream)
	if !ok {
		return false
	}
	t, _ := s.Dict.GetName("Type")
	return t == "ObjStm" || t == "XRef"
}

func writeIndirect(buf *bytes.Buffer, num int, obj core.Object) {
	buf.WriteString(strconv.Itoa(num))
	buf.WriteString(" 0 obj\n")
	core.WriteObject(buf, obj)
	buf.WriteString("\nendobj\n")
}

// objectStream packs the given objects into a Flate-compressed /ObjStm.
func objectStream(members []int, objects map[int]core.Object) (*core.Stream, error) {
	var head, content bytes.Buffer
	for i, num := range members {
		if i > 0 {
			head.WriteByte(' ')
			content.WriteByte('\n')
		}
		fmt.Fprintf(&head, "%d %d", num, content.Len())
		core.WriteObject(&content, objects[num])
	}
	head.WriteByte('\n')
	first := head.Len()
	head.Write(content.Bytes())

	data, err := filters.FlateEncode(head.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compressing object stream: %w", err)
	}
	return core.NewStream(core.Dict{
		"Type":   core.Name("ObjStm"),
		"N":      core.Int(len(members)),
		"First":  core.Int(first),
		"Filter": core.Name("FlateDecode"),
	}, data), nil
}

// fileID keeps a well-formed trailer /ID and otherwise derives both
// halves from an MD5 of the body.
func fileID(trailer core.Dict, body []byte) core.Array {
	if id, ok := trailer.GetArray("ID"); ok && len(id) == 2 {
		_, ok1 := id[0].(core.String)
		_, ok2 := id[1].(core.String)
		if ok1 && ok2 {
			return core.Array{id[0], id[1]}
		}
	}
	sum := md5.Sum(body)
	return core.Array{core.String(sum[:]), core.String(sum[:])}
}

// xrefData encodes the rows in ascending object number, grouped into
// consecutive runs for /Index, with /W sized to the largest values.
func xrefData(entries map[int]xref) ([]byte, core.Array, [3]int) {
	nums := make([]int, 0, len(entries))
	for num := range entries {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	var largest [3]int64
	for _, e := range entries {
		for i := range e {
			if e[i] > largest[i] {
				largest[i] = e[i]
			}
		}
	}
	var widths [3]int
	for i := range widths {
		widths[i] = bytesFor(largest[i])
	}

	var index core.Array
	start := 0
	for i := 1; i <= len(nums); i++ {
		if i == len(nums) || nums[i] != nums[i-1]+1 {
			index = append(index, core.Int(nums[start]), core.Int(i-start))
			start = i
		}
	}

	data := make([]byte, 0, len(nums)*(widths[0]+widths[1]+widths[2]))
	for _, num := range nums {
		e := entries[num]
		for i := range e {
			for b := widths[i] - 1; b >= 0; b-- {
				data = append(data, byte(e[i]>>(8*uint(b))))
			}
		}
	}
	return data, index, widths
}

// bytesFor returns how many bytes are needed to store v, at least one.
func bytesFor(v int64) int {
	n := 1
	for n < 8 && v >= int64(1)<<(8*uint(n)) {
		n++
	}
	return n
}

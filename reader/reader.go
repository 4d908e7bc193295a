package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/logging"
)

// ErrObjectNotFound is returned for references to free or absent objects.
var ErrObjectNotFound = errors.New("object not found")

// headerWindow is how far into the file the %PDF- marker may appear.
const headerWindow = 1024

// Version represents a PDF version
type Version struct {
	Major int
	Minor int
}

// String returns the version as a string (e.g., "1.7")
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Reader gives access to the indirect objects of one PDF file. It is safe
// for concurrent use.
type Reader struct {
	data    []byte
	version Version
	table   *core.XRefTable
	trailer core.Dict
	log     *logrus.Entry

	mu      sync.Mutex
	cache   map[int]core.Object
	objStms map[int]*core.ObjectStream
	scanned *core.ScanResult
	repairs []string
}

// Ensure Reader can resolve indirect stream lengths
var _ core.ReferenceResolver = (*Reader)(nil)

// New parses the cross-reference structure of data. Objects are parsed on
// first access. data must not be modified while the Reader is in use.
func New(data []byte, opts ...Option) (*Reader, error) {
	return NewContext(context.Background(), data, opts...)
}

// NewContext is New with a context that is checked between objects while
// the file is being repaired.
func NewContext(ctx context.Context, data []byte, opts ...Option) (*Reader, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input: %w", core.ErrUnresolvableXref)
	}

	r := &Reader{
		data:    data,
		cache:   make(map[int]core.Object),
		objStms: make(map[int]*core.ObjectStream),
		log:     logging.Component(cfg.logger, "reader"),
	}

	version, err := parseHeader(data)
	if err != nil {
		if cfg.strict {
			return nil, err
		}
		r.noteRepair("header: %v", err)
		version = Version{Major: 1, Minor: 4}
	}
	r.version = version

	err = r.loadXRef()
	if err == nil {
		_, err = r.Catalog()
	}
	if err != nil {
		if cfg.strict {
			return nil, err
		}
		r.noteRepair("cross-reference: %v", err)
		if err := r.rebuild(ctx); err != nil {
			return nil, err
		}
	}
	if r.table.Broken {
		r.noteRepair("an older cross-reference section is unreadable")
	}

	r.log.WithFields(logrus.Fields{
		"version":  r.version.String(),
		"objects":  len(r.table.Live()),
		"repaired": r.Repaired(),
	}).Debug("opened document")
	return r, nil
}

// parseHeader finds "%PDF-x.y" within the first kilobyte.
func parseHeader(data []byte) (Version, error) {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return Version{}, fmt.Errorf("missing %%PDF- header")
	}
	rest := data[idx+5:]
	end := 0
	for end < len(rest) && end < 8 && (rest[end] == '.' || (rest[end] >= '0' && rest[end] <= '9')) {
		end++
	}
	majorText, minorText, ok := bytes.Cut(rest[:end], []byte("."))
	if !ok {
		return Version{}, fmt.Errorf("invalid version format: %q", rest[:end])
	}
	major, err1 := strconv.Atoi(string(majorText))
	minor, err2 := strconv.Atoi(string(minorText))
	if err1 != nil || err2 != nil {
		return Version{}, fmt.Errorf("invalid version format: %q", rest[:end])
	}
	return Version{Major: major, Minor: minor}, nil
}

// loadXRef reads the cross-reference chain starting at the last startxref.
func (r *Reader) loadXRef() error {
	start, err := core.FindStartXRef(r.data)
	if err != nil {
		return err
	}
	table, err := core.LoadXRefChain(r.data, start)
	if err != nil {
		return err
	}
	if len(table.Live()) == 0 {
		return fmt.Errorf("cross-reference table lists no objects")
	}
	if !table.Trailer.Has("Root") {
		return fmt.Errorf("trailer has no /Root: %w", core.ErrMissingTrailer)
	}
	r.table = table
	r.trailer = table.Trailer
	return nil
}

// Version returns the header version
func (r *Reader) Version() Version {
	return r.version
}

// Trailer returns a copy of the merged trailer dictionary
func (r *Reader) Trailer() core.Dict {
	return r.trailer.Clone()
}

// XRefTable returns the cross-reference table in use, which is the
// rebuilt one after a repair.
func (r *Reader) XRefTable() *core.XRefTable {
	return r.table
}

// Encrypted reports whether the trailer names an /Encrypt dictionary.
func (r *Reader) Encrypted() bool {
	return r.trailer.Has("Encrypt")
}

// Size returns one more than the highest object number in use.
func (r *Reader) Size() int {
	live := r.table.Live()
	if len(live) == 0 {
		return 1
	}
	return live[len(live)-1] + 1
}

// Refs returns references to every live object in ascending order.
func (r *Reader) Refs() []core.IndirectRef {
	live := r.table.Live()
	refs := make([]core.IndirectRef, 0, len(live))
	for _, num := range live {
		entry, _ := r.table.Get(num)
		gen := 0
		if entry.Type == core.XRefInUse {
			gen = entry.Generation
		}
		refs = append(refs, core.IndirectRef{Number: num, Generation: gen})
	}
	return refs
}

// Catalog resolves the trailer /Root.
func (r *Reader) Catalog() (core.Dict, error) {
	ref, ok := r.trailer.GetIndirectRef("Root")
	if !ok {
		if d, ok := r.trailer.GetDict("Root"); ok {
			return d, nil
		}
		return nil, fmt.Errorf("invalid /Root %v: %w", r.trailer.Get("Root"), core.ErrMissingTrailer)
	}
	obj, err := r.Object(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}
	catalog, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary: %T", obj)
	}
	return catalog, nil
}

// Repaired reports whether any repair strategy was needed.
func (r *Reader) Repaired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.repairs) > 0
}

// Repairs describes each repair applied so far. Lazily parsed objects can
// add entries after New returns.
func (r *Reader) Repairs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.repairs...)
}

func (r *Reader) noteRepair(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.repairs = append(r.repairs, msg)
	r.mu.Unlock()
	r.log.WithField("repair", msg).Debug("repaired damaged structure")
}

// ObjectStreams maps the number of every object stream in the file to the
// object numbers its header lists. ctx is checked between objects.
func (r *Reader) ObjectStreams(ctx context.Context) (map[int][]int, error) {
	out := make(map[int][]int)
	for _, num := range r.table.Live() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, _ := r.table.Get(num)
		if entry.Type != core.XRefInUse {
			continue
		}
		obj, err := r.Object(core.IndirectRef{Number: num, Generation: entry.Generation})
		if err != nil {
			continue
		}
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		if t, _ := s.Dict.GetName("Type"); t != "ObjStm" {
			continue
		}
		os, err := r.objectStream(num)
		if err != nil {
			continue
		}
		out[num] = os.ObjectNumbers()
	}
	return out, nil
}

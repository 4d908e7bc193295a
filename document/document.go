package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/logging"
	"github.com/tsawler/safepdf/pages"
	"github.com/tsawler/safepdf/reader"
)

// maxRefChain bounds how many references Resolve follows when a reference
// points at another reference.
const maxRefChain = 32

// Document is an immutable PDF object graph. It is safe for concurrent use.
type Document struct {
	src     *reader.Reader
	parent  *Document
	objects map[int]core.Object // nil value deletes
	trailer core.Dict
	log     *logrus.Entry

	mu       sync.Mutex
	dangling map[int]bool

	treeOnce sync.Once
	tree     *pages.Tree
}

// Open parses data and returns a document backed by it. data must not be
// modified while the document is in use.
func Open(data []byte, opts ...Option) (*Document, error) {
	return OpenContext(context.Background(), data, opts...)
}

// OpenContext is Open with a context checked during repair.
func OpenContext(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	cfg := newConfig(opts)
	r, err := reader.NewContext(ctx, data, cfg.readers...)
	if err != nil {
		return nil, err
	}
	d := FromReader(r)
	d.log = logging.Component(cfg.logger, "document")
	return d, nil
}

// FromReader wraps an existing reader.
func FromReader(r *reader.Reader) *Document {
	return &Document{
		src:      r,
		trailer:  r.Trailer(),
		log:      logging.Component(nil, "document"),
		dangling: make(map[int]bool),
	}
}

// New builds a document from a trailer and a set of objects keyed by
// object number. The maps are copied; the objects are not.
func New(trailer core.Dict, objects map[int]core.Object, opts ...Option) *Document {
	cfg := newConfig(opts)
	d := &Document{
		objects:  make(map[int]core.Object, len(objects)),
		trailer:  trailer.Clone(),
		log:      logging.Component(cfg.logger, "document"),
		dangling: make(map[int]bool),
	}
	for num, obj := range objects {
		if num > 0 && obj != nil {
			d.objects[num] = obj
		}
	}
	return d
}

// Derive returns a new document that sees changes layered over d. A nil
// value in changes deletes that object. A nil trailer keeps d's trailer.
func (d *Document) Derive(changes map[int]core.Object, trailer core.Dict) *Document {
	if trailer == nil {
		trailer = d.trailer
	}
	child := &Document{
		parent:   d,
		objects:  make(map[int]core.Object, len(changes)),
		trailer:  trailer.Clone(),
		log:      d.log,
		dangling: make(map[int]bool),
	}
	for num, obj := range changes {
		if num > 0 {
			child.objects[num] = obj
		}
	}
	return child
}

// Lookup returns the object numbered num and whether it exists.
func (d *Document) Lookup(num int) (core.Object, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if obj, ok := cur.objects[num]; ok {
			return obj, obj != nil
		}
		if cur.src != nil {
			obj, err := cur.src.Object(core.IndirectRef{Number: num})
			if err != nil {
				if !errors.Is(err, reader.ErrObjectNotFound) {
					d.log.WithFields(logrus.Fields{"object": num, "error": err}).Debug("object does not parse")
				}
				return nil, false
			}
			return obj, true
		}
	}
	return nil, false
}

// Object returns the object ref points to, or core.Null when there is
// none. Missing objects are recorded as dangling. The returned object is
// shared and must not be modified.
func (d *Document) Object(ref core.IndirectRef) core.Object {
	if obj, ok := d.Lookup(ref.Number); ok {
		return obj
	}
	d.mu.Lock()
	d.dangling[ref.Number] = true
	d.mu.Unlock()
	return core.Null{}
}

// Resolve follows indirect references until it reaches a direct object.
// It implements pages.Resolver.
func (d *Document) Resolve(obj core.Object) core.Object {
	for i := 0; i < maxRefChain; i++ {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			if obj == nil {
				return core.Null{}
			}
			return obj
		}
		obj = d.Object(ref)
	}
	return core.Null{}
}

// ResolveDict resolves obj and returns it as a dictionary. Streams yield
// their dictionary.
func (d *Document) ResolveDict(obj core.Object) (core.Dict, bool) {
	switch v := d.Resolve(obj).(type) {
	case core.Dict:
		return v, true
	case *core.Stream:
		return v.Dict, true
	}
	return nil, false
}

// Trailer returns a copy of the trailer dictionary.
func (d *Document) Trailer() core.Dict {
	return d.trailer.Clone()
}

// Catalog resolves the trailer /Root.
func (d *Document) Catalog() (core.Dict, error) {
	root := d.trailer.Get("Root")
	if root == nil {
		return nil, fmt.Errorf("trailer has no /Root: %w", core.ErrMissingTrailer)
	}
	catalog, ok := d.Resolve(root).(core.Dict)
	if !ok {
		return nil, fmt.Errorf("catalog %v is not a dictionary: %w", root, core.ErrMissingTrailer)
	}
	return catalog, nil
}

// PageTree returns the page tree below the catalog's /Pages. A document
// without a usable catalog has an empty tree.
func (d *Document) PageTree() *pages.Tree {
	d.treeOnce.Do(func() {
		var root core.Object = core.Null{}
		if catalog, err := d.Catalog(); err == nil {
			root = catalog.Get("Pages")
		}
		d.tree = pages.NewTree(d, root)
	})
	return d.tree
}

// Pages returns a fresh iterator over the pages in document order.
func (d *Document) Pages() *pages.Iterator {
	return d.PageTree().Iterator()
}

// PageCount returns the number of pages reachable from the catalog.
func (d *Document) PageCount() int {
	return d.PageTree().Count()
}

// Page returns the page at the given index (0-based).
func (d *Document) Page(index int) (*pages.Page, error) {
	return d.PageTree().Page(index)
}

// Refs returns references to every object in the document in ascending
// order. Objects that fail to parse are still listed; they resolve to null.
func (d *Document) Refs() []core.IndirectRef {
	live := make(map[int]bool)
	var chain []*Document
	for cur := d; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	// Apply from the oldest layer so newer deletions win
	for i := len(chain) - 1; i >= 0; i-- {
		cur := chain[i]
		if cur.src != nil {
			for _, ref := range cur.src.Refs() {
				live[ref.Number] = true
			}
		}
		for num, obj := range cur.objects {
			if obj == nil {
				delete(live, num)
			} else {
				live[num] = true
			}
		}
	}

	nums := make([]int, 0, len(live))
	for num := range live {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	refs := make([]core.IndirectRef, len(nums))
	for i, num := range nums {
		refs[i] = core.IndirectRef{Number: num}
	}
	return refs
}

// MaxObjectNumber returns the highest object number in use, or 0.
func (d *Document) MaxObjectNumber() int {
	refs := d.Refs()
	if len(refs) == 0 {
		return 0
	}
	return refs[len(refs)-1].Number
}

// Source returns the reader at the bottom of the overlay chain, or nil for
// documents built with New.
func (d *Document) Source() *reader.Reader {
	cur := d
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur.src
}

// Repaired reports whether the source file needed repair.
func (d *Document) Repaired() bool {
	if src := d.Source(); src != nil {
		return src.Repaired()
	}
	return false
}

// Repairs describes each repair applied to the source file.
func (d *Document) Repairs() []string {
	if src := d.Source(); src != nil {
		return src.Repairs()
	}
	return nil
}

// Encrypted reports whether the trailer names an /Encrypt dictionary.
func (d *Document) Encrypted() bool {
	return d.trailer.Has("Encrypt")
}

// Dangling returns the references resolved so far that had no object.
func (d *Document) Dangling() []core.IndirectRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	nums := make([]int, 0, len(d.dangling))
	for num := range d.dangling {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	refs := make([]core.IndirectRef, len(nums))
	for i, num := range nums {
		refs[i] = core.IndirectRef{Number: num}
	}
	return refs
}

// ObjectStreams maps each object stream still present in the document to
// the object numbers it contains. ctx is checked between objects.
func (d *Document) ObjectStreams(ctx context.Context) (map[int][]int, error) {
	out := make(map[int][]int)
	for _, ref := range d.Refs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		obj, ok := d.Lookup(ref.Number)
		if !ok {
			continue
		}
		s, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		if t, _ := s.Dict.GetName("Type"); t != "ObjStm" {
			continue
		}
		os, err := core.NewObjectStream(s)
		if err != nil {
			d.log.WithFields(logrus.Fields{"object": ref.Number, "error": err}).Debug("unreadable object stream")
			continue
		}
		out[ref.Number] = os.ObjectNumbers()
	}
	return out, nil
}

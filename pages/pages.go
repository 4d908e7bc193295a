package pages

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/model"
)

// MaxInheritDepth bounds the /Parent walk for inherited attributes.
const MaxInheritDepth = 64

// Letter is the default MediaBox when no ancestor supplies one.
var Letter = model.Rect{LLX: 0, LLY: 0, URX: 612, URY: 792}

// Resolver resolves indirect references. Implementations return
// core.Null{} for references they cannot resolve.
type Resolver interface {
	Resolve(obj core.Object) core.Object
}

// Catalog is a view over the document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver Resolver
}

// NewCatalog creates a new catalog view from a dictionary
func NewCatalog(dict core.Dict, resolver Resolver) *Catalog {
	return &Catalog{dict: dict, resolver: resolver}
}

// Dict returns the underlying dictionary
func (c *Catalog) Dict() core.Dict {
	return c.dict
}

// Type returns the catalog type (should be "Catalog")
func (c *Catalog) Type() string {
	name, _ := c.dict.GetName("Type")
	return string(name)
}

// Pages returns the page tree rooted at /Pages
func (c *Catalog) Pages() *Tree {
	return NewTree(c.resolver, c.dict.Get("Pages"))
}

// Names returns the resolved /Names dictionary, or nil
func (c *Catalog) Names() core.Dict {
	d, _ := c.resolver.Resolve(c.dict.Get("Names")).(core.Dict)
	return d
}

// AcroForm returns the resolved /AcroForm dictionary, or nil
func (c *Catalog) AcroForm() core.Dict {
	d, _ := c.resolver.Resolve(c.dict.Get("AcroForm")).(core.Dict)
	return d
}

// Metadata returns the XMP metadata stream if present
func (c *Catalog) Metadata() *core.Stream {
	s, _ := c.resolver.Resolve(c.dict.Get("Metadata")).(*core.Stream)
	return s
}

// Page is a view over one /Page dictionary.
type Page struct {
	// Index is the 0-based position in document order.
	Index int
	// Ref is the page's reference; zero for a page given inline in Kids.
	Ref  core.IndirectRef
	Dict core.Dict

	resolver Resolver
}

// NewPage creates a page view
func NewPage(index int, ref core.IndirectRef, dict core.Dict, resolver Resolver) *Page {
	return &Page{Index: index, Ref: ref, Dict: dict, resolver: resolver}
}

// Inherited looks key up on the page and then on each ancestor. The walk
// stops after MaxInheritDepth levels or when /Parent does not resolve to a
// dictionary. Values that resolve to null count as absent.
func (p *Page) Inherited(key string) (core.Object, bool) {
	node := p.Dict
	for depth := 0; depth < MaxInheritDepth && node != nil; depth++ {
		if v, ok := node[key]; ok {
			if resolved := p.resolver.Resolve(v); !isNull(resolved) {
				return resolved, true
			}
		}
		node, _ = p.resolver.Resolve(node.Get("Parent")).(core.Dict)
	}
	return nil, false
}

// Resources returns the inherited resources dictionary. A page without
// resources gets an empty dictionary.
func (p *Page) Resources() core.Dict {
	if obj, ok := p.Inherited("Resources"); ok {
		if d, ok := obj.(core.Dict); ok {
			return d
		}
	}
	return core.Dict{}
}

// MediaBox returns the inherited media box, US Letter when absent or
// unusable.
func (p *Page) MediaBox() model.Rect {
	if obj, ok := p.Inherited("MediaBox"); ok {
		if r, ok := RectFromObject(p.resolver, obj); ok && !r.IsEmpty() {
			return r
		}
	}
	return Letter
}

// CropBox returns the inherited crop box clipped to the media box. It
// defaults to the media box.
func (p *Page) CropBox() model.Rect {
	media := p.MediaBox()
	if obj, ok := p.Inherited("CropBox"); ok {
		if r, ok := RectFromObject(p.resolver, obj); ok {
			if clipped := r.Intersect(media); !clipped.IsEmpty() {
				return clipped
			}
		}
	}
	return media
}

// Rotate returns the inherited rotation normalized to 0, 90, 180 or 270.
// Values that are not multiples of 90 count as 0.
func (p *Page) Rotate() int {
	obj, ok := p.Inherited("Rotate")
	if !ok {
		return 0
	}
	f, ok := core.Number(obj)
	if !ok || f != math.Trunc(f) {
		return 0
	}
	return NormalizeRotation(int(f))
}

// NormalizeRotation maps any multiple of 90 into [0, 360). Other values
// yield 0.
func NormalizeRotation(deg int) int {
	if deg%90 != 0 {
		return 0
	}
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Contents returns the page content streams in order. Entries that do not
// resolve to streams are skipped.
func (p *Page) Contents() []*core.Stream {
	switch v := p.resolver.Resolve(p.Dict.Get("Contents")).(type) {
	case *core.Stream:
		return []*core.Stream{v}
	case core.Array:
		streams := make([]*core.Stream, 0, len(v))
		for _, elem := range v {
			if s, ok := p.resolver.Resolve(elem).(*core.Stream); ok {
				streams = append(streams, s)
			}
		}
		return streams
	}
	return nil
}

// Content decodes and concatenates the content streams, separated by
// newlines as the format requires.
func (p *Page) Content() ([]byte, error) {
	var buf bytes.Buffer
	for i, s := range p.Contents() {
		data, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("page %d content stream %d: %w", p.Index, i, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Annotations returns the resolved annotation dictionaries.
func (p *Page) Annotations() []core.Dict {
	arr, _ := p.resolver.Resolve(p.Dict.Get("Annots")).(core.Array)
	annots := make([]core.Dict, 0, len(arr))
	for _, a := range arr {
		if d, ok := p.resolver.Resolve(a).(core.Dict); ok {
			annots = append(annots, d)
		}
	}
	return annots
}

// RectFromObject reads a four-number array, resolving indirect elements.
func RectFromObject(resolver Resolver, obj core.Object) (model.Rect, bool) {
	arr, ok := resolver.Resolve(obj).(core.Array)
	if !ok || len(arr) != 4 {
		return model.Rect{}, false
	}
	var v [4]float64
	for i, elem := range arr {
		f, ok := core.Number(resolver.Resolve(elem))
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return model.Rect{}, false
		}
		v[i] = f
	}
	return model.NewRect(v[0], v[1], v[2], v[3]), true
}

// RectArray renders a rectangle as a PDF array, using integers where the
// coordinates are whole.
func RectArray(r model.Rect) core.Array {
	arr := make(core.Array, 0, 4)
	for _, f := range r.Array() {
		arr = append(arr, NumberObject(f))
	}
	return arr
}

// NumberObject returns an Int for whole values and a Real otherwise.
func NumberObject(f float64) core.Object {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return core.Int(int64(f))
	}
	return core.Real(f)
}

func isNull(obj core.Object) bool {
	if obj == nil {
		return true
	}
	_, ok := obj.(core.Null)
	return ok
}

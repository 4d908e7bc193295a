package resolver

import (
	"context"
	"sort"

	"github.com/tsawler/safepdf/core"
)

// ObjectSource looks objects up by number. *document.Document implements it.
type ObjectSource interface {
	Lookup(num int) (core.Object, bool)
}

// SkipFunc reports whether the object numbered num should be left out of a
// closure. Skipped objects are neither included nor traversed.
type SkipFunc func(num int, obj core.Object) bool

// Walker computes object closures over an ObjectSource.
type Walker struct {
	src      ObjectSource
	skip     SkipFunc
	skipKeys map[string]bool
}

// Option configures the walker
type Option func(*Walker)

// WithSkip prunes objects from the walk.
func WithSkip(fn SkipFunc) Option {
	return func(w *Walker) {
		w.skip = fn
	}
}

// WithSkipKeys ignores references held under the given dictionary keys,
// for example "Parent" when copying a page without its tree.
func WithSkipKeys(keys ...string) Option {
	return func(w *Walker) {
		for _, k := range keys {
			w.skipKeys[k] = true
		}
	}
}

// NewWalker creates a walker over src.
func NewWalker(src ObjectSource, opts ...Option) *Walker {
	w := &Walker{src: src, skipKeys: make(map[string]bool)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Closure is the set of objects reachable from a set of roots.
type Closure struct {
	// Order lists object numbers in breadth-first discovery order.
	Order []int
	// Missing lists referenced numbers with no object, ascending.
	Missing []int

	set map[int]bool
}

// Contains reports whether num is in the closure.
func (c *Closure) Contains(num int) bool {
	return c.set[num]
}

// Len returns the number of objects in the closure.
func (c *Closure) Len() int {
	return len(c.Order)
}

// Sorted returns the closure's object numbers in ascending order.
func (c *Closure) Sorted() []int {
	nums := append([]int(nil), c.Order...)
	sort.Ints(nums)
	return nums
}

// Closure walks breadth first from roots, which may be references or
// direct objects holding references. Dictionary keys are visited in sorted
// order so the discovery order is deterministic. ctx is checked between
// objects.
func (w *Walker) Closure(ctx context.Context, roots ...core.Object) (*Closure, error) {
	c := &Closure{set: make(map[int]bool)}
	seen := make(map[int]bool)
	missing := make(map[int]bool)

	var queue []int
	enqueue := func(refs []core.IndirectRef) {
		for _, ref := range refs {
			if !seen[ref.Number] {
				seen[ref.Number] = true
				queue = append(queue, ref.Number)
			}
		}
	}
	for _, root := range roots {
		if ref, ok := root.(core.IndirectRef); ok {
			enqueue([]core.IndirectRef{ref})
			continue
		}
		enqueue(w.references(root))
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num := queue[0]
		queue = queue[1:]

		obj, ok := w.src.Lookup(num)
		if !ok {
			missing[num] = true
			continue
		}
		if w.skip != nil && w.skip(num, obj) {
			continue
		}
		c.set[num] = true
		c.Order = append(c.Order, num)
		enqueue(w.references(obj))
	}

	for num := range missing {
		c.Missing = append(c.Missing, num)
	}
	sort.Ints(c.Missing)
	return c, nil
}

func (w *Walker) references(obj core.Object) []core.IndirectRef {
	var refs []core.IndirectRef
	stack := []core.Object{obj}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var dict core.Dict
		switch v := cur.(type) {
		case core.IndirectRef:
			refs = append(refs, v)
			continue
		case core.Array:
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, v[i])
			}
			continue
		case core.Dict:
			dict = v
		case *core.Stream:
			dict = v.Dict
		default:
			continue
		}
		keys := dict.Keys()
		for i := len(keys) - 1; i >= 0; i-- {
			if !w.skipKeys[keys[i]] {
				stack = append(stack, dict[keys[i]])
			}
		}
	}
	return refs
}

// References returns the indirect references held directly or in nested
// direct objects of obj, in sorted key order.
func References(obj core.Object) []core.IndirectRef {
	return NewWalker(nil).references(obj)
}

// Rewrite returns a deep copy of obj with every indirect reference
// replaced by fn(ref). Streams are copied with their data shared. Nesting
// of direct objects is bounded by the parser.
func Rewrite(obj core.Object, fn func(ref core.IndirectRef) core.Object) core.Object {
	switch v := obj.(type) {
	case core.IndirectRef:
		return fn(v)
	case core.Array:
		out := make(core.Array, len(v))
		for i, e := range v {
			out[i] = Rewrite(e, fn)
		}
		return out
	case core.Dict:
		out := make(core.Dict, len(v))
		for k, e := range v {
			out[k] = Rewrite(e, fn)
		}
		return out
	case *core.Stream:
		return &core.Stream{Dict: Rewrite(v.Dict, fn).(core.Dict), Data: v.Data}
	}
	return obj
}

// Renumber rewrites references through mapping. References with no entry
// become null.
func Renumber(obj core.Object, mapping map[int]int) core.Object {
	return Rewrite(obj, func(ref core.IndirectRef) core.Object {
		if n, ok := mapping[ref.Number]; ok {
			return core.IndirectRef{Number: n}
		}
		return core.Null{}
	})
}

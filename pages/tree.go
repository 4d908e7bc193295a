package pages

import (
	"fmt"
	"sync"

	"github.com/tsawler/safepdf/core"
)

// Tree is the page tree below one /Pages root.
type Tree struct {
	resolver Resolver
	root     core.Object

	once  sync.Once
	pages []*Page // Cached flattened page list
}

// NewTree creates a page tree. root is the catalog's /Pages value and may
// be a reference or a dictionary.
func NewTree(resolver Resolver, root core.Object) *Tree {
	return &Tree{resolver: resolver, root: root}
}

// Iterator returns a fresh iterator positioned before the first page.
func (t *Tree) Iterator() *Iterator {
	it := &Iterator{tree: t}
	it.Reset()
	return it
}

// Count returns the number of pages found by walking the tree. /Count
// entries are not trusted.
func (t *Tree) Count() int {
	return len(t.all())
}

// Page returns the page at the given index (0-based)
func (t *Tree) Page(index int) (*Page, error) {
	pages := t.all()
	if index < 0 || index >= len(pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(pages))
	}
	return pages[index], nil
}

// Pages returns all pages in document order
func (t *Tree) Pages() []*Page {
	return t.all()
}

func (t *Tree) all() []*Page {
	t.once.Do(func() {
		it := t.Iterator()
		for it.Next() {
			t.pages = append(t.pages, it.Page())
		}
	})
	return t.pages
}

// Iterator walks the page tree lazily in document order. The walk is
// iterative: an explicit stack of Kids arrays and a visited set of node
// references, so neither deep nor cyclic trees can exhaust the stack or
// loop.
type Iterator struct {
	tree    *Tree
	stack   []frame
	visited map[int]bool
	page    *Page
	index   int
}

type frame struct {
	kids core.Array
	next int
}

// Reset rewinds the iterator to the first page.
func (it *Iterator) Reset() {
	it.stack = []frame{{kids: core.Array{it.tree.root}}}
	it.visited = make(map[int]bool)
	it.page = nil
	it.index = 0
}

// Page returns the current page. It is valid after Next returns true.
func (it *Iterator) Page() *Page {
	return it.page
}

// Next advances to the next page and reports whether there is one.
func (it *Iterator) Next() bool {
	r := it.tree.resolver
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.next >= len(top.kids) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		kid := top.kids[top.next]
		top.next++

		ref, isRef := kid.(core.IndirectRef)
		if isRef {
			if it.visited[ref.Number] {
				continue
			}
			it.visited[ref.Number] = true
		}
		node, ok := r.Resolve(kid).(core.Dict)
		if !ok {
			continue
		}

		switch kind(node) {
		case "Pages":
			kids, _ := r.Resolve(node.Get("Kids")).(core.Array)
			it.stack = append(it.stack, frame{kids: kids})
		case "Page":
			it.page = NewPage(it.index, ref, node, r)
			it.index++
			return true
		}
	}
	it.page = nil
	return false
}

// kind classifies a page tree node. Nodes without /Type are classified by
// the presence of /Kids.
func kind(node core.Dict) string {
	switch t, _ := node.GetName("Type"); t {
	case "Pages", "Page":
		return string(t)
	case "":
		if node.Has("Kids") {
			return "Pages"
		}
		return "Page"
	}
	return ""
}

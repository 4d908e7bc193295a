package transform

import (
	"context"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/document"
	"github.com/tsawler/safepdf/pages"
	"github.com/tsawler/safepdf/resolver"
)

// Object numbers of the catalog and page tree root in assembled documents.
const (
	catalogNum = 1
	pagesNum   = 2
)

// inheritable lists the page attributes copied onto every page taken out
// of its tree.
var inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// Merge is [Transformer.Merge] with default settings.
func Merge(ctx context.Context, docs ...*document.Document) (*document.Document, error) {
	return New().Merge(ctx, docs...)
}

// Merge concatenates the pages of docs, in order, into a new document.
// Every copied object is renumbered into one space and each page carries
// its inherited attributes itself.
func (t *Transformer) Merge(ctx context.Context, docs ...*document.Document) (*document.Document, error) {
	if len(docs) == 0 {
		return nil, errorf("merge", core.IndirectRef{}, "no documents")
	}
	sels := make([]selection, 0, len(docs))
	for _, doc := range docs {
		if doc.Encrypted() {
			return nil, core.ErrEncrypted
		}
		sels = append(sels, selection{doc: doc, pages: doc.PageTree().Pages()})
	}
	out, err := assemble(ctx, sels, nil)
	if err != nil {
		return nil, err
	}
	t.log.WithField("documents", len(docs)).Debug("merged")
	return out, nil
}

// selection is a run of pages taken from one document.
type selection struct {
	doc   *document.Document
	pages []*pages.Page
}

// assemble builds a document holding the selected pages under a fresh
// page tree. Objects reachable from the pages are copied and renumbered;
// references to pages and tree nodes that were not selected become null.
// info, when set, is copied as the document information dictionary of the
// first selection.
func assemble(ctx context.Context, sels []selection, info core.Object) (*document.Document, error) {
	objects := make(map[int]core.Object)
	next := pagesNum + 1
	var kids core.Array
	trailer := core.Dict{"Root": core.IndirectRef{Number: catalogNum}}

	for si, sel := range sels {
		selected := make(map[int]bool, len(sel.pages))
		for _, p := range sel.pages {
			if p.Ref.Number > 0 {
				selected[p.Ref.Number] = true
			}
		}
		walker := resolver.NewWalker(sel.doc,
			resolver.WithSkipKeys("Parent"),
			resolver.WithSkip(func(num int, obj core.Object) bool {
				return isTreeNode(obj) && !selected[num]
			}))

		dicts := make([]core.Dict, len(sel.pages))
		roots := make([]core.Object, 0, len(sel.pages)+1)
		for i, p := range sel.pages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			dicts[i] = materialize(sel.doc, p)
			roots = append(roots, dicts[i])
		}
		if si == 0 && info != nil {
			roots = append(roots, info)
		}
		closure, err := walker.Closure(ctx, roots...)
		if err != nil {
			return nil, err
		}

		mapping := make(map[int]int, closure.Len()+len(sel.pages))
		pageNums := make([]int, len(sel.pages))
		for i, p := range sel.pages {
			pageNums[i] = next
			if p.Ref.Number > 0 {
				mapping[p.Ref.Number] = next
			}
			next++
		}
		nums := closure.Sorted()
		for _, num := range nums {
			if _, ok := mapping[num]; !ok {
				mapping[num] = next
				next++
			}
		}
		for _, num := range nums {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if selected[num] {
				continue
			}
			obj, _ := sel.doc.Lookup(num)
			objects[mapping[num]] = resolver.Renumber(obj, mapping)
		}
		for i, d := range dicts {
			page := resolver.Renumber(d, mapping).(core.Dict)
			page["Parent"] = core.IndirectRef{Number: pagesNum}
			objects[pageNums[i]] = page
			kids = append(kids, core.IndirectRef{Number: pageNums[i]})
		}
		if si == 0 && info != nil {
			trailer["Info"] = resolver.Renumber(info, mapping)
		}
	}

	objects[pagesNum] = core.Dict{
		"Type":  core.Name("Pages"),
		"Kids":  kids,
		"Count": core.Int(len(kids)),
	}
	objects[catalogNum] = core.Dict{
		"Type":  core.Name("Catalog"),
		"Pages": core.IndirectRef{Number: pagesNum},
	}
	return document.New(trailer, objects), nil
}

// materialize copies a page dictionary with its inherited attributes set
// on it directly and without its /Parent. Inherited values keep their
// references, so shared resources stay shared.
func materialize(doc *document.Document, p *pages.Page) core.Dict {
	d := p.Dict.Clone()
	delete(d, "Parent")
	for _, key := range inheritable {
		if _, ok := d[key]; ok {
			continue
		}
		if v, ok := inheritedRaw(doc, p.Dict, key); ok {
			d[key] = v
		}
	}
	if !d.Has("MediaBox") {
		d["MediaBox"] = pages.RectArray(p.MediaBox())
	}
	if rot := p.Rotate(); rot != 0 {
		d["Rotate"] = core.Int(rot)
	} else {
		delete(d, "Rotate")
	}
	return d
}

// inheritedRaw finds key on an ancestor of page without resolving the
// value found.
func inheritedRaw(doc *document.Document, page core.Dict, key string) (core.Object, bool) {
	node, _ := doc.Resolve(page["Parent"]).(core.Dict)
	for depth := 0; depth < pages.MaxInheritDepth && node != nil; depth++ {
		if v, ok := node[key]; ok {
			if _, null := doc.Resolve(v).(core.Null); !null {
				return v, true
			}
		}
		node, _ = doc.Resolve(node["Parent"]).(core.Dict)
	}
	return nil, false
}

// isTreeNode reports whether obj is a /Page or /Pages dictionary.
func isTreeNode(obj core.Object) bool {
	d, ok := obj.(core.Dict)
	if !ok {
		return false
	}
	t, _ := d.GetName("Type")
	return t == "Page" || t == "Pages"
}

// Package pages provides views over the PDF page tree.
//
// # Page Tree
//
// PDF documents organize pages in a tree of /Pages nodes whose /Kids end
// in /Page leaves. Page order is the in-order traversal of Kids. A
// [Tree] walks the hierarchy iteratively with a visited set, so cyclic
// Kids arrays terminate:
//
//	tree := pages.NewTree(resolver, catalog.Get("Pages"))
//	it := tree.Iterator()
//	for it.Next() {
//	    page := it.Page()
//	    ...
//	}
//	it.Reset() // walk again from the first page
//
// # Inherited Attributes
//
// Resources, MediaBox, CropBox and Rotate may be set on any ancestor.
// [Page.Inherited] walks /Parent links iteratively and gives up after
// [MaxInheritDepth] levels, so adversarial parent cycles end quietly.
// Parents are held as references into the document, never as pointers.
//
// # Object Resolution
//
// The [Resolver] interface abstracts object lookup:
//
//	type Resolver interface {
//	    Resolve(obj core.Object) core.Object
//	}
//
// Dangling references resolve to core.Null{}; the page tree never fails on
// them, it just skips what it cannot use.
package pages

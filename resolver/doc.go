// Package resolver walks the indirect-object graph of a PDF.
//
// PDF documents use indirect references (e.g., "5 0 R") to refer to objects
// stored elsewhere in the file. The graph is routinely cyclic: pages point
// at their parent, annotations point back at their page. This package
// computes object closures without recursion, and rewrites references when
// objects are copied between numbering spaces.
//
// # Closures
//
// A closure is every object reachable from a set of roots:
//
//	w := resolver.NewWalker(doc, resolver.WithSkipKeys("Parent"))
//	c, err := w.Closure(ctx, pageRef)
//
// The walk is breadth first over sorted dictionary keys, so Closure.Order
// is deterministic for a given input. Each object is visited once.
//
// # Rewriting
//
// Rewrite deep-copies an object and maps each reference through a
// function; Renumber is the common case of a fixed mapping where unmapped
// references become null:
//
//	copied := resolver.Renumber(obj, map[int]int{5: 1, 9: 2})
package resolver

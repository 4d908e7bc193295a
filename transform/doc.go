// Package transform rewrites documents: Merge, Split, Crop, Trim, Rotate
// and Reduce. Every function takes a context, leaves its input untouched
// and returns a new *document.Document, or an error and nothing else.
//
// Merge and Split copy the object closure of the pages they keep into a
// fresh numbering under a new page tree. Each copied page carries its own
// Resources, MediaBox, CropBox and Rotate, so nothing depends on the tree
// it came from. References to pages that were not kept become null.
//
// Crop, Trim and Rotate only replace page dictionaries; content streams
// are never rewritten.
//
// Reduce interprets page content to find the size at which each image is
// drawn and the characters each font shows, then downsamples and subsets
// accordingly:
//
//	doc, err := document.Open(data)
//	if err != nil {
//	    return err
//	}
//	small, err := transform.Reduce(ctx, doc, transform.Balanced)
//	if err != nil {
//	    return err
//	}
//	out, err := writer.Write(ctx, small, transform.Balanced.WriterOptions()...)
package transform

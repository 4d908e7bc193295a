// Package writer serializes a document into a fresh PDF file.
//
// Output always consists of a %PDF-1.7 header, every object in ascending
// object number with dictionary keys sorted, and one Flate-compressed
// cross-reference stream that also carries the trailer. The same document
// therefore always serializes to the same bytes:
//
//	out, err := writer.Write(ctx, doc)
//	out, err := writer.Write(ctx, doc, writer.WithObjectStreams(100))
//
// Object streams and cross-reference streams found in the input are never
// copied; the writer generates its own.
package writer

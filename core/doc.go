// Package core provides low-level PDF parsing primitives and object types.
//
// The object model is a closed set of types satisfying [Object]:
// [Null], [Bool], [Int], [Real], [String], [Name], [Array], [Dict],
// [*Stream] and [IndirectRef]. Callers switch on the concrete type.
//
// # Parsing
//
// [Lexer] tokenizes an immutable byte slice from any offset and
// [FindStartXRef] scans backward from the end of the file for the
// cross-reference offset. [Parser] builds objects and indirect object
// definitions from tokens, reconciling stream /Length values against the
// actual position of "endstream".
//
// # Cross-Reference Data
//
// [LoadXRefChain] reads classic tables and cross-reference streams and
// follows /Prev and /XRefStm links. [ScanObjects] is the repair path: a
// linear scan for object headers and trailer dictionaries.
//
// # Object Streams
//
// [ObjectStream] (PDF 1.5+) holds compressed objects addressed by index.
//
// # Stream Decoding
//
// [Stream.Decode] applies the declared filter chain. Filters the engine
// cannot decode fail with [*UnsupportedFilterError].
package core

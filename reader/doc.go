// Package reader builds the object graph of a PDF held in memory.
//
// A [Reader] locates the final startxref, follows the /Prev chain of
// cross-reference sections (classic tables, xref streams and hybrid
// files) and parses indirect objects lazily on first access, caching the
// result. Objects stored in object streams are read through
// [core.ObjectStream].
//
// # Repair
//
// Damaged files are read best-effort. When the cross-reference data is
// missing or unusable, or an object is not found at its recorded offset,
// the whole file is re-scanned for "N G obj" headers and the table is
// rebuilt; physically later definitions win. Streams whose /Length does
// not land on "endstream" are recovered by scanning for the marker. Each
// repair sets [Reader.Repaired] and is described by [Reader.Repairs]:
//
//	r, err := reader.New(data)
//	if err != nil {
//	    return err // core.ErrMissingTrailer or core.ErrUnresolvableXref
//	}
//	if r.Repaired() {
//	    log.Println(r.Repairs())
//	}
//
// The reader never touches the filesystem; callers hand it the bytes.
package reader

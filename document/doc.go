// Package document provides the immutable document model over a parsed
// or constructed PDF.
//
// A Document is an arena of objects addressed by object number, a trailer
// and the catalog it names. Documents opened from bytes read objects lazily
// through a reader.Reader. Transformations never modify a Document; they
// call Derive to layer changed objects over an existing one, or New to
// build a document from scratch.
//
// Resolution never fails: a reference to an object that does not exist
// resolves to core.Null and is recorded in Dangling.
//
//	doc, err := document.Open(data)
//	if err != nil {
//		return err
//	}
//	for it := doc.Pages(); it.Next(); {
//		page := it.Page()
//		fmt.Println(page.Index, page.MediaBox())
//	}
package document

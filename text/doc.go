// Package text locates the visible text of a page.
//
// An [Extractor] interprets page content with the graphicsstate package
// and decodes shown strings with the font package. Each show operator
// yields a [Fragment] with its text, its box in default user space and its
// dominant [Direction]:
//
//	frags, err := text.NewExtractor(doc).Extract(ctx, page)
//	if err != nil {
//	    return err
//	}
//	label := text.Within(frags, linkRect)
//
// [Within] gathers the fragments centred in a rectangle in reading order,
// which is how the risk scanner reads the label drawn under a link
// annotation. Directions come from the Unicode bidirectional classes of
// golang.org/x/text/unicode/bidi:
//
//   - LTR - left-to-right (Latin, CJK, etc.)
//   - RTL - right-to-left (Arabic, Hebrew, etc.)
//   - Neutral - direction-neutral characters (numbers, punctuation)
//
// Fonts are used for their encodings and metrics only; font programs are
// never executed.
package text

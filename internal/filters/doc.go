// Package filters implements the PDF stream codecs.
//
// Decoders:
//
//	decoded, err := filters.FlateDecode(data, params)
//	decoded, err := filters.LZWDecode(data, params)
//	decoded, err := filters.RunLengthDecode(data)
//	decoded, err := filters.ASCIIHexDecode(data)
//	decoded, err := filters.ASCII85Decode(data)
//	decoded, err := filters.CCITTFaxDecode(data, params)
//
// FlateDecode and LZWDecode honour the Predictor parameter:
//   - 1: No prediction (default)
//   - 2: TIFF Predictor 2
//   - 10-15: PNG predictors (None, Sub, Up, Average, Paeth)
//
// FlateEncode produces zlib data at a fixed compression level so repeated
// encodes of the same input are byte-identical.
//
// # Decode Parameters
//
// Filters accept a Params map translated from the DecodeParms dictionary:
//
//	params := filters.Params{
//	    "Predictor": 12,
//	    "Columns":   5,
//	}
package filters

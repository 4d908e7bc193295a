package filters

import (
	"bytes"
	"io"

	"golang.org/x/image/ccitt"
)

// CCITTFaxDecode decodes CCITT Group 3/4 fax compressed data into packed
// 1-bit rows, MSB first, where a set bit is white unless BlackIs1.
//
// Parameters from the PDF decode parameters dictionary:
//   - K: Group selector (<0 = Group 4, otherwise Group 3)
//   - Columns: Image width in pixels (default 1728)
//   - Rows: Image height in pixels (0 detects the height from the data)
//   - BlackIs1: Bit interpretation (maps to ccitt.Options.Invert)
//   - EncodedByteAlign: rows start on byte boundaries (maps to Align)
func CCITTFaxDecode(data []byte, params Params) ([]byte, error) {
	columns := params.Int("Columns", 1728)
	rows := params.Int("Rows", 0)

	sf := ccitt.Group3
	if params.Int("K", 0) < 0 {
		sf = ccitt.Group4
	}
	if rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	opts := &ccitt.Options{
		Invert: params.Bool("BlackIs1", false),
		Align:  params.Bool("EncodedByteAlign", false),
	}

	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, columns, rows, opts)
	return io.ReadAll(r)
}

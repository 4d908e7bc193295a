package filters

import (
	"bytes"
	"compress/lzw"
	"errors"
	"io"

	tifflzw "golang.org/x/image/tiff/lzw"
)

// LZWDecode decompresses LZW data. EarlyChange defaults to 1, the variant
// shared with TIFF, which golang.org/x/image/tiff/lzw implements; files
// that declare EarlyChange 0 use the standard library decoder.
func LZWDecode(data []byte, params Params) ([]byte, error) {
	var r io.ReadCloser
	if params.Int("EarlyChange", 1) == 0 {
		r = lzw.NewReader(bytes.NewReader(data), lzw.MSB, 8)
	} else {
		r = tifflzw.NewReader(bytes.NewReader(data), tifflzw.MSB, 8)
	}
	defer r.Close()

	var buf bytes.Buffer
	_, err := io.Copy(&buf, r)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && buf.Len() == 0 {
		return nil, err
	}
	return applyPredictor(buf.Bytes(), params)
}

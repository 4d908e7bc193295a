package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// FlateDecode decompresses Flate (zlib/deflate) compressed data and applies
// the predictor named in params. Truncated or corrupt input yields the
// bytes the decompressor produced before the damage, a common repair for
// real files. Damaged input that yields nothing at all is an error.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	out, err := inflate(data)
	if err != nil && len(out) == 0 {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	return applyPredictor(out, params)
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	return buf.Bytes(), err
}

// FlateEncode compresses data with zlib at the default compression level.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyPredictor undoes the prediction named by the Predictor parameter.
// Predictor 1 is identity, 2 is TIFF Predictor 2 and 10-15 are the PNG
// predictors where every row carries its own algorithm tag.
func applyPredictor(data []byte, params Params) ([]byte, error) {
	predictor := params.Int("Predictor", 1)
	switch {
	case predictor <= 1:
		return data, nil
	case predictor == 2:
		return tiffPredictor(data, params)
	case predictor >= 10 && predictor <= 15:
		return pngPredictor(data, params)
	}
	return nil, fmt.Errorf("unsupported predictor: %d", predictor)
}

type rowLayout struct {
	bpp      int // bytes per pixel, at least 1
	rowBytes int
}

func layout(params Params) rowLayout {
	columns := params.Int("Columns", 1)
	colors := params.Int("Colors", 1)
	bpc := params.Int("BitsPerComponent", 8)
	bpp := colors * bpc / 8
	if bpp < 1 {
		bpp = 1
	}
	return rowLayout{bpp: bpp, rowBytes: (columns*colors*bpc + 7) / 8}
}

func tiffPredictor(data []byte, params Params) ([]byte, error) {
	if bpc := params.Int("BitsPerComponent", 8); bpc != 8 {
		return nil, fmt.Errorf("TIFF predictor only supports 8 bits per component, got %d", bpc)
	}
	l := layout(params)
	if l.rowBytes <= 0 {
		return nil, fmt.Errorf("invalid predictor row size %d", l.rowBytes)
	}
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row+l.rowBytes <= len(out); row += l.rowBytes {
		for i := row + l.bpp; i < row+l.rowBytes; i++ {
			out[i] += out[i-l.bpp]
		}
	}
	return out, nil
}

func pngPredictor(data []byte, params Params) ([]byte, error) {
	l := layout(params)
	if l.rowBytes <= 0 {
		return nil, fmt.Errorf("invalid predictor row size %d", l.rowBytes)
	}
	stride := l.rowBytes + 1
	rows := len(data) / stride
	out := make([]byte, rows*l.rowBytes)
	prev := make([]byte, l.rowBytes)

	for r := 0; r < rows; r++ {
		tag := data[r*stride]
		src := data[r*stride+1 : (r+1)*stride]
		cur := out[r*l.rowBytes : (r+1)*l.rowBytes]
		for i := range src {
			var left, upLeft byte
			if i >= l.bpp {
				left = cur[i-l.bpp]
				upLeft = prev[i-l.bpp]
			}
			up := prev[i]
			switch tag {
			case 0:
				cur[i] = src[i]
			case 1:
				cur[i] = src[i] + left
			case 2:
				cur[i] = src[i] + up
			case 3:
				cur[i] = src[i] + byte((int(left)+int(up))/2)
			case 4:
				cur[i] = src[i] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("unknown PNG predictor %d in row %d", tag, r)
			}
		}
		prev = cur
	}
	return out, nil
}

// paeth implements the Paeth predictor from the PNG specification.
func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

package pdfimage

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/tsawler/safepdf/core"
)

// MaxPixels bounds the size of an image the decoder will allocate.
const MaxPixels = 64 << 20

// Resolver resolves indirect references. Dangling references resolve to
// core.Null{}.
type Resolver interface {
	Resolve(obj core.Object) core.Object
}

// Image is an image XObject or inline image with its samples decoded.
type Image struct {
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       *ColorSpace // nil for stencil masks

	// Mask is set for stencil masks (/ImageMask true).
	Mask bool

	// Filter is the image codec the samples were stored with: DCTDecode
	// or "".
	Filter string

	// Decode is the /Decode array, nil for the default mapping.
	Decode []float64

	// Data holds unpacked samples, or JPEG bytes when Filter is DCTDecode.
	Data []byte

	// SMask is the soft mask image, if any.
	SMask *core.Stream
}

// FromStream reads the image dictionary of s and decodes its data. named
// is the /ColorSpace resource dictionary used for inline images.
func FromStream(s *core.Stream, r Resolver, named core.Dict) (*Image, error) {
	d := s.Dict
	img := &Image{BitsPerComponent: 8}

	w, ok1 := core.Number(r.Resolve(first(d, "Width", "W")))
	h, ok2 := core.Number(r.Resolve(first(d, "Height", "H")))
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("image missing Width or Height")
	}
	img.Width, img.Height = int(w), int(h)
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", img.Width, img.Height)
	}
	if int64(img.Width)*int64(img.Height) > MaxPixels {
		return nil, fmt.Errorf("image of %dx%d exceeds %d pixels", img.Width, img.Height, MaxPixels)
	}

	if m, ok := r.Resolve(first(d, "ImageMask", "IM")).(core.Bool); ok && bool(m) {
		img.Mask = true
		img.BitsPerComponent = 1
	} else {
		if bpc, ok := core.Number(r.Resolve(first(d, "BitsPerComponent", "BPC"))); ok {
			img.BitsPerComponent = int(bpc)
		}
		cs, err := ResolveColorSpace(first(d, "ColorSpace", "CS"), r, named)
		if err != nil {
			if _, isDCT := dctFilter(s); !isDCT {
				return nil, err
			}
			// JPEG data carries its own colour model
			cs = &ColorSpace{Family: RGB, Name: "DeviceRGB"}
		}
		img.ColorSpace = cs
	}
	switch img.BitsPerComponent {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("unsupported bits per component: %d", img.BitsPerComponent)
	}

	if arr, ok := r.Resolve(first(d, "Decode", "D")).(core.Array); ok {
		for _, v := range arr {
			f, _ := core.Number(r.Resolve(v))
			img.Decode = append(img.Decode, f)
		}
	}
	img.SMask, _ = r.Resolve(d["SMask"]).(*core.Stream)

	data, codec, err := s.DecodeImage()
	if err != nil {
		return nil, err
	}
	switch codec {
	case "":
	case "DCTDecode":
		img.Filter = codec
	default:
		return nil, &core.UnsupportedFilterError{Filter: codec}
	}
	img.Data = data
	return img, nil
}

func first(d core.Dict, keys ...string) core.Object {
	for _, k := range keys {
		if v, ok := d[k]; ok {
			return v
		}
	}
	return nil
}

func dctFilter(s *core.Stream) (string, bool) {
	chain := s.Filters()
	if len(chain) > 0 && chain[len(chain)-1] == "DCTDecode" {
		return "DCTDecode", true
	}
	return "", false
}

// ToImage converts the samples to a Go image: *image.Gray, *image.RGBA or
// *image.CMYK for sampled images, *image.Alpha for stencil masks (opaque
// where the mask paints). Truncated data is padded with zero samples.
func (img *Image) ToImage() (image.Image, error) {
	if img.Filter == "DCTDecode" {
		out, err := jpeg.Decode(bytes.NewReader(img.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG: %w", err)
		}
		return out, nil
	}
	if img.Mask {
		return img.toMask(), nil
	}

	cs := img.ColorSpace
	comps := cs.Components()
	rowBytes := (img.Width*comps*img.BitsPerComponent + 7) / 8
	need := rowBytes * img.Height
	data := img.Data
	if len(data) < need {
		data = append(append([]byte(nil), data...), make([]byte, need-len(data))...)
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	var pix []byte
	var out image.Image
	switch cs.DeviceComponents() {
	case 1:
		g := image.NewGray(rect)
		pix, out = g.Pix, g
	case 4:
		c := image.NewCMYK(rect)
		pix, out = c.Pix, c
	default:
		rgba := image.NewRGBA(rect)
		pix, out = rgba.Pix, rgba
	}

	maxVal := float64(uint32(1)<<img.BitsPerComponent - 1)
	deviceComps := cs.DeviceComponents()
	stride := deviceComps
	if deviceComps == 3 {
		stride = 4
	}
	samples := make([]float64, comps)
	for y := 0; y < img.Height; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for x := 0; x < img.Width; x++ {
			for c := 0; c < comps; c++ {
				samples[c] = float64(sample(row, x*comps+c, img.BitsPerComponent))
			}
			dst := pix[(y*img.Width+x)*stride:]
			img.pixel(samples, maxVal, dst[:stride])
		}
	}
	return out, nil
}

// pixel maps one pixel of raw samples to device component bytes.
func (img *Image) pixel(samples []float64, maxVal float64, dst []byte) {
	cs := img.ColorSpace
	if cs.Family == Indexed {
		idx := samples[0]
		if len(img.Decode) >= 2 {
			idx = img.Decode[0] + idx*(img.Decode[1]-img.Decode[0])/maxVal
		}
		i := int(idx + 0.5)
		if i > cs.HiVal {
			i = cs.HiVal
		}
		if i < 0 {
			i = 0
		}
		n := cs.Base.Components()
		for c := 0; c < n; c++ {
			if off := i*n + c; off < len(cs.Palette) {
				dst[c] = cs.Palette[off]
			} else {
				dst[c] = 0
			}
		}
		if len(dst) == 4 && n == 3 {
			dst[3] = 255
		}
		return
	}

	for c, s := range samples {
		v := s / maxVal
		if len(img.Decode) >= 2*(c+1) {
			lo, hi := img.Decode[2*c], img.Decode[2*c+1]
			v = lo + v*(hi-lo)
		}
		if cs.Family == Separation {
			v = 1 - v
		}
		dst[c] = clampByte(v * 255)
	}
	if len(samples) == 3 {
		dst[3] = 255
	}
}

func (img *Image) toMask() *image.Alpha {
	a := image.NewAlpha(image.Rect(0, 0, img.Width, img.Height))
	rowBytes := (img.Width + 7) / 8
	// Sample 0 paints unless /Decode is [1 0]
	paint := uint32(0)
	if len(img.Decode) >= 2 && img.Decode[0] == 1 {
		paint = 1
	}
	for y := 0; y < img.Height; y++ {
		start := y * rowBytes
		if start >= len(img.Data) {
			break
		}
		row := img.Data[start:]
		for x := 0; x < img.Width && x/8 < len(row); x++ {
			if sample(row, x, 1) == paint {
				a.Pix[y*a.Stride+x] = 0xff
			}
		}
	}
	return a
}

// sample reads the i-th sample of bpc bits from a row.
func sample(row []byte, i, bpc int) uint32 {
	switch bpc {
	case 8:
		return uint32(row[i])
	case 16:
		return uint32(row[2*i])<<8 | uint32(row[2*i+1])
	}
	bit := i * bpc
	b := row[bit/8]
	shift := 8 - bpc - bit%8
	return uint32(b>>shift) & (1<<bpc - 1)
}

func clampByte(v float64) byte {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v + 0.5)
}

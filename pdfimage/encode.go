package pdfimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/internal/filters"
)

// DefaultJPEGQuality is used when re-encoding DCT images.
const DefaultJPEGQuality = 80

// Resample scales src to w by h pixels with a Catmull-Rom kernel, keeping
// the gray, CMYK or RGBA layout of the source.
func Resample(src image.Image, w, h int) image.Image {
	rect := image.Rect(0, 0, w, h)
	var dst draw.Image
	switch src.(type) {
	case *image.Gray:
		dst = image.NewGray(rect)
	case *image.CMYK:
		dst = image.NewCMYK(rect)
	default:
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, src, src.Bounds(), draw.Src, nil)
	return dst
}

// Encoded is an image ready to be stored as an image XObject.
type Encoded struct {
	Data       []byte
	Filter     core.Name
	ColorSpace core.Name
	Width      int
	Height     int
}

// Stream builds the image XObject for e. extra entries, such as /SMask,
// are copied over.
func (e *Encoded) Stream(extra core.Dict) *core.Stream {
	d := core.Dict{}
	for k, v := range extra {
		d[k] = v
	}
	d["Type"] = core.Name("XObject")
	d["Subtype"] = core.Name("Image")
	d["Width"] = core.Int(e.Width)
	d["Height"] = core.Int(e.Height)
	d["BitsPerComponent"] = core.Int(8)
	d["ColorSpace"] = e.ColorSpace
	d["Filter"] = e.Filter
	return core.NewStream(d, e.Data)
}

// EncodeJPEG encodes img as a baseline JPEG. Gray images stay gray; all
// other models are written as RGB.
func EncodeJPEG(img image.Image, quality int) (*Encoded, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	cs := core.Name("DeviceRGB")
	if _, ok := img.(*image.Gray); ok {
		cs = "DeviceGray"
	}
	b := img.Bounds()
	return &Encoded{Data: buf.Bytes(), Filter: "DCTDecode", ColorSpace: cs, Width: b.Dx(), Height: b.Dy()}, nil
}

// EncodeFlate stores the 8-bit samples of img compressed with Flate.
func EncodeFlate(img image.Image) (*Encoded, error) {
	b := img.Bounds()
	var raw []byte
	cs := core.Name("DeviceRGB")
	switch src := img.(type) {
	case *image.Gray:
		cs = "DeviceGray"
		raw = make([]byte, 0, b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			raw = append(raw, src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]...)
		}
	case *image.CMYK:
		cs = "DeviceCMYK"
		raw = make([]byte, 0, 4*b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			raw = append(raw, src.Pix[src.PixOffset(b.Min.X, y):src.PixOffset(b.Max.X, y)]...)
		}
	default:
		raw = make([]byte, 0, 3*b.Dx()*b.Dy())
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				raw = append(raw, c.R, c.G, c.B)
			}
		}
	}
	data, err := filters.FlateEncode(raw)
	if err != nil {
		return nil, err
	}
	return &Encoded{Data: data, Filter: "FlateDecode", ColorSpace: cs, Width: b.Dx(), Height: b.Dy()}, nil
}

package pdfimage

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/safepdf/core"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return img
}

func TestResampleKeepsModel(t *testing.T) {
	assert.IsType(t, &image.Gray{}, Resample(image.NewGray(image.Rect(0, 0, 8, 8)), 4, 4))
	assert.IsType(t, &image.CMYK{}, Resample(image.NewCMYK(image.Rect(0, 0, 8, 8)), 4, 4))
	assert.Equal(t, image.Rect(0, 0, 4, 2), Resample(gradient(16, 16), 4, 2).Bounds())
}

func TestEncodeFlateRoundTrip(t *testing.T) {
	src := gradient(5, 3)
	enc, err := EncodeFlate(src)
	require.NoError(t, err)
	s := enc.Stream(core.Dict{"Interpolate": core.Bool(true)})
	assert.Equal(t, core.Name("DeviceRGB"), s.Dict["ColorSpace"])
	assert.Equal(t, core.Bool(true), s.Dict["Interpolate"])

	img, err := FromStream(s, objects{}, nil)
	require.NoError(t, err)
	out, err := img.ToImage()
	require.NoError(t, err)
	require.IsType(t, &image.RGBA{}, out)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			require.Equal(t, src.RGBAAt(x, y), out.(*image.RGBA).RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestEncodeFlateGrayAndCMYK(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 3, 1))
	g.Pix = []byte{1, 2, 3}
	enc, err := EncodeFlate(g)
	require.NoError(t, err)
	assert.Equal(t, core.Name("DeviceGray"), enc.ColorSpace)

	c, err := EncodeFlate(image.NewCMYK(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	assert.Equal(t, core.Name("DeviceCMYK"), c.ColorSpace)
}

func TestEncodeJPEGDecodes(t *testing.T) {
	enc, err := EncodeJPEG(gradient(16, 16), DefaultJPEGQuality)
	require.NoError(t, err)
	assert.Equal(t, core.Name("DCTDecode"), enc.Filter)
	assert.Equal(t, core.Name("DeviceRGB"), enc.ColorSpace)

	img, err := FromStream(enc.Stream(nil), objects{}, nil)
	require.NoError(t, err)
	out, err := img.ToImage()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), out.Bounds())
}

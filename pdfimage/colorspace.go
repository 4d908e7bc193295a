package pdfimage

import (
	"fmt"

	"github.com/tsawler/safepdf/core"
)

// maxColorSpaceDepth bounds nested colour space definitions such as an
// Indexed space over an ICCBased space whose /Alternate is another array.
const maxColorSpaceDepth = 8

// Family is the kind of a colour space after reduction to the device
// spaces the decoder produces.
type Family int

const (
	Gray Family = iota
	RGB
	CMYK
	Indexed
	// Separation spaces are single-channel tints; 1 is full ink.
	Separation
)

func (f Family) String() string {
	switch f {
	case Gray:
		return "DeviceGray"
	case RGB:
		return "DeviceRGB"
	case CMYK:
		return "DeviceCMYK"
	case Indexed:
		return "Indexed"
	case Separation:
		return "Separation"
	}
	return "Unknown"
}

// ColorSpace describes how image samples map to colour.
type ColorSpace struct {
	Family Family
	// Name is the colour space name as written, e.g. ICCBased.
	Name string

	// Indexed spaces
	Base    *ColorSpace
	HiVal   int
	Palette []byte
}

// Components returns the number of samples per pixel.
func (cs *ColorSpace) Components() int {
	switch cs.Family {
	case RGB:
		return 3
	case CMYK:
		return 4
	}
	return 1
}

// DeviceComponents returns the number of components of the decoded
// pixels, after an Indexed lookup.
func (cs *ColorSpace) DeviceComponents() int {
	if cs.Family == Indexed && cs.Base != nil {
		return cs.Base.Components()
	}
	return cs.Components()
}

// ResolveColorSpace interprets a colour space object. Names not defined by
// PDF are looked up in named, the /ColorSpace resource dictionary.
func ResolveColorSpace(obj core.Object, r Resolver, named core.Dict) (*ColorSpace, error) {
	return resolveColorSpace(obj, r, named, 0)
}

func resolveColorSpace(obj core.Object, r Resolver, named core.Dict, depth int) (*ColorSpace, error) {
	if depth > maxColorSpaceDepth {
		return nil, fmt.Errorf("colour space nested too deeply")
	}
	obj = r.Resolve(obj)
	switch v := obj.(type) {
	case core.Name:
		switch v {
		case "DeviceGray", "G", "CalGray":
			return &ColorSpace{Family: Gray, Name: string(v)}, nil
		case "DeviceRGB", "RGB", "CalRGB":
			return &ColorSpace{Family: RGB, Name: string(v)}, nil
		case "DeviceCMYK", "CMYK":
			return &ColorSpace{Family: CMYK, Name: string(v)}, nil
		}
		if def, ok := named[string(v)]; ok {
			return resolveColorSpace(def, r, nil, depth+1)
		}
		return nil, fmt.Errorf("unknown colour space /%s", v)
	case core.Array:
		return resolveArray(v, r, named, depth)
	case nil, core.Null:
		return nil, fmt.Errorf("missing colour space")
	}
	return nil, fmt.Errorf("invalid colour space %T", obj)
}

func resolveArray(arr core.Array, r Resolver, named core.Dict, depth int) (*ColorSpace, error) {
	name, ok := r.Resolve(arr.Get(0)).(core.Name)
	if !ok {
		return nil, fmt.Errorf("colour space array without a family name")
	}
	switch name {
	case "DeviceGray", "DeviceRGB", "DeviceCMYK", "G", "RGB", "CMYK":
		if len(arr) == 1 {
			return resolveColorSpace(name, r, named, depth+1)
		}
	case "CalGray":
		return &ColorSpace{Family: Gray, Name: "CalGray"}, nil
	case "CalRGB", "Lab":
		return &ColorSpace{Family: RGB, Name: string(name)}, nil
	case "ICCBased":
		s, ok := r.Resolve(arr.Get(1)).(*core.Stream)
		if !ok {
			return nil, fmt.Errorf("ICCBased without a profile stream")
		}
		n, _ := s.Dict.GetInt("N")
		switch n {
		case 1:
			return &ColorSpace{Family: Gray, Name: "ICCBased"}, nil
		case 3:
			return &ColorSpace{Family: RGB, Name: "ICCBased"}, nil
		case 4:
			return &ColorSpace{Family: CMYK, Name: "ICCBased"}, nil
		}
		if alt := s.Dict.Get("Alternate"); alt != nil {
			return resolveColorSpace(alt, r, named, depth+1)
		}
		return nil, fmt.Errorf("ICCBased with %d components", n)
	case "Indexed", "I":
		if len(arr) < 4 {
			return nil, fmt.Errorf("Indexed colour space needs 4 entries")
		}
		base, err := resolveColorSpace(arr[1], r, named, depth+1)
		if err != nil {
			return nil, fmt.Errorf("Indexed base: %w", err)
		}
		if base.Family == Indexed {
			return nil, fmt.Errorf("Indexed base cannot be Indexed")
		}
		hival, _ := core.Number(r.Resolve(arr[2]))
		var palette []byte
		switch lookup := r.Resolve(arr[3]).(type) {
		case core.String:
			palette = []byte(lookup)
		case *core.Stream:
			data, err := lookup.Decode()
			if err != nil {
				return nil, fmt.Errorf("Indexed lookup: %w", err)
			}
			palette = data
		}
		return &ColorSpace{Family: Indexed, Name: "Indexed", Base: base, HiVal: int(hival), Palette: palette}, nil
	case "Separation":
		return &ColorSpace{Family: Separation, Name: "Separation"}, nil
	}
	return nil, fmt.Errorf("unsupported colour space /%s", name)
}

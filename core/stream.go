package core

import (
	"fmt"

	"github.com/tsawler/safepdf/internal/filters"
)

var filterAliases = map[string]string{
	"AHx": "ASCIIHexDecode",
	"A85": "ASCII85Decode",
	"LZW": "LZWDecode",
	"Fl":  "FlateDecode",
	"RL":  "RunLengthDecode",
	"CCF": "CCITTFaxDecode",
	"DCT": "DCTDecode",
}

// imageCodecs are filters whose output is an image format rather than
// bytes a content consumer can use directly.
var imageCodecs = map[string]bool{
	"DCTDecode":   true,
	"JPXDecode":   true,
	"JBIG2Decode": true,
}

// NewStream returns a stream with a fresh dictionary whose /Length matches data.
func NewStream(dict Dict, data []byte) *Stream {
	d := dict.Clone()
	d["Length"] = Int(len(data))
	return &Stream{Dict: d, Data: data}
}

// Filters returns the declared filter chain with abbreviations expanded.
func (s *Stream) Filters() []string {
	var names []string
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		names = append(names, normalizeFilter(string(f)))
	case Array:
		for _, obj := range f {
			if n, ok := obj.(Name); ok {
				names = append(names, normalizeFilter(string(n)))
			}
		}
	}
	return names
}

func normalizeFilter(name string) string {
	if full, ok := filterAliases[name]; ok {
		return full
	}
	return name
}

// Decode decodes the stream data according to the Filter(s) specified in the
// stream dictionary. DCTDecode data is returned as JPEG bytes; other image
// codecs and encryption filters fail with *UnsupportedFilterError.
func (s *Stream) Decode() ([]byte, error) {
	data, codec, err := s.DecodeImage()
	if err != nil {
		return nil, err
	}
	if codec != "" && codec != "DCTDecode" {
		return nil, &UnsupportedFilterError{Filter: codec}
	}
	return data, nil
}

// DecodeImage applies every filter except a trailing image codec, whose
// name is returned alongside the partially decoded bytes.
func (s *Stream) DecodeImage() ([]byte, string, error) {
	switch f := s.Dict.Get("Filter").(type) {
	case nil, Name, Array:
	default:
		return nil, "", fmt.Errorf("invalid Filter type: %T", f)
	}
	chain := s.Filters()

	data := s.Data
	for i, name := range chain {
		if imageCodecs[name] {
			if i != len(chain)-1 {
				return nil, "", &UnsupportedFilterError{Filter: name}
			}
			return data, name, nil
		}
		var err error
		data, err = decodeWithFilter(data, name, s.decodeParams(i))
		if err != nil {
			return nil, "", fmt.Errorf("filter %d (%s) failed: %w", i, name, err)
		}
	}
	return data, "", nil
}

// DecodeParams returns the decode parameter dictionary for the i-th filter.
func (s *Stream) DecodeParams(i int) Dict {
	obj := s.Dict.Get("DecodeParms")
	if obj == nil {
		obj = s.Dict.Get("DP")
	}
	switch v := obj.(type) {
	case Dict:
		return v
	case Array:
		if d, ok := v.Get(i).(Dict); ok {
			return d
		}
	}
	return nil
}

func (s *Stream) decodeParams(i int) filters.Params {
	return dictToParams(s.DecodeParams(i))
}

// decodeWithFilter applies a single decompression filter to data.
func decodeWithFilter(data []byte, filterName string, params filters.Params) ([]byte, error) {
	switch filterName {
	case "FlateDecode":
		return filters.FlateDecode(data, params)
	case "LZWDecode":
		return filters.LZWDecode(data, params)
	case "ASCIIHexDecode":
		return filters.ASCIIHexDecode(data)
	case "ASCII85Decode":
		return filters.ASCII85Decode(data)
	case "RunLengthDecode":
		return filters.RunLengthDecode(data)
	case "CCITTFaxDecode":
		return filters.CCITTFaxDecode(data, params)
	case "Crypt":
		// The Identity crypt filter is a no-op; any other needs a key
		if params == nil || params["Name"] == nil || params["Name"] == "Identity" {
			return data, nil
		}
	}
	return nil, &UnsupportedFilterError{Filter: filterName}
}

// dictToParams converts a core.Dict to filters.Params, translating PDF object
// types to Go primitive types (Int->int, Real->float64, Bool->bool, etc.).
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}
	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case String:
			params[k] = string(obj)
		case Name:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}

package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object represents a PDF object. The set of implementations is closed:
// Null, Bool, Int, Real, String, Name, Array, Dict, *Stream and IndirectRef.
type Object interface {
	Type() ObjectType
	String() string
}

// ObjectType represents the type of PDF object
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBool
	ObjInt
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDict
	ObjStream
	ObjIndirect
)

// String returns the string representation of the object type
func (t ObjectType) String() string {
	switch t {
	case ObjNull:
		return "Null"
	case ObjBool:
		return "Bool"
	case ObjInt:
		return "Int"
	case ObjReal:
		return "Real"
	case ObjString:
		return "String"
	case ObjName:
		return "Name"
	case ObjArray:
		return "Array"
	case ObjDict:
		return "Dict"
	case ObjStream:
		return "Stream"
	case ObjIndirect:
		return "IndirectRef"
	default:
		return "Unknown"
	}
}

// Null represents a PDF null object
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// Bool represents a PDF boolean
type Bool bool

func (b Bool) Type() ObjectType { return ObjBool }
func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Int represents a PDF integer
type Int int64

func (i Int) Type() ObjectType { return ObjInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string. The value holds the raw bytes after
// escape or hex decoding.
type String string

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string   { return string(s) }

// Name represents a PDF name without its leading slash
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Array represents a PDF array
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string {
	parts := make([]string, 0, len(a))
	for _, obj := range a {
		parts = append(parts, objString(obj))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Len returns the length of the array
func (a Array) Len() int {
	return len(a)
}

// Get retrieves an element at the given index
func (a Array) Get(index int) Object {
	if index < 0 || index >= len(a) {
		return nil
	}
	return a[index]
}

// GetInt retrieves an integer at the given index
func (a Array) GetInt(index int) (Int, bool) {
	i, ok := a.Get(index).(Int)
	return i, ok
}

// GetNumber retrieves an integer or real at the given index as a float64
func (a Array) GetNumber(index int) (float64, bool) {
	return Number(a.Get(index))
}

// GetName retrieves a name at the given index
func (a Array) GetName(index int) (Name, bool) {
	n, ok := a.Get(index).(Name)
	return n, ok
}

// Dict represents a PDF dictionary. Keys are stored without the leading slash.
type Dict map[string]Object

func (d Dict) Type() ObjectType { return ObjDict }

// String renders the dictionary with sorted keys so output is stable.
func (d Dict) String() string {
	parts := make([]string, 0, len(d))
	for _, key := range d.Keys() {
		parts = append(parts, fmt.Sprintf("/%s %s", key, objString(d[key])))
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Get retrieves a value from the dictionary
func (d Dict) Get(key string) Object {
	return d[key]
}

// GetName retrieves a name value
func (d Dict) GetName(key string) (Name, bool) {
	name, ok := d[key].(Name)
	return name, ok
}

// GetInt retrieves an integer value
func (d Dict) GetInt(key string) (Int, bool) {
	i, ok := d[key].(Int)
	return i, ok
}

// GetNumber retrieves an integer or real value as a float64
func (d Dict) GetNumber(key string) (float64, bool) {
	return Number(d[key])
}

// GetDict retrieves a dictionary value
func (d Dict) GetDict(key string) (Dict, bool) {
	dict, ok := d[key].(Dict)
	return dict, ok
}

// GetArray retrieves an array value
func (d Dict) GetArray(key string) (Array, bool) {
	arr, ok := d[key].(Array)
	return arr, ok
}

// GetString retrieves a string value
func (d Dict) GetString(key string) (String, bool) {
	s, ok := d[key].(String)
	return s, ok
}

// GetBool retrieves a boolean value
func (d Dict) GetBool(key string) (Bool, bool) {
	b, ok := d[key].(Bool)
	return b, ok
}

// GetStream retrieves a stream value
func (d Dict) GetStream(key string) (*Stream, bool) {
	s, ok := d[key].(*Stream)
	return s, ok
}

// GetIndirectRef retrieves an indirect reference
func (d Dict) GetIndirectRef(key string) (IndirectRef, bool) {
	ref, ok := d[key].(IndirectRef)
	return ref, ok
}

// Has checks if a key exists in the dictionary
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Set sets a value in the dictionary
func (d Dict) Set(key string, value Object) {
	d[key] = value
}

// Delete removes a key from the dictionary
func (d Dict) Delete(key string) {
	delete(d, key)
}

// Keys returns all keys in the dictionary in sorted order
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of the dictionary. Values are shared.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Stream represents a PDF stream object. Data holds the raw, still-encoded
// bytes exactly as they appear between "stream" and "endstream".
type Stream struct {
	Dict Dict
	Data []byte
}

func (s *Stream) Type() ObjectType { return ObjStream }
func (s *Stream) String() string {
	return fmt.Sprintf("stream %s (%d bytes)", s.Dict.String(), len(s.Data))
}

// IndirectRef represents an indirect object reference
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) Type() ObjectType { return ObjIndirect }
func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IsZero reports whether the reference is the unset value. Object 0 is
// always the head of the free list and is never a valid target.
func (r IndirectRef) IsZero() bool {
	return r.Number == 0
}

// IndirectObject represents an indirect object with its reference
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}

// Number returns the numeric value of an Int or Real.
func Number(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Int:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// Copy returns a deep copy of obj. Indirect references are copied as
// references; the objects they point to are not followed.
func Copy(obj Object) Object {
	switch v := obj.(type) {
	case Array:
		out := make(Array, len(v))
		for i, e := range v {
			out[i] = Copy(e)
		}
		return out
	case Dict:
		out := make(Dict, len(v))
		for k, e := range v {
			out[k] = Copy(e)
		}
		return out
	case *Stream:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return &Stream{Dict: Copy(v.Dict).(Dict), Data: data}
	}
	return obj
}

func objString(obj Object) string {
	if obj == nil {
		return "null"
	}
	return obj.String()
}

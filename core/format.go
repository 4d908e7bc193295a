package core

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Format serializes obj in PDF syntax. Dictionary keys are written in
// sorted order so the output is deterministic.
func Format(obj Object) []byte {
	var buf bytes.Buffer
	WriteObject(&buf, obj)
	return buf.Bytes()
}

// WriteObject appends the PDF syntax for obj to buf. A nil object is
// written as null. Streams are written with a /Length matching their data.
func WriteObject(buf *bytes.Buffer, obj Object) {
	switch v := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(v.String())
	case Int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		writeReal(buf, float64(v))
	case String:
		writeString(buf, []byte(v))
	case Name:
		writeName(buf, string(v))
	case Array:
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			WriteObject(buf, e)
		}
		buf.WriteByte(']')
	case Dict:
		buf.WriteString("<<")
		for _, k := range v.Keys() {
			writeName(buf, k)
			buf.WriteByte(' ')
			WriteObject(buf, v[k])
		}
		buf.WriteString(">>")
	case *Stream:
		d := v.Dict.Clone()
		d["Length"] = Int(len(v.Data))
		WriteObject(buf, d)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	case IndirectRef:
		buf.WriteString(strconv.Itoa(v.Number))
		buf.WriteByte(' ')
		buf.WriteString(strconv.Itoa(v.Generation))
		buf.WriteString(" R")
	default:
		buf.WriteString("null")
	}
}

// writeReal avoids exponents, which PDF does not allow.
func writeReal(buf *bytes.Buffer, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		buf.WriteByte('0')
		return
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if len(s) > 12 {
		s = strconv.FormatFloat(f, 'f', 6, 64)
		s = trimZeros(s)
	}
	buf.WriteString(s)
}

func trimZeros(s string) string {
	if strings.IndexByte(s, '.') < 0 {
		return s
	}
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	if i == 0 || s[:i] == "-" {
		return "0"
	}
	return s[:i]
}

// writeString uses a literal string unless most bytes are unprintable.
func writeString(buf *bytes.Buffer, s []byte) {
	binary := 0
	for _, b := range s {
		if b < 0x20 || b > 0x7e {
			binary++
		}
	}
	if binary > len(s)/4 {
		const hexDigits = "0123456789ABCDEF"
		buf.WriteByte('<')
		for _, b := range s {
			buf.WriteByte(hexDigits[b>>4])
			buf.WriteByte(hexDigits[b&0x0f])
		}
		buf.WriteByte('>')
		return
	}

	buf.WriteByte('(')
	for _, b := range s {
		switch b {
		case '\\', '(', ')':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if b < 0x20 || b > 0x7e {
				buf.WriteByte('\\')
				buf.WriteByte('0' + b>>6)
				buf.WriteByte('0' + (b>>3)&7)
				buf.WriteByte('0' + b&7)
				continue
			}
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}

// writeName escapes delimiters, whitespace, '#' and bytes outside the
// printable range as #xx.
func writeName(buf *bytes.Buffer, n string) {
	const hexDigits = "0123456789ABCDEF"
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		b := n[i]
		if b < 0x21 || b > 0x7e || b == '#' || isDelimiter(b) {
			buf.WriteByte('#')
			buf.WriteByte(hexDigits[b>>4])
			buf.WriteByte(hexDigits[b&0x0f])
			continue
		}
		buf.WriteByte(b)
	}
}

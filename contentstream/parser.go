package contentstream

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/tsawler/safepdf/core"
)

// maxNesting bounds array and dictionary nesting inside operands.
const maxNesting = 64

// Operation represents a single content stream operation consisting of an
// operator and its operands. Operands are PDF objects that precede the operator.
type Operation struct {
	Operator string        // The operator (e.g., "Tj", "Tm", "q")
	Operands []core.Object // The operands

	// Image holds the inline image of a BI operation.
	Image *InlineImage
}

// InlineImage is an image given between BI and EI. Dict keeps the keys as
// written, abbreviations included.
type InlineImage struct {
	Dict core.Dict
	Data []byte
}

// Parser parses PDF content streams into a sequence of operations.
// Each operation consists of an operator and its operands.
type Parser struct {
	lex      *core.Lexer
	operands []core.Object
}

// NewParser creates a new content stream parser for the given data.
func NewParser(data []byte) *Parser {
	return &Parser{lex: core.NewLexer(data)}
}

// Parse parses the whole content stream. On a syntax error it returns the
// operations read before the error along with the error.
func (p *Parser) Parse() ([]Operation, error) {
	var ops []Operation
	for {
		op, err := p.Next()
		if err == io.EOF {
			return ops, nil
		}
		if err != nil {
			return ops, err
		}
		ops = append(ops, *op)
	}
}

// Parse is a shorthand for NewParser(data).Parse().
func Parse(data []byte) ([]Operation, error) {
	return NewParser(data).Parse()
}

// Next returns the next operation, or io.EOF when the stream is exhausted.
// Operands left over at the end of the stream are dropped.
func (p *Parser) Next() (*Operation, error) {
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case core.TokenEOF:
			p.operands = nil
			return nil, io.EOF
		case core.TokenComment, core.TokenArrayEnd, core.TokenDictEnd:
			// Stray closing delimiters are ignored
			continue
		case core.TokenKeyword, core.TokenIndirectRef:
			if obj, ok := keywordValue(tok.Value); ok {
				p.operands = append(p.operands, obj)
				continue
			}
			operator := string(tok.Value)
			op := &Operation{Operator: operator, Operands: p.operands}
			p.operands = nil
			if operator == "BI" {
				img, err := p.inlineImage()
				if err != nil {
					return nil, err
				}
				op.Image = img
			}
			return op, nil
		default:
			obj, err := p.value(tok, 0)
			if err != nil {
				return nil, err
			}
			p.operands = append(p.operands, obj)
		}
	}
}

func keywordValue(v []byte) (core.Object, bool) {
	switch string(v) {
	case "true":
		return core.Bool(true), true
	case "false":
		return core.Bool(false), true
	case "null":
		return core.Null{}, true
	}
	return nil, false
}

// value converts tok, reading the rest of an array or dictionary.
func (p *Parser) value(tok *core.Token, depth int) (core.Object, error) {
	switch tok.Type {
	case core.TokenInteger:
		n, err := strconv.ParseInt(string(tok.Value), 10, 64)
		if err != nil {
			// Out of range integers are read as reals
			f, _ := strconv.ParseFloat(string(tok.Value), 64)
			return core.Real(f), nil
		}
		return core.Int(n), nil
	case core.TokenReal:
		f, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return nil, &core.MalformedTokenError{Offset: tok.Pos, Reason: fmt.Sprintf("invalid real number %q", tok.Value)}
		}
		return core.Real(f), nil
	case core.TokenString, core.TokenHexString:
		return core.String(tok.Value), nil
	case core.TokenName:
		return core.Name(tok.Value), nil
	case core.TokenKeyword:
		if obj, ok := keywordValue(tok.Value); ok {
			return obj, nil
		}
		// Operators are not allowed inside arrays; keep the text as a name
		// so a damaged stream still yields something usable
		return core.Name(tok.Value), nil
	case core.TokenArrayStart:
		return p.array(tok, depth+1)
	case core.TokenDictStart:
		return p.dict(tok, depth+1)
	}
	return nil, &core.MalformedTokenError{Offset: tok.Pos, Reason: fmt.Sprintf("unexpected %s", tok.Type)}
}

func (p *Parser) array(open *core.Token, depth int) (core.Object, error) {
	if depth > maxNesting {
		return nil, &core.MalformedTokenError{Offset: open.Pos, Reason: "arrays nested too deeply"}
	}
	arr := core.Array{}
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case core.TokenArrayEnd:
			return arr, nil
		case core.TokenEOF:
			return nil, &core.MalformedTokenError{Offset: open.Pos, Reason: "unterminated array"}
		case core.TokenComment:
			continue
		}
		obj, err := p.value(tok, depth)
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

func (p *Parser) dict(open *core.Token, depth int) (core.Object, error) {
	if depth > maxNesting {
		return nil, &core.MalformedTokenError{Offset: open.Pos, Reason: "dictionaries nested too deeply"}
	}
	d := core.Dict{}
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case core.TokenDictEnd:
			return d, nil
		case core.TokenEOF:
			return nil, &core.MalformedTokenError{Offset: open.Pos, Reason: "unterminated dictionary"}
		case core.TokenComment:
			continue
		case core.TokenName:
		default:
			return nil, &core.MalformedTokenError{Offset: tok.Pos, Reason: "dictionary key must be a name"}
		}
		key := string(tok.Value)
		valTok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		if valTok.Type == core.TokenDictEnd {
			return d, nil
		}
		val, err := p.value(valTok, depth)
		if err != nil {
			return nil, err
		}
		d[key] = val
	}
}

// inlineImage reads the key/value pairs after BI, the ID keyword and the
// image data up to EI.
func (p *Parser) inlineImage() (*InlineImage, error) {
	start := p.lex.Pos()
	img := &InlineImage{Dict: core.Dict{}}
	for {
		tok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == core.TokenEOF {
			return nil, &core.MalformedTokenError{Offset: start, Reason: "inline image without ID"}
		}
		if tok.Is("ID") {
			break
		}
		if tok.Type != core.TokenName {
			return nil, &core.MalformedTokenError{Offset: tok.Pos, Reason: "inline image key must be a name"}
		}
		valTok, err := p.lex.NextToken()
		if err != nil {
			return nil, err
		}
		val, err := p.value(valTok, 0)
		if err != nil {
			return nil, err
		}
		img.Dict[string(tok.Value)] = val
	}

	// A single whitespace byte separates ID from the data
	if b, ok := p.lex.Peek(); ok && core.IsWhitespace(b) {
		p.lex.Seek(p.lex.Pos() + 1)
	}
	dataStart := p.lex.Pos()
	data := p.lex.Data()

	if n, ok := inlineImageLength(img.Dict); ok && dataStart+n <= int64(len(data)) {
		end := dataStart + n
		if isEI(data, end) {
			img.Data = data[dataStart:end]
			p.lex.Seek(skipToEI(data, end) + 2)
			return img, nil
		}
	}

	// Scan for whitespace, "EI" and a delimiter or whitespace after it
	for i := dataStart; i+1 < int64(len(data)); i++ {
		if data[i] == 'E' && data[i+1] == 'I' && i > dataStart && core.IsWhitespace(data[i-1]) &&
			(i+2 == int64(len(data)) || core.IsWhitespace(data[i+2]) || core.IsDelimiter(data[i+2])) {
			img.Data = data[dataStart : i-1]
			p.lex.Seek(i + 2)
			return img, nil
		}
	}
	return nil, &core.MalformedTokenError{Offset: start, Reason: "inline image without EI"}
}

// isEI reports whether only whitespace separates off from an EI keyword.
func isEI(data []byte, off int64) bool {
	i := skipToEI(data, off)
	return i+1 < int64(len(data)) && data[i] == 'E' && data[i+1] == 'I'
}

func skipToEI(data []byte, off int64) int64 {
	for off < int64(len(data)) && core.IsWhitespace(data[off]) {
		off++
	}
	return off
}

// inlineImageLength returns the data length implied by an explicit /L, or
// by the dimensions of an unfiltered image.
func inlineImageLength(d core.Dict) (int64, bool) {
	e := ExpandInlineDict(d)
	if l, ok := e.GetInt("Length"); ok && l >= 0 {
		return int64(l), true
	}
	if e.Has("Filter") {
		return 0, false
	}
	w, ok1 := e.GetInt("Width")
	h, ok2 := e.GetInt("Height")
	if !ok1 || !ok2 || w <= 0 || h <= 0 {
		return 0, false
	}
	bpc := int64(8)
	components := int64(1)
	if mask, _ := e.GetBool("ImageMask"); mask {
		bpc = 1
	} else {
		if b, ok := e.GetInt("BitsPerComponent"); ok && b > 0 {
			bpc = int64(b)
		}
		switch cs := e["ColorSpace"].(type) {
		case nil:
		case core.Name:
			switch cs {
			case "DeviceRGB", "CalRGB":
				components = 3
			case "DeviceCMYK":
				components = 4
			case "DeviceGray", "CalGray":
			default:
				// Named spaces need page resources to size
				return 0, false
			}
		case core.Array:
			if n, _ := cs.GetName(0); n != "Indexed" {
				return 0, false
			}
		default:
			return 0, false
		}
	}
	rowBytes := (int64(w)*components*bpc + 7) / 8
	return rowBytes * int64(h), true
}

var inlineKeys = map[string]string{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"W":   "Width",
	"L":   "Length",
}

var inlineColorSpaces = map[core.Name]core.Name{
	"G":    "DeviceGray",
	"RGB":  "DeviceRGB",
	"CMYK": "DeviceCMYK",
	"I":    "Indexed",
}

// ExpandInlineDict returns d with abbreviated keys and colour space names
// replaced by their full forms. Filter abbreviations are left to
// core.Stream, which understands them.
func ExpandInlineDict(d core.Dict) core.Dict {
	out := make(core.Dict, len(d))
	for k, v := range d {
		if full, ok := inlineKeys[k]; ok {
			k = full
		}
		out[k] = v
	}
	switch cs := out["ColorSpace"].(type) {
	case core.Name:
		if full, ok := inlineColorSpaces[cs]; ok {
			out["ColorSpace"] = full
		}
	case core.Array:
		if len(cs) > 0 {
			if n, ok := cs[0].(core.Name); ok {
				if full, ok := inlineColorSpaces[n]; ok {
					expanded := append(core.Array{full}, cs[1:]...)
					if len(expanded) > 1 {
						if base, ok := expanded[1].(core.Name); ok {
							if full, ok := inlineColorSpaces[base]; ok {
								expanded[1] = full
							}
						}
					}
					out["ColorSpace"] = expanded
				}
			}
		}
	}
	return out
}

// Stream returns the inline image as an image XObject stream.
func (img *InlineImage) Stream() *core.Stream {
	d := ExpandInlineDict(img.Dict)
	d.Delete("Length")
	d["Type"] = core.Name("XObject")
	d["Subtype"] = core.Name("Image")
	return core.NewStream(d, img.Data)
}

// Write serializes operations back into content stream syntax, one
// operation per line.
func Write(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		for _, operand := range op.Operands {
			core.WriteObject(&buf, operand)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		if op.Operator == "BI" && op.Image != nil {
			for _, k := range op.Image.Dict.Keys() {
				buf.WriteByte(' ')
				core.WriteObject(&buf, core.Name(k))
				buf.WriteByte(' ')
				core.WriteObject(&buf, op.Image.Dict[k])
			}
			buf.WriteString(" ID ")
			buf.Write(op.Image.Data)
			buf.WriteString("\nEI")
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

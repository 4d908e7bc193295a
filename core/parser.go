package core

import (
	"bytes"
	"strconv"
)

// MaxNesting bounds how deeply arrays and dictionaries may nest.
const MaxNesting = 256

// ReferenceResolver is an interface for resolving indirect references.
// This allows the parser to resolve indirect stream lengths when needed.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser parses PDF objects from a byte slice using a Lexer for tokenization.
// Tokens are pulled lazily so the lexer never runs ahead into binary stream
// data.
type Parser struct {
	lexer    *Lexer
	queue    []*Token
	resolver ReferenceResolver
	depth    int
	repaired bool
}

// NewParser creates a new PDF parser at the start of data
func NewParser(data []byte) *Parser {
	return &Parser{lexer: NewLexer(data)}
}

// NewParserAt creates a new PDF parser positioned at offset
func NewParserAt(data []byte, offset int64) *Parser {
	return &Parser{lexer: NewLexerAt(data, offset)}
}

// SetReferenceResolver sets the reference resolver for the parser.
// This is needed to resolve indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// Repaired reports whether any stream had to be recovered by scanning for
// its endstream marker.
func (p *Parser) Repaired() bool { return p.repaired }

// Pos returns the offset of the next unconsumed token.
func (p *Parser) Pos() int64 {
	if len(p.queue) > 0 {
		return p.queue[0].Pos
	}
	return p.lexer.Pos()
}

// Peek returns the i-th upcoming token without consuming it. Comments are
// skipped.
func (p *Parser) Peek(i int) (*Token, error) {
	for len(p.queue) <= i {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenComment {
			continue
		}
		p.queue = append(p.queue, tok)
	}
	return p.queue[i], nil
}

// Next consumes and returns the next token.
func (p *Parser) Next() (*Token, error) {
	tok, err := p.Peek(0)
	if err != nil {
		return nil, err
	}
	p.queue = p.queue[1:]
	return tok, nil
}

// ParseObject parses and returns the next PDF object from the input.
// It handles all PDF object types: null, boolean, integer, real, string,
// name, array, dictionary, and indirect references.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.Next()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenEOF:
		return nil, malformed(tok.Pos, "unexpected end of input")

	case TokenKeyword:
		switch string(tok.Value) {
		case "null":
			return Null{}, nil
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		}
		return nil, malformed(tok.Pos, "unexpected keyword %q", tok.Value)

	case TokenInteger:
		return p.parseNumber(tok)

	case TokenReal:
		val, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return nil, malformed(tok.Pos, "invalid real number %q", tok.Value)
		}
		return Real(val), nil

	case TokenString, TokenHexString:
		return String(tok.Value), nil

	case TokenName:
		return Name(tok.Value), nil

	case TokenArrayStart:
		return p.parseArray(tok)

	case TokenDictStart:
		return p.parseDict(tok)
	}

	return nil, malformed(tok.Pos, "unexpected token %v", tok.Type)
}

// parseNumber parses an integer or an indirect reference.
// Indirect references are detected by lookahead: "num gen R" pattern.
func (p *Parser) parseNumber(tok *Token) (Object, error) {
	first, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		// Out of range integers degrade to reals
		f, ferr := strconv.ParseFloat(string(tok.Value), 64)
		if ferr != nil {
			return nil, malformed(tok.Pos, "invalid number %q", tok.Value)
		}
		return Real(f), nil
	}

	second, err := p.Peek(0)
	if err != nil || second.Type != TokenInteger {
		return Int(first), nil
	}
	third, err := p.Peek(1)
	if err != nil || third.Type != TokenIndirectRef {
		return Int(first), nil
	}
	gen, err := strconv.ParseInt(string(second.Value), 10, 64)
	if err != nil {
		return Int(first), nil
	}
	p.queue = p.queue[2:]
	return IndirectRef{Number: int(first), Generation: int(gen)}, nil
}

func (p *Parser) enter(pos int64) error {
	p.depth++
	if p.depth > MaxNesting {
		return malformed(pos, "objects nested deeper than %d levels", MaxNesting)
	}
	return nil
}

// parseArray parses a PDF array "[obj1 obj2 ...]".
func (p *Parser) parseArray(open *Token) (Object, error) {
	if err := p.enter(open.Pos); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	arr := Array{}
	for {
		tok, err := p.Peek(0)
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenArrayEnd:
			p.queue = p.queue[1:]
			return arr, nil
		case TokenEOF:
			return nil, malformed(open.Pos, "unterminated array")
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

// parseDict parses a PDF dictionary "<< /Key value ... >>".
func (p *Parser) parseDict(open *Token) (Object, error) {
	if err := p.enter(open.Pos); err != nil {
		return nil, err
	}
	defer func() { p.depth-- }()

	dict := make(Dict)
	for {
		tok, err := p.Next()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenDictEnd:
			return dict, nil
		case TokenEOF:
			return nil, malformed(open.Pos, "unterminated dictionary")
		case TokenName:
		default:
			return nil, malformed(tok.Pos, "expected name for dictionary key, got %v", tok.Type)
		}
		key := string(tok.Value)

		// A key directly followed by >> has no value; treat it as absent
		if next, err := p.Peek(0); err == nil && next.Type == TokenDictEnd {
			continue
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent key
		if _, isNull := value.(Null); isNull {
			continue
		}
		dict[key] = value
	}
}

// ParseIndirectObject parses an indirect object definition.
// Format: "num gen obj <object> endobj" or "num gen obj <dict> stream ... endstream endobj".
// A missing endobj is tolerated.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	numTok, err := p.Next()
	if err != nil {
		return nil, err
	}
	genTok, err := p.Next()
	if err != nil {
		return nil, err
	}
	objTok, err := p.Next()
	if err != nil {
		return nil, err
	}
	if numTok.Type != TokenInteger || genTok.Type != TokenInteger || !objTok.Is("obj") {
		return nil, malformed(numTok.Pos, "expected object header \"N G obj\"")
	}
	num, err1 := strconv.Atoi(string(numTok.Value))
	gen, err2 := strconv.Atoi(string(genTok.Value))
	if err1 != nil || err2 != nil || num < 0 || gen < 0 {
		return nil, malformed(numTok.Pos, "invalid object header")
	}

	var obj Object
	if next, err := p.Peek(0); err == nil && next.Is("endobj") {
		// "N G obj endobj" is an empty object
		obj = Null{}
	} else {
		obj, err = p.ParseObject()
		if err != nil {
			return nil, err
		}
	}

	next, err := p.Peek(0)
	if err != nil {
		return nil, err
	}
	if next.Is("stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, malformed(next.Pos, "stream must follow a dictionary")
		}
		obj, err = p.parseStream(dict, next)
		if err != nil {
			return nil, err
		}
	}

	if next, err := p.Peek(0); err == nil && next.Is("endobj") {
		p.queue = p.queue[1:]
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

// parseStream reads the stream body that follows the "stream" keyword.
// The declared /Length is trusted only if "endstream" follows the declared
// span; otherwise the body is recovered by scanning for "endstream".
func (p *Parser) parseStream(dict Dict, streamTok *Token) (*Stream, error) {
	p.queue = p.queue[:0]
	p.lexer.Seek(streamTok.Pos + int64(len("stream")))
	p.lexer.SkipStreamEOL()

	data := p.lexer.Data()
	start := int(p.lexer.Pos())

	if length, ok := p.streamLength(dict); ok && start+length <= len(data) && endstreamAt(data, start+length) {
		body := data[start : start+length]
		p.lexer.Seek(int64(start + length))
		p.skipEndstream()
		return &Stream{Dict: dict, Data: body}, nil
	}

	idx := bytes.Index(data[start:], []byte("endstream"))
	if idx < 0 {
		return nil, malformed(streamTok.Pos, "stream without endstream")
	}
	body := trimEOL(data[start : start+idx])
	p.repaired = true

	fixed := dict.Clone()
	fixed["Length"] = Int(len(body))
	p.lexer.Seek(int64(start + idx))
	p.skipEndstream()
	return &Stream{Dict: fixed, Data: body}, nil
}

func (p *Parser) skipEndstream() {
	p.lexer.SkipWhitespace()
	if p.lexer.HasPrefix("endstream") {
		p.lexer.Seek(p.lexer.Pos() + int64(len("endstream")))
	}
}

func (p *Parser) streamLength(dict Dict) (int, bool) {
	switch v := dict.Get("Length").(type) {
	case Int:
		return int(v), v >= 0
	case IndirectRef:
		if p.resolver == nil {
			return 0, false
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			return 0, false
		}
		if n, ok := resolved.(Int); ok && n >= 0 {
			return int(n), true
		}
	}
	return 0, false
}

func endstreamAt(data []byte, pos int) bool {
	for pos < len(data) && isWhitespace(data[pos]) {
		pos++
	}
	return bytes.HasPrefix(data[pos:], []byte("endstream"))
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

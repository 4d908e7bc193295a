package core

import (
	"bytes"
	"strconv"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWhitespace
	TokenComment
	TokenKeyword     // true, false, null, obj, endobj, stream, endstream, operators
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello)
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // R (after two numbers)
)

var tokenTypeNames = [...]string{
	"EOF", "Whitespace", "Comment", "Keyword", "Integer", "Real", "String",
	"HexString", "Name", "ArrayStart", "ArrayEnd", "DictStart", "DictEnd", "R",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return "Unknown"
}

// Token represents a lexical token. For strings, hex strings and names the
// value is already unescaped.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64 // offset of the first byte of the token
}

// Is reports whether the token is the given keyword.
func (t *Token) Is(keyword string) bool {
	return t != nil && t.Type == TokenKeyword && string(t.Value) == keyword
}

// Lexer performs lexical analysis over an immutable byte slice. The only
// state is the cursor, so a Lexer can be re-positioned freely with Seek.
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a new lexer positioned at the start of data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// NewLexerAt creates a new lexer positioned at offset
func NewLexerAt(data []byte, offset int64) *Lexer {
	l := &Lexer{data: data}
	l.Seek(offset)
	return l
}

// Pos returns the current cursor offset
func (l *Lexer) Pos() int64 { return int64(l.pos) }

// Len returns the size of the underlying data
func (l *Lexer) Len() int64 { return int64(len(l.data)) }

// Data returns the underlying byte slice
func (l *Lexer) Data() []byte { return l.data }

// Seek moves the cursor, clamping to the data bounds
func (l *Lexer) Seek(offset int64) {
	switch {
	case offset < 0:
		l.pos = 0
	case offset > int64(len(l.data)):
		l.pos = len(l.data)
	default:
		l.pos = int(offset)
	}
}

// NextToken returns the next token from the input. Whitespace is skipped;
// comments are returned as tokens.
func (l *Lexer) NextToken() (*Token, error) {
	l.SkipWhitespace()

	if l.pos >= len(l.data) {
		return &Token{Type: TokenEOF, Pos: int64(l.pos)}, nil
	}

	start := l.pos
	b := l.data[l.pos]

	switch b {
	case '%':
		return l.readComment(), nil
	case '[':
		l.pos++
		return &Token{Type: TokenArrayStart, Value: []byte{'['}, Pos: int64(start)}, nil
	case ']':
		l.pos++
		return &Token{Type: TokenArrayEnd, Value: []byte{']'}, Pos: int64(start)}, nil
	case '{', '}':
		// PostScript calculator braces; only meaningful inside type 4 functions
		l.pos++
		return &Token{Type: TokenKeyword, Value: []byte{b}, Pos: int64(start)}, nil
	case '(':
		return l.readString()
	case '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return &Token{Type: TokenDictStart, Value: []byte{'<', '<'}, Pos: int64(start)}, nil
		}
		return l.readHexString()
	case '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return &Token{Type: TokenDictEnd, Value: []byte{'>', '>'}, Pos: int64(start)}, nil
		}
		l.pos++
		return nil, malformed(int64(start), "unexpected '>'")
	case ')':
		l.pos++
		return nil, malformed(int64(start), "unbalanced ')'")
	case '/':
		return l.readName()
	}

	return l.readRegular(), nil
}

// SkipWhitespace advances past PDF whitespace.
// PDF whitespace: space (0x20), tab (0x09), LF (0x0A), CR (0x0D), FF (0x0C), null (0x00)
func (l *Lexer) SkipWhitespace() {
	for l.pos < len(l.data) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
}

// readComment reads a comment (% to end of line). The EOL is not consumed.
func (l *Lexer) readComment() *Token {
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
		l.pos++
	}
	return &Token{Type: TokenComment, Value: l.data[start:l.pos], Pos: int64(start)}
}

// readString reads a literal string (hello)
func (l *Lexer) readString() (*Token, error) {
	start := l.pos
	l.pos++ // (
	var buf bytes.Buffer

	depth := 1
	for {
		if l.pos >= len(l.data) {
			return nil, malformed(int64(start), "unterminated literal string")
		}
		b := l.data[l.pos]
		l.pos++

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return &Token{Type: TokenString, Value: buf.Bytes(), Pos: int64(start)}, nil
			}
			buf.WriteByte(b)
		case '\\':
			if l.pos >= len(l.data) {
				return nil, malformed(int64(start), "unterminated literal string")
			}
			next := l.data[l.pos]
			l.pos++
			switch next {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '\r':
				// Line continuation
				if l.pos < len(l.data) && l.data[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := int(next - '0')
				for i := 0; i < 2 && l.pos < len(l.data) && isOctalDigit(l.data[l.pos]); i++ {
					val = val*8 + int(l.data[l.pos]-'0')
					l.pos++
				}
				buf.WriteByte(byte(val))
			default:
				// Unknown escape, including \( \) \\, keeps the character
				buf.WriteByte(next)
			}
		case '\r':
			// An unescaped EOL in a string is read as a single LF
			if l.pos < len(l.data) && l.data[l.pos] == '\n' {
				l.pos++
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(b)
		}
	}
}

// readHexString reads a hexadecimal string <48656C6C6F> and decodes it.
// An odd number of digits is padded with a trailing zero.
func (l *Lexer) readHexString() (*Token, error) {
	start := l.pos
	l.pos++ // <
	var buf bytes.Buffer
	var hi byte
	odd := false

	for {
		if l.pos >= len(l.data) {
			return nil, malformed(int64(start), "unterminated hex string")
		}
		b := l.data[l.pos]
		l.pos++

		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if !isHexDigit(b) {
			return nil, malformed(int64(l.pos-1), "invalid hex digit %q", b)
		}
		if odd {
			buf.WriteByte(hi<<4 | hexValue(b))
		} else {
			hi = hexValue(b)
		}
		odd = !odd
	}
	if odd {
		buf.WriteByte(hi << 4)
	}

	return &Token{Type: TokenHexString, Value: buf.Bytes(), Pos: int64(start)}, nil
}

// readName reads a name object /Type, decoding # escapes
func (l *Lexer) readName() (*Token, error) {
	start := l.pos
	l.pos++ // /
	var buf bytes.Buffer

	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++

		if b == '#' {
			if l.pos+1 >= len(l.data) || !isHexDigit(l.data[l.pos]) || !isHexDigit(l.data[l.pos+1]) {
				return nil, malformed(int64(l.pos-1), "invalid hex escape in name")
			}
			buf.WriteByte(hexValue(l.data[l.pos])<<4 | hexValue(l.data[l.pos+1]))
			l.pos += 2
			continue
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: int64(start)}, nil
}

// readRegular reads a run of regular characters and classifies it as an
// integer, a real or a keyword.
func (l *Lexer) readRegular() *Token {
	start := l.pos
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++
	}
	value := l.data[start:l.pos]
	return &Token{Type: classify(value), Value: value, Pos: int64(start)}
}

func classify(value []byte) TokenType {
	if len(value) == 1 && value[0] == 'R' {
		return TokenIndirectRef
	}
	digits, dots := 0, 0
	for i, b := range value {
		switch {
		case isDigit(b):
			digits++
		case b == '.':
			dots++
		case (b == '-' || b == '+') && i == 0:
		default:
			return TokenKeyword
		}
	}
	if digits == 0 || dots > 1 {
		return TokenKeyword
	}
	if dots == 1 {
		return TokenReal
	}
	return TokenInteger
}

// ReadBytes returns the next n bytes (or fewer at the end of data) and
// advances the cursor. The returned slice aliases the input.
func (l *Lexer) ReadBytes(n int) []byte {
	end := l.pos + n
	if n < 0 || end > len(l.data) {
		end = len(l.data)
	}
	out := l.data[l.pos:end]
	l.pos = end
	return out
}

// SkipStreamEOL skips the end-of-line marker that follows the "stream"
// keyword. Per the format this is LF or CRLF; a lone CR is tolerated.
func (l *Lexer) SkipStreamEOL() {
	for l.pos < len(l.data) && (l.data[l.pos] == ' ' || l.data[l.pos] == '\t') {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(l.data) && l.data[l.pos] == '\n' {
		l.pos++
	}
}

// HasPrefix reports whether the bytes at the cursor start with s.
func (l *Lexer) HasPrefix(s string) bool {
	return bytes.HasPrefix(l.data[l.pos:], []byte(s))
}

// Peek returns the next byte without consuming it
func (l *Lexer) Peek() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

// LastIndex returns the offset of the last occurrence of marker that starts
// before the offset before, or -1.
func LastIndex(data []byte, marker string, before int) int {
	if before > len(data) {
		before = len(data)
	}
	if before < 0 {
		return -1
	}
	return bytes.LastIndex(data[:before], []byte(marker))
}

// FindStartXRef scans backward from the end of data for the last
// "startxref" keyword and returns the offset that follows it. Trailing
// garbage after %%EOF is tolerated.
func FindStartXRef(data []byte) (int64, error) {
	before := len(data)
	for {
		idx := LastIndex(data, "startxref", before)
		if idx < 0 {
			return 0, malformed(int64(len(data)), "startxref not found")
		}
		l := NewLexerAt(data, int64(idx+len("startxref")))
		tok, err := l.NextToken()
		if err == nil && tok.Type == TokenInteger {
			off, perr := strconv.ParseInt(string(tok.Value), 10, 64)
			if perr == nil && off >= 0 {
				return off, nil
			}
		}
		// "startxref" followed by junk; keep looking further back
		before = idx
	}
}

// HasEOFMarker reports whether a %%EOF marker appears within the last
// 1024 bytes of data.
func HasEOFMarker(data []byte) bool {
	from := len(data) - 1024
	if from < 0 {
		from = 0
	}
	return bytes.Contains(data[from:], []byte("%%EOF"))
}

// Helper functions

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

// IsWhitespace reports whether b is PDF whitespace
func IsWhitespace(b byte) bool { return isWhitespace(b) }

// IsDelimiter reports whether b is a PDF delimiter
func IsDelimiter(b byte) bool { return isDelimiter(b) }

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

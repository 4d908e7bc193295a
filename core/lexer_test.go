package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexerTokens(t *testing.T) {
	input := `%comment
<< /Type /Page /Kids [1 0 R] >> 12 -3.5 +.5 (a\(b\)c) <48 65> true T* /A#20B`
	l := NewLexer([]byte(input))

	want := []struct {
		typ   TokenType
		value string
	}{
		{TokenComment, "%comment"},
		{TokenDictStart, "<<"},
		{TokenName, "Type"},
		{TokenName, "Page"},
		{TokenName, "Kids"},
		{TokenArrayStart, "["},
		{TokenInteger, "1"},
		{TokenInteger, "0"},
		{TokenIndirectRef, "R"},
		{TokenArrayEnd, "]"},
		{TokenDictEnd, ">>"},
		{TokenInteger, "12"},
		{TokenReal, "-3.5"},
		{TokenReal, "+.5"},
		{TokenString, "a(b)c"},
		{TokenHexString, "He"},
		{TokenKeyword, "true"},
		{TokenKeyword, "T*"},
		{TokenName, "A B"},
		{TokenEOF, ""},
	}
	for i, w := range want {
		tok, err := l.NextToken()
		require.NoError(t, err, "token %d", i)
		assert.Equal(t, w.typ, tok.Type, "token %d", i)
		assert.Equal(t, w.value, string(tok.Value), "token %d", i)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"newline", `(a\nb)`, "a\nb"},
		{"octal", `(\101\102)`, "AB"},
		{"short octal", `(\7x)`, "\x07x"},
		{"nested", `(a(b)c)`, "a(b)c"},
		{"continuation", "(ab\\\ncd)", "abcd"},
		{"crlf", "(a\r\nb)", "a\nb"},
		{"unknown escape", `(\q)`, "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewLexer([]byte(tt.input)).NextToken()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(tok.Value))
		})
	}
}

func TestLexerHexOddDigits(t *testing.T) {
	tok, err := NewLexer([]byte("<414>")).NextToken()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x40}, tok.Value)
}

func TestLexerMalformed(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		offset int64
	}{
		{"bad hex digit", "<4Z>", 2},
		{"unterminated hex", "<4142", 0},
		{"unterminated string", "(abc", 0},
		{"stray gt", "  >", 2},
		{"stray paren", ")", 0},
		{"bad name escape", "/A#G1", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer([]byte(tt.input)).NextToken()
			var mt *MalformedTokenError
			require.True(t, errors.As(err, &mt), "got %v", err)
			assert.Equal(t, tt.offset, mt.Offset)
		})
	}
}

func TestLexerSeekAndReadBytes(t *testing.T) {
	l := NewLexer([]byte("stream\r\nABCDEF"))
	l.Seek(6)
	l.SkipStreamEOL()
	assert.Equal(t, int64(8), l.Pos())
	assert.Equal(t, []byte("ABC"), l.ReadBytes(3))
	assert.Equal(t, []byte("DEF"), l.ReadBytes(100))
	_, ok := l.Peek()
	assert.False(t, ok)
}

func TestFindStartXRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"normal", "%PDF-1.4\n...\nstartxref\n1234\n%%EOF\n", 1234, false},
		{"trailing garbage", "startxref\n99\n%%EOF\n\x00\x00garbage", 99, false},
		{"last wins", "startxref\n10\n%%EOF\nstartxref\n20\n%%EOF", 20, false},
		{"junk after keyword falls back", "startxref\n30\n%%EOF\nstartxref junk", 30, false},
		{"missing", "%PDF-1.4\nno marker", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindStartXRef([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLastIndex(t *testing.T) {
	data := []byte("abc abc abc")
	assert.Equal(t, 8, LastIndex(data, "abc", len(data)))
	assert.Equal(t, 4, LastIndex(data, "abc", 8))
	assert.Equal(t, -1, LastIndex(data, "abc", 2))
	assert.True(t, HasEOFMarker([]byte("x%%EOF\n")))
}

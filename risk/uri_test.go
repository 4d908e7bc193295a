package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/safepdf/core"
)

func TestURIFlags(t *testing.T) {
	tests := []struct {
		uri, display string
		want         []string // substrings, one per expected reason
	}{
		{"https://example.com/path?q=1", "", nil},
		{"www.example.com", "", nil},
		{"mailto:someone@example.com", "", nil},
		{"http://10.0.0.1/", "", []string{"IP-literal"}},
		{"http://[::1]:8080/", "", []string{"IP-literal"}},
		{"http://3232235777/", "", []string{"IP-literal"}},
		{"http://0xc0a80001/", "", []string{"IP-literal"}},
		{"http://0177.0.0.1/", "", []string{"IP-literal"}},
		{"http://0x7f.0.0.1/", "", []string{"IP-literal"}},
		{"http://0x7f.1/", "", []string{"IP-literal"}},
		{"http://127.1/", "", []string{"IP-literal"}},
		{"http://1.2.3.4.5/", "", nil},
		{"http://0400.0.0.1/", "", nil},
		{"http://0x7f.example.com/", "", nil},
		{"https://bücher.example/", "", []string{"internationalized host"}},
		{"https://xn--bcher-kva.example/", "", []string{"bücher.example"}},
		{"file:///etc/passwd", "", []string{"file: scheme"}},
		{"data:text/html;base64,PHNjcmlwdD4=", "", []string{"data: scheme"}},
		{"https://evil.example.net/", "Visit paypal.com today", []string{"display text names paypal.com"}},
		{"https://evil.example.net/", "ｐａｙｐａｌ．ｃｏｍ", []string{"display text names paypal.com"}},
		{"https://shop.example.co.uk/", "example.co.uk", nil},
		{"https://evil.example.net/", "open readme.txt", nil},
		{"http://192.168.1.1/", "https://www.mybank.com/login", []string{"IP-literal", "display text"}},
	}
	for _, tt := range tests {
		t.Run(tt.uri+"|"+tt.display, func(t *testing.T) {
			got := uriFlags(tt.uri, tt.display)
			require.Len(t, got, len(tt.want), "reasons %q", got)
			for i, w := range tt.want {
				assert.Contains(t, got[i], w)
			}
		})
	}
}

func TestDisplayDomain(t *testing.T) {
	tests := map[string]string{
		"":                               "",
		"click here":                     "",
		"(www.Example.com)":              "www.example.com",
		"see https://docs.example.org/x": "docs.example.org",
		"mail bob@example.com":           "",
		"version 1.2":                    "",
	}
	for text, want := range tests {
		assert.Equal(t, want, displayDomain(text), "displayDomain(%q)", text)
	}
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		in   core.String
		want string
	}{
		{"plain", "plain"},
		{"caf\xe9", "café"},
		{"\x80 item", "• item"},
		{"\xa0", "€"},
		{"\xfe\xff\x00H\x00i\x04\x10", "Hi\u0410"},
		{"\xef\xbb\xbfna\xc3\xafve", "naïve"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeText(tt.in), "DecodeText(%q)", tt.in)
	}
}

func TestReportOrdering(t *testing.T) {
	findings := []Finding{
		{Category: ExternalURI, Severity: Medium, Weight: 15, Location: Location{Object: 3}, Description: "b"},
		{Category: JavaScript, Severity: High, Weight: 40, Location: Location{Object: 9}, Description: "a"},
		{Category: SuspiciousObjectStream, Severity: Low, Weight: 5, Location: Location{Object: 1}, Description: "c"},
		{Category: ExternalURI, Severity: Medium, Weight: 15, Location: Location{Object: 2}, Description: "b"},
		{Category: ExternalURI, Severity: Medium, Weight: 15, Location: Location{Object: 3}, Description: "b"},
	}
	r := newReport(findings)
	require.Len(t, r.Findings, 4, "duplicates are dropped")
	var order []int
	for _, f := range r.Findings {
		order = append(order, f.Location.Object)
	}
	assert.Equal(t, []int{9, 2, 3, 1}, order)
	assert.EqualValues(t, 75, r.Score)
	assert.Equal(t, High, r.Highest())
	assert.Equal(t, "[high] JavaScript at 9 0 R: a", r.Findings[0].String())
	assert.Equal(t, "trailer /Info", Location{Object: 0, Path: "/Info"}.String())
}

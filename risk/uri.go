package risk

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"
)

// nonWebSchemes are URI schemes a link should never use.
var nonWebSchemes = map[string]bool{
	"javascript": true,
	"vbscript":   true,
	"file":       true,
	"data":       true,
	"smb":        true,
}

// uriFlags returns the reasons raw looks suspicious. display is the text
// a reader sees for the link, if any.
func uriFlags(raw, display string) []string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return []string{"malformed URI"}
	}
	if u.Scheme == "" && u.Host == "" && strings.Contains(raw, ".") {
		// Viewers treat a bare "www.example.com" as a web address
		if v, err := url.Parse("http://" + raw); err == nil {
			u = v
		}
	}

	var reasons []string
	if scheme := strings.ToLower(u.Scheme); nonWebSchemes[scheme] {
		reasons = append(reasons, scheme+": scheme")
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return reasons
	}
	if isIPLiteral(host) {
		reasons = append(reasons, "IP-literal host")
	}
	if ascii, uni, ok := internationalized(host); ok {
		reasons = append(reasons, fmt.Sprintf("internationalized host %s (%s)", uni, ascii))
	}
	if shown := displayDomain(display); shown != "" && registrable(shown) != registrable(host) {
		reasons = append(reasons, fmt.Sprintf("display text names %s but the link goes to %s", shown, host))
	}
	return reasons
}

// isIPLiteral reports whether host is an address rather than a name,
// including the shorthand dotted forms browsers accept: one to four parts,
// each decimal, octal (leading 0) or hex (0x), the last filling the
// remaining bytes.
func isIPLiteral(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}
	parts := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(parts) > 4 {
		return false
	}
	for i, part := range parts {
		n, ok := ipv4Number(part)
		if !ok {
			return false
		}
		limit := uint64(255)
		if i == len(parts)-1 {
			limit = 1<<(8*(5-len(parts))) - 1
		}
		if n > limit {
			return false
		}
	}
	return true
}

func ipv4Number(s string) (uint64, bool) {
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
		if s == "" {
			return 0, true
		}
	case len(s) > 1 && s[0] == '0':
		s, base = s[1:], 8
	}
	n, err := strconv.ParseUint(s, base, 32)
	return n, err == nil
}

// internationalized reports whether host uses punycode labels or
// non-ASCII characters, returning both spellings.
func internationalized(host string) (ascii, display string, ok bool) {
	ace := false
	for _, label := range strings.Split(host, ".") {
		if strings.HasPrefix(label, "xn--") {
			ace = true
		}
	}
	nonASCII := strings.IndexFunc(host, func(r rune) bool { return r > 0x7f }) >= 0
	if !ace && !nonASCII {
		return "", "", false
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		ascii = host
	}
	display, err = idna.Display.ToUnicode(ascii)
	if err != nil {
		display = host
	}
	return ascii, display, true
}

// registrable returns the registrable domain of host in ASCII form, or the
// host itself when it has none.
func registrable(host string) string {
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if d, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return d
	}
	return host
}

// displayDomain finds the first web address or domain name in text.
// Compatibility forms such as full-width letters are folded first.
func displayDomain(text string) string {
	text = strings.ToLower(norm.NFKC.String(text))
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, `<>()[]{}"'.,;:!?`)
		if field == "" || strings.Contains(field, "@") {
			continue
		}
		if strings.Contains(field, "://") {
			if u, err := url.Parse(field); err == nil && u.Hostname() != "" {
				return strings.TrimSuffix(u.Hostname(), ".")
			}
			continue
		}
		host := field
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
		if !strings.Contains(host, ".") {
			continue
		}
		ascii, err := idna.Lookup.ToASCII(host)
		if err != nil {
			continue
		}
		if _, icann := publicsuffix.PublicSuffix(ascii); icann {
			return host
		}
	}
	return ""
}

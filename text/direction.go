package text

import (
	"golang.org/x/text/unicode/bidi"
)

// Direction represents the writing direction of text.
type Direction int

const (
	// LTR (Left-to-Right) for Latin, Cyrillic, CJK, etc.
	LTR Direction = iota
	// RTL (Right-to-Left) for Arabic, Hebrew, etc.
	RTL
	// Neutral for numbers, punctuation, etc.
	Neutral
)

// String returns a string representation of the direction ("LTR", "RTL", or "Neutral").
func (d Direction) String() string {
	switch d {
	case LTR:
		return "LTR"
	case RTL:
		return "RTL"
	case Neutral:
		return "Neutral"
	default:
		return "Unknown"
	}
}

// DetectDirection returns the dominant direction of text: the direction
// with more strong characters, or Neutral when there are none. Ties go
// to LTR.
func DetectDirection(text string) Direction {
	ltr, rtl := 0, 0
	for _, r := range text {
		switch GetCharDirection(r) {
		case LTR:
			ltr++
		case RTL:
			rtl++
		}
	}
	switch {
	case ltr == 0 && rtl == 0:
		return Neutral
	case rtl > ltr:
		return RTL
	}
	return LTR
}

// GetCharDirection returns the inherent direction of r from its Unicode
// bidirectional class: class L is LTR, classes R and AL are RTL and all
// weak and neutral classes (digits, separators, punctuation, marks) are
// Neutral.
func GetCharDirection(r rune) Direction {
	props, _ := bidi.LookupRune(r)
	switch props.Class() {
	case bidi.L:
		return LTR
	case bidi.R, bidi.AL:
		return RTL
	}
	return Neutral
}

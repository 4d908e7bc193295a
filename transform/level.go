package transform

import (
	"fmt"

	"github.com/tsawler/safepdf/writer"
)

// Level selects how aggressively Reduce shrinks a document.
type Level int

const (
	// Good downsamples to 300 DPI and keeps the document information.
	Good Level = iota
	// Balanced downsamples to 150 DPI, keeps only the descriptive
	// information entries and packs objects into object streams.
	Balanced
	// Extreme downsamples to 96 DPI and drops the document information.
	Extreme
)

func (l Level) String() string {
	switch l {
	case Good:
		return "good"
	case Balanced:
		return "balanced"
	case Extreme:
		return "extreme"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// DPI is the resolution images are downsampled to.
func (l Level) DPI() float64 {
	switch l {
	case Balanced:
		return 150
	case Extreme:
		return 96
	}
	return 300
}

// WriterOptions returns the serializer options that go with the level.
func (l Level) WriterOptions() []writer.Option {
	if l == Balanced || l == Extreme {
		return []writer.Option{writer.WithObjectStreams(100)}
	}
	return nil
}

func (l Level) valid() bool {
	return l >= Good && l <= Extreme
}

// keptInfo lists the document information entries kept at Balanced.
var keptInfo = []string{"Title", "Author", "Subject", "Keywords"}

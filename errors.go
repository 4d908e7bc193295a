package safepdf

import (
	"context"
	"errors"

	"github.com/tsawler/safepdf/core"
	"github.com/tsawler/safepdf/transform"
)

// ErrorCategory classifies the errors the engine returns, for hosts that
// report failures without inspecting them.
type ErrorCategory int

const (
	Unknown ErrorCategory = iota
	MalformedToken
	UnresolvableXref
	MissingTrailer
	UnsupportedFilter
	Encrypted
	TransformationError
	Canceled
)

func (c ErrorCategory) String() string {
	switch c {
	case MalformedToken:
		return "MalformedToken"
	case UnresolvableXref:
		return "UnresolvableXref"
	case MissingTrailer:
		return "MissingTrailer"
	case UnsupportedFilter:
		return "UnsupportedFilter"
	case Encrypted:
		return "Encrypted"
	case TransformationError:
		return "TransformationError"
	case Canceled:
		return "Canceled"
	}
	return "Unknown"
}

// Category returns the category of err, looking through wrapped errors.
// A nil error is Unknown.
func Category(err error) ErrorCategory {
	var (
		malformed   *core.MalformedTokenError
		unsupported *core.UnsupportedFilterError
		transformed *transform.Error
	)
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled
	case errors.Is(err, core.ErrEncrypted):
		return Encrypted
	case errors.As(err, &transformed):
		return TransformationError
	case errors.As(err, &malformed):
		return MalformedToken
	case errors.As(err, &unsupported):
		return UnsupportedFilter
	case errors.Is(err, core.ErrUnresolvableXref):
		return UnresolvableXref
	case errors.Is(err, core.ErrMissingTrailer):
		return MissingTrailer
	}
	return Unknown
}

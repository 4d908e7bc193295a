package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvableXref is returned when neither the cross-reference data
	// nor a linear re-scan can locate any objects.
	ErrUnresolvableXref = errors.New("unresolvable cross-reference")

	// ErrMissingTrailer is returned when no trailer dictionary can be found
	// or synthesized.
	ErrMissingTrailer = errors.New("missing trailer")

	// ErrEncrypted is returned by operations that need decrypted content.
	ErrEncrypted = errors.New("encrypted documents are not supported")
)

// MalformedTokenError reports an unrecoverable lexical error.
type MalformedTokenError struct {
	Offset int64
	Reason string
}

func (e *MalformedTokenError) Error() string {
	return fmt.Sprintf("malformed token at offset %d: %s", e.Offset, e.Reason)
}

// UnsupportedFilterError reports a stream filter the engine cannot decode.
type UnsupportedFilterError struct {
	Filter string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("unsupported filter: %s", e.Filter)
}

func malformed(offset int64, format string, args ...interface{}) error {
	return &MalformedTokenError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

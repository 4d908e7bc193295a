package transform

import (
	"fmt"

	"github.com/tsawler/safepdf/core"
)

// Error reports a transformation that cannot be carried out. No partial
// result accompanies it.
type Error struct {
	// Op is the transformation: merge, split, crop, trim, rotate or reduce.
	Op     string
	Reason string
	// Ref names the offending object, if any.
	Ref core.IndirectRef
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Reason
	if e.Ref.Number > 0 {
		msg += fmt.Sprintf(" (object %d %d R)", e.Ref.Number, e.Ref.Generation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(op string, ref core.IndirectRef, format string, args ...interface{}) *Error {
	return &Error{Op: op, Ref: ref, Reason: fmt.Sprintf(format, args...)}
}

// Package logging holds the process-wide *logrus.Logger used for debug
// output by every safepdf package.
package logging

import (
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// logger holds the package-level logger instance for debug output.
// Defaults to nil, which causes Logger() to return a discard logger.
var logger atomic.Pointer[logrus.Logger]

// newDiscardLogger creates a logger that discards all output.
func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetLogger configures the package-level logger for debug output.
// Pass nil to disable logging.
//
// SetLogger is safe for concurrent use.
//
// Example enabling debug output to stderr:
//
//	l := logrus.New()
//	l.SetLevel(logrus.DebugLevel)
//	logging.SetLogger(l)
func SetLogger(l *logrus.Logger) {
	if l == nil {
		logger.Store(newDiscardLogger())
	} else {
		logger.Store(l)
	}
}

// Logger returns the package-level logger. If no logger has been set via
// SetLogger, it returns a logger that discards all output.
//
// Logger is safe for concurrent use.
func Logger() *logrus.Logger {
	l := logger.Load()
	if l == nil {
		l = newDiscardLogger()
		logger.Store(l)
	}
	return l
}

// Component returns an entry tagged with the component name. A nil l
// selects the package-level logger.
func Component(l *logrus.Logger, name string) *logrus.Entry {
	if l == nil {
		l = Logger()
	}
	return l.WithField("component", name)
}

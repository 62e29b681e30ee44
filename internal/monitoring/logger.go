// Package monitoring holds the process-wide run logger used by the command
// line tools and the database layer.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level run logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// WriterLogf returns a logger that writes prefixed, timestamped lines to w.
// A nil writer yields nil, which SetLogger treats as mute.
func WriterLogf(w io.Writer, prefix string) func(format string, v ...interface{}) {
	if w == nil {
		return nil
	}
	l := log.New(w, prefix, log.LstdFlags)
	return l.Printf
}

// Package monitoring carries the bridge's diagnostic side-channel: a
// swappable printf-style sink and a Hub that tees diagnostic lines to live
// subscribers.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Diagnostics are advisory only; nothing reads
// them back programmatically.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Printf forwards to the current Logf. It exists so callers can hold a
// stable function value while SetLogger swaps the sink underneath.
func Printf(format string, v ...interface{}) {
	Logf(format, v...)
}

// Package monitoring holds the process-wide infrastructure logger and the
// per-run diagnostic log.
package monitoring

import "log"

// Logf reports infrastructure events: link errors, database failures,
// dropped writes. Navigation messages go to the nav streams instead.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf and returns a func that restores the previous
// logger. A nil f mutes it.
//
// Logf must not write into a RunLog: the run log reports its own write
// failures through Logf.
func SetLogger(f func(format string, v ...interface{})) (restore func()) {
	prev := Logf
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
	return func() { Logf = prev }
}

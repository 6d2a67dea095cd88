package nav

import (
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the nav package.
// Pass nil for any writer to disable that stream. Lines carry no timestamp;
// the run log adds elapsed time itself.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[nav] ", ops)
	diagLogger = newLogger("[nav] ", diag)
	traceLogger = newLogger("[nav] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, 0)
}

// opsf logs to the ops stream (actuator failures, guard conditions).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (state transitions, decisions).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (one line per tick).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}

package monitoring

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/banshee-data/rover/internal/timeutil"
)

// RunLog is an append-only diagnostic log for a single run. Every line is
// prefixed with the seconds elapsed since the log was opened:
//
//	[   1.250] Line found! position=0.0
//
// Write failures are reported once through Logf and otherwise ignored so a
// full disk never interrupts navigation.
type RunLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	clock  timeutil.Clock
	start  time.Time
	failed bool
	closed bool
}

// OpenRunLog creates (truncating) the log file at path.
func OpenRunLog(path string, clock timeutil.Clock) (*RunLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}
	l := NewRunLog(f, clock)
	l.closer = f
	return l, nil
}

// NewRunLog wraps an existing writer. The writer is not closed by Close.
func NewRunLog(w io.Writer, clock timeutil.Clock) *RunLog {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &RunLog{w: w, clock: clock, start: clock.Now()}
}

// Printf formats a message and writes it as one or more log lines.
func (l *RunLog) Printf(format string, v ...interface{}) {
	_, _ = l.Write([]byte(fmt.Sprintf(format, v...)))
}

// Write implements io.Writer so the log can back a *log.Logger. Each line
// in p gets its own timestamp prefix. Write always reports success.
func (l *RunLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return len(p), nil
	}

	elapsed := l.clock.Since(l.start).Seconds()
	var buf bytes.Buffer
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		fmt.Fprintf(&buf, "[%8.3f] %s\n", elapsed, line)
	}
	if _, err := l.w.Write(buf.Bytes()); err != nil && !l.failed {
		l.failed = true
		Logf("run log write failed, further errors suppressed: %v", err)
	}
	return len(p), nil
}

// Close writes a final line and closes the underlying file, if any.
func (l *RunLog) Close() error {
	l.Printf("Closing log file")
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

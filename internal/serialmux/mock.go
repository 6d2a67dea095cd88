package serialmux

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
)

//go:embed fixtures/*.txt
var fixtureFS embed.FS

// Fixture returns the lines of the embedded fixture with the given name
// ("grid" or "obstacle").
func Fixture(name string) ([]string, error) {
	f, err := fixtureFS.Open("fixtures/" + name + ".txt")
	if err != nil {
		return nil, fmt.Errorf("unknown fixture %q: %w", name, err)
	}
	defer f.Close()
	return LoadFixture(f)
}

// LoadFixture reads board lines from r, skipping blank lines.
func LoadFixture(r io.Reader) ([]string, error) {
	var lines []string
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("fixture contains no lines")
	}
	return lines, nil
}

// ReplayPort is a SerialPorter that plays back recorded board lines. Echo
// records ("E,...") are held back and released one per "U" command written to
// the port, the way the board answers a ranging trigger. Every other line is
// streamed in a loop at a fixed interval. Commands written to the port are
// recorded.
type ReplayPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu      sync.Mutex
	written []string
	pending string

	echoReq chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewReplayPort starts streaming lines at interval.
func NewReplayPort(lines []string, interval time.Duration) *ReplayPort {
	r, w := io.Pipe()
	p := &ReplayPort{
		r:       r,
		w:       w,
		echoReq: make(chan struct{}, 8),
		done:    make(chan struct{}),
	}

	var stream, echoes []string
	for _, line := range lines {
		if ClassifyPayload(line) == EventTypeEcho {
			echoes = append(echoes, line)
		} else {
			stream = append(stream, line)
		}
	}
	go p.run(stream, echoes, interval)
	return p
}

func (p *ReplayPort) run(stream, echoes []string, interval time.Duration) {
	defer p.w.Close()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var si, ei int
	for {
		select {
		case <-p.done:
			return
		case <-p.echoReq:
			line := "E,-1"
			if len(echoes) > 0 {
				line = echoes[ei%len(echoes)]
				ei++
			}
			if _, err := io.WriteString(p.w, line+"\n"); err != nil {
				return
			}
		case <-ticker.C:
			if len(stream) == 0 {
				continue
			}
			if _, err := io.WriteString(p.w, stream[si%len(stream)]+"\n"); err != nil {
				return
			}
			si++
		}
	}
}

func (p *ReplayPort) Read(b []byte) (int, error) { return p.r.Read(b) }

// Write records complete command lines and answers ranging triggers.
func (p *ReplayPort) Write(b []byte) (int, error) {
	select {
	case <-p.done:
		return 0, errors.New("serial port closed")
	default:
	}

	p.mu.Lock()
	p.pending += string(b)
	var triggers int
	for {
		i := strings.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		cmd := strings.TrimSpace(p.pending[:i])
		p.pending = p.pending[i+1:]
		p.written = append(p.written, cmd)
		if cmd == "U" {
			triggers++
		}
	}
	p.mu.Unlock()

	for ; triggers > 0; triggers-- {
		select {
		case p.echoReq <- struct{}{}:
		default:
		}
	}
	return len(b), nil
}

// Close stops the replay and unblocks readers.
func (p *ReplayPort) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.r.Close()
	})
	return nil
}

// Written returns the commands written so far.
func (p *ReplayPort) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

// ReplayPortFactory opens ReplayPorts over a fixed set of lines. The path is
// ignored.
type ReplayPortFactory struct {
	Lines    []string
	Interval time.Duration
}

func (f *ReplayPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	if len(f.Lines) == 0 {
		return nil, errors.New("replay factory has no lines")
	}
	interval := f.Interval
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	log.Printf("Replaying %d fixture lines in place of %s", len(f.Lines), path)
	return NewReplayPort(f.Lines, interval), nil
}


// TestableSerialPort is an in-memory SerialPorter. Reads block until board
// lines are fed, End is called or the port is closed, the way a quiet UART
// does.
type TestableSerialPort struct {
	mu    sync.Mutex
	cond  *sync.Cond
	in    bytes.Buffer
	out   bytes.Buffer
	ended bool

	// WriteError fails the next Write.
	WriteError error
	// ShortWrite makes Write report one byte fewer than it was given.
	ShortWrite bool
	// CloseError is returned by Close.
	CloseError error

	closed bool
}

// NewTestableSerialPort returns an open port with nothing to read.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.in.Len() == 0 && !p.ended && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if p.in.Len() == 0 {
		return 0, io.EOF
	}
	return p.in.Read(b)
}

func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, errors.New("serial port closed")
	}
	if err := p.WriteError; err != nil {
		p.WriteError = nil
		return 0, err
	}
	if p.ShortWrite && len(b) > 0 {
		b = b[:len(b)-1]
	}
	return p.out.Write(b)
}

// Close unblocks readers. Later reads and writes fail.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return p.CloseError
}

// Feed queues board lines for reading. Each gets a trailing newline.
func (p *TestableSerialPort) Feed(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, line := range lines {
		p.in.WriteString(line + "\n")
	}
	p.cond.Broadcast()
}

// AddReadData queues raw bytes for reading.
func (p *TestableSerialPort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.in.Write(data)
	p.cond.Broadcast()
}

// End makes Read return io.EOF once the queued data is consumed.
func (p *TestableSerialPort) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended = true
	p.cond.Broadcast()
}

// GetWrittenData returns everything written so far.
func (p *TestableSerialPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.out.Bytes())
}

// Written returns the command lines written so far.
func (p *TestableSerialPort) Written() []string {
	return strings.Fields(string(p.GetWrittenData()))
}

// IsClosed reports whether Close was called.
func (p *TestableSerialPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// MockSerialPortFactory hands out a fixed port and records each Open.
type MockSerialPortFactory struct {
	mu sync.Mutex

	Port  SerialPorter
	Error error

	OpenCalls []MockOpenCall
}

// MockOpenCall is the arguments of one Open.
type MockOpenCall struct {
	Path string
	Mode *SerialPortMode
}

// NewMockSerialPortFactory returns a factory that opens port.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

func (f *MockSerialPortFactory) Open(path string, mode *SerialPortMode) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.OpenCalls = append(f.OpenCalls, MockOpenCall{Path: path, Mode: mode})
	if f.Error != nil {
		return nil, f.Error
	}
	return f.Port, nil
}

// LastCall returns the most recent Open, or nil.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}

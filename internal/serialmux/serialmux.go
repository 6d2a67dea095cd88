// Package serialmux owns the serial link to the I/O board. A single Monitor
// goroutine reads board records and fans them out to subscribers; commands
// from any goroutine are serialised onto the port one line at a time.
package serialmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/rover/internal/httputil"
)

var (
	// ErrWriteFailed reports a short write to the port.
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrClosed is returned by SendCommand after Close.
	ErrClosed = errors.New("serial link closed")
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// subscriberBuffer is how many records a slow subscriber may lag behind
// before records are dropped for it.
const subscriberBuffer = 16

// safeState is sent by Initialize: motors stopped, tone off, LEDs dark,
// display cleared.
var safeState = []string{"M,0,0", "T,0,0", "L,0,0,0", "D,C", "D,S"}

// SerialMux multiplexes one board port between many readers.
type SerialMux[T SerialPorter] struct {
	port T

	subscriberMu sync.Mutex
	subscribers  map[string]chan string

	commandMu sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	counts   [numEventTypes]atomic.Uint64
	dropped  atomic.Uint64
	commands atomic.Uint64
	lastLine atomic.Int64
}

// NewSerialMux wraps port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID returns 8 random bytes hex encoded.
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe returns an id and a channel receiving every record read after
// the call. The channel is closed by Unsubscribe or Close.
func (s *SerialMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if s.closed.Load() {
		close(ch)
		return id, ch
	}
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and forgets the subscriber. Unknown ids are ignored.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize puts the board into its safe state.
func (s *SerialMux[T]) Initialize() error {
	for _, command := range safeState {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes one command line. A command may not contain a line
// break; the terminating newline is added here.
func (s *SerialMux[T]) SendCommand(command string) error {
	command = strings.TrimRight(command, "\r\n")
	if strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("command %q spans more than one line", command)
	}
	if s.closed.Load() {
		return ErrClosed
	}

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	line := []byte(command + "\n")
	n, err := s.port.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return ErrWriteFailed
	}
	s.commands.Add(1)
	return nil
}

// Monitor reads records until ctx is done, the port reaches EOF or the
// link is closed. It returns ctx.Err() on cancellation and nil on EOF or
// Close.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	// Scan blocks in Read, so it runs apart from the select below.
	go func() {
		defer close(lines)
		scan := bufio.NewScanner(s.port)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil && !s.closed.Load() {
			scanErr <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if s.closed.Load() {
				return nil
			}
			s.publish(line)
		}
	}
}

func (s *SerialMux[T]) publish(line string) {
	s.counts[eventIndex(ClassifyPayload(line))].Add(1)
	s.lastLine.Store(time.Now().UnixNano())

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- line:
		default:
			s.dropped.Add(1)
		}
	}
}

// Close closes every subscriber channel and the port. Further calls return
// nil.
func (s *SerialMux[T]) Close() error {
	err := error(nil)
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.subscriberMu.Lock()
		for id, ch := range s.subscribers {
			close(ch)
			delete(s.subscribers, id)
		}
		s.subscriberMu.Unlock()
		err = s.port.Close()
	})
	return err
}

// Stats is a snapshot of the link counters.
type Stats struct {
	Records     map[string]uint64 `json:"records"`
	Dropped     uint64            `json:"dropped"`
	Commands    uint64            `json:"commands"`
	Subscribers int               `json:"subscribers"`
	LastRecord  time.Time         `json:"last_record,omitempty"`
}

// Stats returns the record counts by type, the records dropped for slow
// subscribers and the commands written.
func (s *SerialMux[T]) Stats() Stats {
	st := Stats{
		Records:  make(map[string]uint64, numEventTypes),
		Dropped:  s.dropped.Load(),
		Commands: s.commands.Load(),
	}
	for i, name := range eventTypes {
		st.Records[name] = s.counts[i].Load()
	}
	if ns := s.lastLine.Load(); ns != 0 {
		st.LastRecord = time.Unix(0, ns)
	}
	s.subscriberMu.Lock()
	st.Subscribers = len(s.subscribers)
	s.subscriberMu.Unlock()
	return st
}

// AttachAdminRoutes adds the board console, a live record tail and the link
// counters to the tsweb debug index.
func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "I/O board console", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := sendCommandTemplate.Execute(&buf, nil); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, &buf)
	})

	debug.HandleFunc("serial-stats", "Serial link counters as JSON", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, s.Stats())
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write command: %v", err), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	// Server-sent events, one per board record.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		io.WriteString(w, ": ping\n\n")
		flusher.Flush()
		for {
			select {
			case line, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("tail.js", func(w http.ResponseWriter, r *http.Request) {
		f, err := adminTemplateFS.Open("templates/tail.js")
		if err != nil {
			http.Error(w, "Failed to open tail.js", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/javascript")
		w.Header().Set("Cache-Control", "no-cache")
		io.Copy(w, f)
	})
}

package telemetry

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rover/internal/monitoring"
)

// Tick is one control-loop iteration.
type Tick struct {
	Seq   int
	At    time.Time
	State string
	Left  int
	Right int
	Line  [5]int
	// Position is valid only when OnLine is set.
	Position float64
	OnLine   bool
	// Distance is valid only when Echo is set.
	Distance float64
	Echo     bool
}

// Event is a notable navigator decision.
type Event struct {
	At     time.Time
	Kind   string
	Detail string
}

// queueDepth is how many full batches may wait for the writer before new
// batches are dropped.
const queueDepth = 8

// ErrRecorderClosed is returned by Flush after Close.
var ErrRecorderClosed = errors.New("telemetry recorder closed")

type batch struct {
	ticks  []Tick
	events []Event
	// done receives the write result when the sender waits for it.
	done chan error
}

// Recorder buffers ticks and events for one run. Every flushEvery ticks the
// buffer is handed to a writer goroutine that commits it in one
// transaction, so RecordTick and RecordEvent never wait on the database. If
// the writer falls behind by queueDepth batches, further batches are dropped
// and counted. Write errors are logged and the batch discarded.
type Recorder struct {
	db         *DB
	runID      string
	flushEvery int

	mu     sync.Mutex
	seq    int
	ticks  []Tick
	events []Event
	closed bool

	queue   chan batch
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Uint64

	// failed is owned by the writer goroutine.
	failed bool
}

// NewRecorder returns a Recorder for the run and starts its writer.
func NewRecorder(db *DB, runID string, flushEvery int) *Recorder {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	r := &Recorder{
		db:         db,
		runID:      runID,
		flushEvery: flushEvery,
		ticks:      make([]Tick, 0, flushEvery),
		queue:      make(chan batch, queueDepth),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go r.run()
	return r
}

// RunID returns the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

// Dropped returns the number of ticks discarded because the writer was
// behind.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// RecordTick buffers t, assigning its sequence number, and hands the buffer
// to the writer when it is full. It does not block on the database.
func (r *Recorder) RecordTick(t Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	t.Seq = r.seq
	r.seq++
	r.ticks = append(r.ticks, t)
	if len(r.ticks) >= r.flushEvery {
		r.handOffLocked()
	}
}

// RecordEvent buffers an event; it is written with the next batch.
func (r *Recorder) RecordEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.events = append(r.events, e)
}

func (r *Recorder) takeLocked() batch {
	b := batch{ticks: r.ticks, events: r.events}
	r.ticks = make([]Tick, 0, r.flushEvery)
	r.events = nil
	return b
}

func (r *Recorder) handOffLocked() {
	b := r.takeLocked()
	select {
	case r.queue <- b:
	default:
		n := uint64(len(b.ticks))
		if r.dropped.Add(n) == n {
			monitoring.Logf("telemetry writer behind, dropping batches (run %s)", r.runID)
		}
	}
}

// Flush hands over everything buffered so far and waits until it is
// written. It blocks on the database and is not for the control loop.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	b := r.takeLocked()
	r.mu.Unlock()
	return r.send(b)
}

func (r *Recorder) send(b batch) error {
	b.done = make(chan error, 1)
	select {
	case r.queue <- b:
	case <-r.done:
		return ErrRecorderClosed
	}
	select {
	case err := <-b.done:
		return err
	case <-r.done:
		// The writer may have answered just before exiting.
		select {
		case err := <-b.done:
			return err
		default:
			return ErrRecorderClosed
		}
	}
}

// Close writes the remaining buffer, waits for the writer to drain its
// queue and stamps the run's end time. Later calls return nil.
func (r *Recorder) Close(ended time.Time) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	b := r.takeLocked()
	r.mu.Unlock()

	err := r.send(b)
	close(r.stop)
	<-r.done
	return errors.Join(err, r.db.EndRun(r.runID, ended))
}

func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case b := <-r.queue:
			r.writeBatch(b)
		case <-r.stop:
			for {
				select {
				case b := <-r.queue:
					r.writeBatch(b)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeBatch(b batch) {
	var err error
	if len(b.ticks) > 0 || len(b.events) > 0 {
		err = r.write(b)
	}
	if err != nil {
		if !r.failed {
			monitoring.Logf("telemetry flush failed, dropping batch: %v", err)
		}
		r.failed = true
	} else {
		r.failed = false
	}
	if b.done != nil {
		b.done <- err
	}
}

func (r *Recorder) write(b batch) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin telemetry tx: %w", err)
	}
	defer tx.Rollback()

	tickStmt, err := tx.Prepare(`INSERT INTO ticks (
			run_id, seq, at_ns, state, left_cmd, right_cmd,
			line0, line1, line2, line3, line4, position, distance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare tick insert: %w", err)
	}
	defer tickStmt.Close()

	for _, t := range b.ticks {
		pos := sql.NullFloat64{Float64: t.Position, Valid: t.OnLine}
		dist := sql.NullFloat64{Float64: t.Distance, Valid: t.Echo}
		if _, err := tickStmt.Exec(
			r.runID, t.Seq, t.At.UnixNano(), t.State, t.Left, t.Right,
			t.Line[0], t.Line[1], t.Line[2], t.Line[3], t.Line[4], pos, dist,
		); err != nil {
			return fmt.Errorf("failed to insert tick %d: %w", t.Seq, err)
		}
	}

	for _, e := range b.events {
		if _, err := tx.Exec(
			`INSERT INTO events (run_id, at_ns, kind, detail) VALUES (?, ?, ?, ?)`,
			r.runID, e.At.UnixNano(), e.Kind, e.Detail,
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}
	return tx.Commit()
}

package hw

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/rover/internal/timeutil"
)

// EchoLatch pairs ranging triggers with the board's echo records. The board
// answers every trigger with exactly one echo, in order, so echoes are
// numbered as they arrive and a waiter only accepts the echo carrying its own
// trigger's number. An echo arriving after its pulse gave up is discarded
// instead of being taken for the next pulse.
//
// An echo the board never sends would shift the numbering. Once the last
// unanswered wait has been expired for longer than settle, the next Arm
// treats every outstanding trigger as lost and starts afresh.
type EchoLatch struct {
	clock  timeutil.Clock
	settle time.Duration
	notify chan struct{}

	mu       sync.Mutex
	sent     uint64
	received uint64
	value    float64
	expired  time.Time
}

// NewEchoLatch returns a latch with no triggers outstanding. A nil clock uses
// the real clock.
func NewEchoLatch(clock timeutil.Clock, settle time.Duration) *EchoLatch {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &EchoLatch{clock: clock, settle: settle, notify: make(chan struct{}, 1)}
}

// Arm registers a trigger about to be sent and returns its number.
func (l *EchoLatch) Arm() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.received < l.sent && !l.expired.IsZero() && l.clock.Since(l.expired) >= l.settle {
		l.received = l.sent
	}
	l.sent++
	return l.sent
}

// Disarm withdraws trigger id when it could not be sent.
func (l *EchoLatch) Disarm(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sent == id && l.received < id {
		l.sent--
	}
}

// Publish records the next echo. Echoes with no trigger outstanding are
// ignored.
func (l *EchoLatch) Publish(micros float64) {
	l.mu.Lock()
	if l.received >= l.sent {
		l.mu.Unlock()
		return
	}
	l.received++
	l.value = micros
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *EchoLatch) answer(id uint64) (micros float64, ok, done bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.received < id {
		return 0, false, false
	}
	return l.value, l.received == id, true
}

func (l *EchoLatch) expire(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.received < id {
		l.expired = l.clock.Now()
	}
}

// Wait blocks until the echo for trigger id arrives, the timeout expires or
// ctx is done. ok is false unless that echo arrived.
func (l *EchoLatch) Wait(ctx context.Context, id uint64, timeout time.Duration) (micros float64, ok bool) {
	timer := l.clock.After(timeout)
	for {
		if v, ok, done := l.answer(id); done {
			return v, ok
		}
		select {
		case <-l.notify:
		case <-timer:
			if v, ok, done := l.answer(id); done {
				return v, ok
			}
			l.expire(id)
			return 0, false
		case <-ctx.Done():
			l.expire(id)
			return 0, false
		}
	}
}

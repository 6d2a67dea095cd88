package hw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover/internal/timeutil"
)

const echoTimeout = 30 * time.Millisecond

func newMockLatch() (*EchoLatch, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return NewEchoLatch(clock, echoTimeout), clock
}

type waitResult struct {
	micros float64
	ok     bool
}

// startWait runs Wait in the background and returns once its timer is
// registered with the mock clock.
func startWait(t *testing.T, l *EchoLatch, clock *timeutil.MockClock, id uint64) <-chan waitResult {
	t.Helper()
	before := clock.Waiters()
	out := make(chan waitResult, 1)
	go func() {
		v, ok := l.Wait(context.Background(), id, echoTimeout)
		out <- waitResult{v, ok}
	}()
	require.Eventually(t, func() bool { return clock.Waiters() > before }, time.Second, time.Millisecond)
	return out
}

func result(t *testing.T, ch <-chan waitResult) waitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("Wait did not return")
		return waitResult{}
	}
}

func TestEchoLatch_WaitReceivesOwnEcho(t *testing.T) {
	t.Parallel()

	l, clock := newMockLatch()
	id := l.Arm()
	done := startWait(t, l, clock, id)
	l.Publish(1764)

	assert.Equal(t, waitResult{1764, true}, result(t, done))
}

func TestEchoLatch_AlreadyPublished(t *testing.T) {
	t.Parallel()

	l, _ := newMockLatch()
	id := l.Arm()
	l.Publish(42)
	v, ok := l.Wait(context.Background(), id, echoTimeout)
	assert.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestEchoLatch_UnsolicitedEchoIgnored(t *testing.T) {
	t.Parallel()

	l, clock := newMockLatch()
	l.Publish(100)
	id := l.Arm()
	done := startWait(t, l, clock, id)

	clock.Advance(echoTimeout)
	assert.Equal(t, waitResult{0, false}, result(t, done), "an echo with no trigger outstanding must not satisfy the wait")
}

func TestEchoLatch_LateEchoNotTakenForNextPulse(t *testing.T) {
	t.Parallel()

	l, clock := newMockLatch()
	first := l.Arm()
	done := startWait(t, l, clock, first)
	clock.Advance(echoTimeout)
	require.False(t, result(t, done).ok)

	second := l.Arm()
	done = startWait(t, l, clock, second)
	l.Publish(9999) // answer to the first trigger, arriving late
	select {
	case r := <-done:
		t.Fatalf("second pulse took the late echo: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	l.Publish(1176)
	assert.Equal(t, waitResult{1176, true}, result(t, done))
}

func TestEchoLatch_LostEchoResyncsAfterSettle(t *testing.T) {
	t.Parallel()

	l, clock := newMockLatch()
	first := l.Arm()
	done := startWait(t, l, clock, first)
	clock.Advance(echoTimeout)
	require.False(t, result(t, done).ok)

	// The board never answers the first trigger.
	clock.Advance(echoTimeout)
	second := l.Arm()
	l.Publish(588)
	v, ok := l.Wait(context.Background(), second, echoTimeout)
	assert.True(t, ok)
	assert.Equal(t, 588.0, v)
}

func TestEchoLatch_DisarmUnsentTrigger(t *testing.T) {
	t.Parallel()

	l, _ := newMockLatch()
	id := l.Arm()
	l.Disarm(id)

	next := l.Arm()
	assert.Equal(t, id, next, "a withdrawn trigger number is reused")
	l.Publish(294)
	v, ok := l.Wait(context.Background(), next, echoTimeout)
	assert.True(t, ok)
	assert.Equal(t, 294.0, v)
}

func TestEchoLatch_ContextCancel(t *testing.T) {
	t.Parallel()

	l, _ := newMockLatch()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := l.Wait(ctx, l.Arm(), echoTimeout)
	assert.False(t, ok)
}

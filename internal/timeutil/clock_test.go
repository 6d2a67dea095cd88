package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	if d := clock.Since(past); d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestRealClock_After(t *testing.T) {
	clock := RealClock{}
	select {
	case <-clock.After(5 * time.Millisecond):
	case <-time.After(500 * time.Millisecond):
		t.Error("After did not fire")
	}
}

func TestMockClock_SleepAdvances(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	clock.Sleep(10 * time.Millisecond)
	clock.Sleep(50 * time.Millisecond)

	if got := clock.Since(start); got != 60*time.Millisecond {
		t.Errorf("Since(start) = %v, want 60ms", got)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 10*time.Millisecond || sleeps[1] != 50*time.Millisecond {
		t.Errorf("Sleeps() = %v, want [10ms 50ms]", sleeps)
	}
}

func TestMockClock_After(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	ch := clock.After(30 * time.Millisecond)

	clock.Advance(20 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("After fired before deadline")
	default:
	}

	clock.Advance(10 * time.Millisecond)
	select {
	case got := <-ch:
		if want := start.Add(30 * time.Millisecond); !got.Equal(want) {
			t.Errorf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatal("After did not fire at deadline")
	}
}

func TestMockClock_AfterZero(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	select {
	case <-clock.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	target := time.Unix(100, 0)
	clock.Set(target)
	if !clock.Now().Equal(target) {
		t.Errorf("Now() = %v, want %v", clock.Now(), target)
	}
}

func TestStopwatch(t *testing.T) {
	start := time.Unix(1000, 0)
	var sw Stopwatch

	if sw.Running() {
		t.Fatal("zero Stopwatch should be stopped")
	}
	if sw.Elapsed(start) != 0 {
		t.Error("stopped Stopwatch should report zero elapsed")
	}
	if sw.Exceeded(start.Add(time.Hour), time.Second) {
		t.Error("stopped Stopwatch should never exceed")
	}

	sw.Start(start)
	if got := sw.Elapsed(start.Add(150 * time.Millisecond)); got != 150*time.Millisecond {
		t.Errorf("Elapsed = %v, want 150ms", got)
	}
	if sw.Exceeded(start.Add(150*time.Millisecond), 150*time.Millisecond) {
		t.Error("Exceeded should be strict at the boundary")
	}
	if !sw.Exceeded(start.Add(151*time.Millisecond), 150*time.Millisecond) {
		t.Error("Exceeded should be true past the boundary")
	}

	sw.Stop()
	if sw.Running() {
		t.Error("Stop should clear the stopwatch")
	}
}

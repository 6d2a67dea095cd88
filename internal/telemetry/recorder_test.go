package telemetry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tickAt(i int) Tick {
	return Tick{
		At:       t0.Add(time.Duration(i) * 10 * time.Millisecond),
		State:    "FOLLOWING",
		Left:     9,
		Right:    9,
		Line:     [5]int{700, 700, 200, 700, 700},
		OnLine:   true,
		Position: 0,
	}
}

func countTicks(t *testing.T, db *DB, runID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM ticks WHERE run_id = ?`, runID).Scan(&n))
	return n
}

func TestRecorder_FlushesEveryN(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun("grid", "test", t0)
	require.NoError(t, err)

	rec := NewRecorder(db, run.ID, 50)
	for i := 0; i < 49; i++ {
		rec.RecordTick(tickAt(i))
	}
	assert.Equal(t, 0, countTicks(t, db, run.ID), "nothing is written before the batch fills")

	rec.RecordTick(tickAt(49))
	require.NoError(t, rec.Flush())
	assert.Equal(t, 50, countTicks(t, db, run.ID))

	rec.RecordTick(tickAt(50))
	rec.RecordEvent(Event{At: t0, Kind: "stall", Detail: "forward boost=0"})
	require.NoError(t, rec.Close(t0.Add(time.Second)))
	assert.Equal(t, 51, countTicks(t, db, run.ID), "close flushes the remainder")

	events, err := db.Events(run.ID)
	require.NoError(t, err)
	if diff := cmp.Diff([]Event{{At: t0, Kind: "stall", Detail: "forward boost=0"}}, events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.True(t, got.Ended.Equal(t0.Add(time.Second)))
}

func TestRecorder_RoundTripsTicks(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun("obstacle", "test", t0)
	require.NoError(t, err)

	in := []Tick{
		{At: t0, State: "SCANNING", Left: 13, Right: -13, Distance: 999},
		{At: t0.Add(50 * time.Millisecond), State: "FOLLOWING", Left: 20, Right: 20, Distance: 40, Echo: true},
	}
	rec := NewRecorder(db, run.ID, 10)
	for _, tk := range in {
		rec.RecordTick(tk)
	}
	require.NoError(t, rec.Flush())

	out, err := db.Ticks(run.ID)
	require.NoError(t, err)

	want := []Tick{
		{Seq: 0, At: t0, State: "SCANNING", Left: 13, Right: -13},
		{Seq: 1, At: t0.Add(50 * time.Millisecond), State: "FOLLOWING", Left: 20, Right: 20, Distance: 40, Echo: true},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Ticks mismatch (-want +got):\n%s", diff)
	}
}

func TestRecorder_FailedFlushDropsBatch(t *testing.T) {
	db := newTestDB(t)
	rec := NewRecorder(db, "no-such-run", 10)
	rec.RecordTick(tickAt(0))

	assert.Error(t, rec.Flush(), "an unknown run violates the foreign key")
	assert.NoError(t, rec.Flush(), "the failed batch is dropped")
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun("grid", "test", t0)
	require.NoError(t, err)

	rec := NewRecorder(db, run.ID, 10)
	rec.RecordTick(tickAt(0))
	require.NoError(t, rec.Close(t0))
	assert.NoError(t, rec.Close(t0))
	assert.ErrorIs(t, rec.Flush(), ErrRecorderClosed)

	rec.RecordTick(tickAt(1))
	assert.Equal(t, 1, countTicks(t, db, run.ID), "ticks after close are ignored")
}

func TestRecorder_RecordTickDoesNotWaitForLockedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	db, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	run, err := db.StartRun("grid", "test", t0)
	require.NoError(t, err)

	// A second connection takes the write lock and holds it.
	other, err := OpenDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })
	ctx := context.Background()
	conn, err := other.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)

	rec := NewRecorder(db, run.ID, 1)
	n := queueDepth + 5
	start := time.Now()
	for i := 0; i < n; i++ {
		rec.RecordTick(tickAt(i))
	}
	elapsed := time.Since(start)
	assert.Less(t, elapsed, 500*time.Millisecond, "recording must not wait on the database lock")
	assert.NotZero(t, rec.Dropped(), "batches beyond the queue depth are dropped")

	_, err = conn.ExecContext(ctx, "ROLLBACK")
	require.NoError(t, err)
	require.NoError(t, rec.Close(t0.Add(time.Second)))

	written := countTicks(t, db, run.ID)
	assert.Equal(t, n-int(rec.Dropped()), written)
	assert.Positive(t, written)
}

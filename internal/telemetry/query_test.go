package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	ticks := []Tick{
		{At: t0, State: "SEARCHING"},
		{At: t0.Add(10 * time.Millisecond), State: "FOLLOWING", OnLine: true, Position: -1, Distance: 30, Echo: true},
		{At: t0.Add(20 * time.Millisecond), State: "FOLLOWING", OnLine: true, Position: 0.5, Distance: 50, Echo: true},
		{At: t0.Add(30 * time.Millisecond), State: "FOLLOWING", OnLine: true, Position: 0},
	}
	events := []Event{{Kind: "stall"}, {Kind: "stall"}, {Kind: "intersection"}}

	s := Summarize(ticks, events)
	assert.Equal(t, 4, s.Ticks)
	assert.Equal(t, 30*time.Millisecond, s.Duration)
	assert.InDelta(t, 0.75, s.StateShare["FOLLOWING"], 1e-9)
	assert.InDelta(t, 0.25, s.StateShare["SEARCHING"], 1e-9)
	assert.InDelta(t, 0.5, s.MeanAbsPosition, 1e-9)
	assert.InDelta(t, 40, s.MeanDistance, 1e-9)
	assert.InDelta(t, 14.142135623730951, s.StdDistance, 1e-9, "sample standard deviation")
	assert.Equal(t, map[string]int{"stall": 2, "intersection": 1}, s.Events)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)
	assert.Zero(t, s.Ticks)
	assert.Zero(t, s.Duration)
	assert.Empty(t, s.StateShare)

	s = Summarize([]Tick{{At: t0, Distance: 25, Echo: true}}, nil)
	assert.Equal(t, 25.0, s.MeanDistance)
	assert.Zero(t, s.StdDistance)
}

func TestDB_Summarize(t *testing.T) {
	db := newTestDB(t)
	run, err := db.StartRun("grid", "test", t0)
	require.NoError(t, err)
	rec := NewRecorder(db, run.ID, 100)
	for i := 0; i < 10; i++ {
		rec.RecordTick(tickAt(i))
	}
	rec.RecordEvent(Event{At: t0, Kind: "transition", Detail: "SEARCHING->FOLLOWING"})
	require.NoError(t, rec.Flush())

	s, err := db.Summarize(run.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Ticks)
	assert.Equal(t, 90*time.Millisecond, s.Duration)
	assert.Equal(t, 1, s.Events["transition"])
}

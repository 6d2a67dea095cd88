package telemetry

import (
	"database/sql"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Ticks returns the run's ticks in order.
func (db *DB) Ticks(runID string) ([]Tick, error) {
	rows, err := db.Query(`SELECT seq, at_ns, state, left_cmd, right_cmd,
			line0, line1, line2, line3, line4, position, distance
		FROM ticks WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []Tick
	for rows.Next() {
		var (
			t        Tick
			at       int64
			pos, dst sql.NullFloat64
		)
		if err := rows.Scan(&t.Seq, &at, &t.State, &t.Left, &t.Right,
			&t.Line[0], &t.Line[1], &t.Line[2], &t.Line[3], &t.Line[4], &pos, &dst); err != nil {
			return nil, err
		}
		t.At = time.Unix(0, at).UTC()
		t.Position, t.OnLine = pos.Float64, pos.Valid
		t.Distance, t.Echo = dst.Float64, dst.Valid
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// Events returns the run's events in time order.
func (db *DB) Events(runID string) ([]Event, error) {
	rows, err := db.Query(`SELECT at_ns, kind, detail FROM events WHERE run_id = ? ORDER BY at_ns, event_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			at int64
		)
		if err := rows.Scan(&at, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// Summary aggregates one run.
type Summary struct {
	Ticks    int           `json:"ticks"`
	Duration time.Duration `json:"duration_ns"`
	// StateShare is the fraction of ticks spent in each state.
	StateShare map[string]float64 `json:"state_share"`
	// MeanAbsPosition is the mean line offset magnitude over on-line ticks.
	MeanAbsPosition float64        `json:"mean_abs_position"`
	MeanDistance    float64        `json:"mean_distance"`
	StdDistance     float64        `json:"std_distance"`
	Events          map[string]int `json:"events"`
}

// Summarize computes the Summary of a run.
func (db *DB) Summarize(runID string) (Summary, error) {
	ticks, err := db.Ticks(runID)
	if err != nil {
		return Summary{}, err
	}
	events, err := db.Events(runID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(ticks, events), nil
}

// Summarize aggregates ticks and events already in memory.
func Summarize(ticks []Tick, events []Event) Summary {
	s := Summary{
		Ticks:      len(ticks),
		StateShare: map[string]float64{},
		Events:     map[string]int{},
	}
	for _, e := range events {
		s.Events[e.Kind]++
	}
	if len(ticks) == 0 {
		return s
	}
	s.Duration = ticks[len(ticks)-1].At.Sub(ticks[0].At)

	var positions, distances []float64
	for _, t := range ticks {
		s.StateShare[t.State]++
		if t.OnLine {
			positions = append(positions, math.Abs(t.Position))
		}
		if t.Echo {
			distances = append(distances, t.Distance)
		}
	}
	for k, n := range s.StateShare {
		s.StateShare[k] = n / float64(len(ticks))
	}
	if len(positions) > 0 {
		s.MeanAbsPosition = stat.Mean(positions, nil)
	}
	switch len(distances) {
	case 0:
	case 1:
		s.MeanDistance = distances[0]
	default:
		s.MeanDistance, s.StdDistance = stat.MeanStdDev(distances, nil)
	}
	return s
}

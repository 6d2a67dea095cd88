package telemetry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoRuns is returned by LatestRun on an empty database.
var ErrNoRuns = errors.New("no runs recorded")

// Run is one execution of the control loop.
type Run struct {
	ID      string    `json:"id"`
	Mode    string    `json:"mode"`
	Version string    `json:"version"`
	Started time.Time `json:"started"`
	// Ended is zero while the run is in progress or if it never shut down
	// cleanly.
	Ended time.Time `json:"ended"`
}

// StartRun inserts a new run and returns it.
func (db *DB) StartRun(mode, version string, started time.Time) (Run, error) {
	r := Run{ID: uuid.NewString(), Mode: mode, Version: version, Started: started}
	_, err := db.Exec(
		`INSERT INTO runs (run_id, mode, version, started_ns) VALUES (?, ?, ?, ?)`,
		r.ID, r.Mode, r.Version, started.UnixNano(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to start run: %w", err)
	}
	return r, nil
}

// EndRun stamps the end time of a run.
func (db *DB) EndRun(id string, ended time.Time) error {
	res, err := db.Exec(`UPDATE runs SET ended_ns = ? WHERE run_id = ?`, ended.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to end run: unknown run %s", id)
	}
	return nil
}

// Runs returns every run, newest first.
func (db *DB) Runs() ([]Run, error) {
	rows, err := db.Query(`SELECT run_id, mode, version, started_ns, ended_ns FROM runs ORDER BY started_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (db *DB) LatestRun() (Run, error) {
	row := db.QueryRow(`SELECT run_id, mode, version, started_ns, ended_ns FROM runs ORDER BY started_ns DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return r, err
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(id string) (Run, error) {
	row := db.QueryRow(`SELECT run_id, mode, version, started_ns, ended_ns FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found: %w", id, err)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r       Run
		started int64
		ended   sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Mode, &r.Version, &started, &ended); err != nil {
		return Run{}, err
	}
	r.Started = time.Unix(0, started).UTC()
	if ended.Valid {
		r.Ended = time.Unix(0, ended.Int64).UTC()
	}
	return r, nil
}

package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/rover/internal/httputil"
)

// AttachAdminRoutes mounts live SQL and the run views under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://telemetry.db", db.DB, &tailsql.DBOptions{
		Label: "Rover telemetry",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("run-chart", "Chart of a run (latest unless ?run=<id>)", http.HandlerFunc(db.handleRunChart))
	debug.Handle("run-summary", "Summary of a run as JSON (latest unless ?run=<id>)", http.HandlerFunc(db.handleRunSummary))
	return nil
}

// runFromRequest resolves the ?run= parameter, defaulting to the latest run.
func (db *DB) runFromRequest(r *http.Request) (Run, int, error) {
	var (
		run Run
		err error
	)
	if id := r.URL.Query().Get("run"); id != "" {
		run, err = db.GetRun(id)
	} else {
		run, err = db.LatestRun()
	}
	switch {
	case errors.Is(err, ErrNoRuns):
		return Run{}, http.StatusNotFound, err
	case err != nil && r.URL.Query().Get("run") != "":
		return Run{}, http.StatusNotFound, err
	case err != nil:
		return Run{}, http.StatusInternalServerError, err
	}
	return run, http.StatusOK, nil
}

func (db *DB) handleRunChart(w http.ResponseWriter, r *http.Request) {
	run, code, err := db.runFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	ticks, err := db.Ticks(run.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to load ticks: %v", err), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := WriteRunPage(&buf, run, ticks); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

type runSummaryResponse struct {
	Run     Run     `json:"run"`
	Summary Summary `json:"summary"`
}

func (db *DB) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	run, code, err := db.runFromRequest(r)
	if err != nil {
		httputil.WriteJSONError(w, code, err.Error())
		return
	}
	s, err := db.Summarize(run.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to summarize run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runSummaryResponse{Run: run, Summary: s})
}

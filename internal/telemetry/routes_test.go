package telemetry

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover/internal/testutil"
)

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	rr := testutil.Serve(mux, http.MethodGet, "/debug/run-chart")
	assert.Equal(t, http.StatusNotFound, rr.Code, "no runs yet")

	run, err := db.StartRun("grid", "test", t0)
	require.NoError(t, err)
	rec := NewRecorder(db, run.ID, 5)
	for i := 0; i < 5; i++ {
		rec.RecordTick(tickAt(i))
	}
	require.NoError(t, rec.Flush())

	rr = testutil.Serve(mux, http.MethodGet, "/debug/run-chart")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rr.Body.String(), "Wheel commands")
	assert.Contains(t, rr.Body.String(), run.ID)

	rr = testutil.Serve(mux, http.MethodGet, "/debug/run-summary?run="+run.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Run     Run     `json:"run"`
		Summary Summary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, run.ID, resp.Run.ID)
	assert.Equal(t, 5, resp.Summary.Ticks)

	rr = testutil.Serve(mux, http.MethodGet, "/debug/run-summary?run=nope")
	testutil.AssertStatusCode(t, rr.Code, http.StatusNotFound)
	assert.Contains(t, rr.Body.String(), `"error"`)
}

func TestWriteRunPage_ObstacleTrace(t *testing.T) {
	run := Run{ID: "r1", Mode: "obstacle", Started: t0}
	ticks := []Tick{{At: t0, Distance: 40, Echo: true}, {At: t0, Distance: 999}}
	var sb strings.Builder
	require.NoError(t, WriteRunPage(&sb, run, ticks))
	assert.Contains(t, sb.String(), "Sensor trace")
	assert.Contains(t, sb.String(), "distance")
}

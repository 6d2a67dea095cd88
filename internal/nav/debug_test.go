package nav

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/hw"
)

func TestSetLogWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	sig := &hw.RecordingSignals{}
	g := NewGridNavigator(config.EmptyRobotConfig(), fixedChooser(0), Signals{LEDs: sig})
	now := t0
	g.Tick(Inputs{Now: now, Line: centred})
	g.Tick(Inputs{Now: now.Add(10 * time.Millisecond), Line: [5]int{0, 0, 0, 0, 0}})

	if !strings.Contains(diag.String(), "[nav] SEARCHING -> FOLLOWING") {
		t.Errorf("diag stream missing transition: %q", diag.String())
	}
	if !strings.Contains(ops.String(), "Robot lifted") {
		t.Errorf("ops stream missing guard: %q", ops.String())
	}
	if got := strings.Count(trace.String(), "\n"); got != 1 {
		t.Errorf("trace lines = %d, want 1 (guarded ticks are not traced)", got)
	}
}

func TestSetLogWriters_NilDisables(t *testing.T) {
	SetLogWriters(nil, nil, nil)
	opsf("dropped %d", 1)
	diagf("dropped")
	tracef("dropped")
	if opsLogger != nil || diagLogger != nil || traceLogger != nil {
		t.Error("nil writers should disable every stream")
	}
}

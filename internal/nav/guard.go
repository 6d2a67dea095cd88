package nav

import (
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/sensing"
)

// liftedAlarm is the tone sounded when the robot is picked up.
const liftedAlarm = 2000

// guard evaluates the surface conditions ahead of the transition table.
// Signals and events fire only when the surface changes.
type guard struct {
	cfg     classify.SurfaceConfig
	surface classify.Surface
}

// check reports whether navigation must halt for this tick.
func (g *guard) check(now time.Time, line sensing.LineSnapshot, sig Signals, ev *eventLog) bool {
	s := classify.ClassifySurface(line, g.cfg)
	if s != g.surface {
		ev.add(now, EventGuard, s.String())
		switch s {
		case classify.SurfaceLifted:
			opsf("Robot lifted, halting")
			sig.fill(hw.Red)
			sig.alarm(now, liftedAlarm)
		case classify.SurfaceHome:
			diagf("Home pad reached, halting")
			sig.fill(hw.Green)
		default:
			diagf("Surface normal again")
		}
		g.surface = s
	}
	return s != classify.SurfaceNormal
}

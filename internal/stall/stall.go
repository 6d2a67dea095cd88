// Package stall detects a robot that sees the line but is not moving and
// produces escalating recovery manoeuvres.
//
// A stall is declared when the reflectance snapshot stays within Tolerance
// of a remembered snapshot for longer than Dwell. The remembered snapshot
// and the boost counter are reset only when the readings diverge, so
// repeated recoveries keep escalating until motion is actually observed.
package stall

import (
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/sensing"
)

// Config parameterises the detector.
type Config struct {
	Line      classify.LineConfig
	Tolerance int
	Dwell     time.Duration
	BoostCap  int
	BaseSpeed int
}

// ConfigFromRobot builds a Config from the robot configuration.
func ConfigFromRobot(c *config.RobotConfig) Config {
	return Config{
		Line:      classify.LineConfigFromRobot(c),
		Tolerance: c.GetStallTolerance(),
		Dwell:     c.GetStallDwell(),
		BoostCap:  c.GetBoostCap(),
		BaseSpeed: c.GetBaseSpeed(),
	}
}

// Memory is the saved snapshot, when it was saved and the boost counter.
type Memory struct {
	Snapshot sensing.LineSnapshot
	Since    time.Time
	Boost    int
}

// Action is the direction chosen by a recovery.
type Action int

const (
	ActionForward Action = iota
	ActionLeft
	ActionRight
)

func (a Action) String() string {
	switch a {
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	default:
		return "forward"
	}
}

// Recovery is one escalated manoeuvre.
type Recovery struct {
	Command motion.Command
	Action  Action
	Power   int
	// Left and Right are the weighted active-channel counts the decision
	// was based on.
	Left, Right int
}

// Detector owns the stall memory.
type Detector struct {
	cfg     Config
	planner *motion.Planner
	mem     *Memory
}

// NewDetector returns a Detector with no memory. The planner clamps the
// recovery commands.
func NewDetector(cfg Config, planner *motion.Planner) *Detector {
	return &Detector{cfg: cfg, planner: planner}
}

// Check updates the memory with s and reports whether the robot has been
// stalled on the line for longer than the dwell time.
func (d *Detector) Check(now time.Time, s sensing.LineSnapshot) bool {
	if !classify.ClassifyLine(s, d.cfg.Line).OnLine() {
		d.mem = nil
		return false
	}
	if d.mem == nil {
		d.mem = &Memory{Snapshot: s, Since: now}
		return false
	}
	for i := range s {
		if abs(s[i]-d.mem.Snapshot[i]) > d.cfg.Tolerance {
			d.mem.Snapshot = s
			d.mem.Since = now
			d.mem.Boost = 0
			return false
		}
	}
	return now.Sub(d.mem.Since) > d.cfg.Dwell
}

// Recover chooses a manoeuvre from the last on-line snapshot. The first
// recovery after a divergence runs at boost 0; each further call adds one,
// up to the cap.
func (d *Detector) Recover(last sensing.LineSnapshot) Recovery {
	power := 0
	if d.mem != nil {
		power = d.mem.Boost
		d.mem.Boost = min(d.mem.Boost+1, d.cfg.BoostCap)
	}
	power = min(power, d.cfg.BoostCap)

	p := classify.ClassifyLine(last, d.cfg.Line)
	r := Recovery{Power: power}
	if p.Active[0] {
		r.Left += 2
	}
	if p.Active[1] {
		r.Left++
	}
	if p.Active[3] {
		r.Right++
	}
	if p.Active[4] {
		r.Right += 2
	}

	base := d.cfg.BaseSpeed
	switch {
	case r.Left > r.Right:
		r.Action = ActionLeft
		r.Command = d.planner.Clamp(motion.Command{Left: base - 3 + power, Right: base + 3 + power})
	case r.Right > r.Left:
		r.Action = ActionRight
		r.Command = d.planner.Clamp(motion.Command{Left: base + 3 + power, Right: base - 3 + power})
	default:
		r.Action = ActionForward
		r.Command = d.planner.Forward(base + 2 + power)
	}
	return r
}

// Memory returns a copy of the current memory, if any.
func (d *Detector) Memory() (Memory, bool) {
	if d.mem == nil {
		return Memory{}, false
	}
	return *d.mem, true
}

// Reset forgets the memory.
func (d *Detector) Reset() { d.mem = nil }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

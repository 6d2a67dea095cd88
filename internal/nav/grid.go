package nav

import (
	"fmt"
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/scan"
	"github.com/banshee-data/rover/internal/sensing"
	"github.com/banshee-data/rover/internal/stall"
	"github.com/banshee-data/rover/internal/timeutil"
)

// GridConfig parameterises the line-following navigator.
type GridConfig struct {
	Line             classify.LineConfig
	Surface          classify.SurfaceConfig
	BaseSpeed        int
	TurnSpeed        int
	LostTolerance    time.Duration
	StraightDuration time.Duration
	TurnDuration     time.Duration
	RecoveryDuration time.Duration
	StraightWeight   int
	LeftWeight       int
	RightWeight      int
	FoundTone        int
	IntersectionTone int
}

// GridConfigFromRobot builds a GridConfig from the robot configuration.
func GridConfigFromRobot(c *config.RobotConfig) GridConfig {
	return GridConfig{
		Line:             classify.LineConfigFromRobot(c),
		Surface:          classify.SurfaceConfigFromRobot(c),
		BaseSpeed:        c.GetBaseSpeed(),
		TurnSpeed:        c.GetTurnSpeed(),
		LostTolerance:    c.GetLostTolerance(),
		StraightDuration: c.GetStraightDuration(),
		TurnDuration:     c.GetTurnDuration(),
		RecoveryDuration: c.GetRecoveryDuration(),
		StraightWeight:   c.GetStraightWeight(),
		LeftWeight:       c.GetLeftWeight(),
		RightWeight:      c.GetRightWeight(),
		FoundTone:        c.GetFoundTone(),
		IntersectionTone: c.GetIntersectionTone(),
	}
}

// Choice is the direction taken at an intersection.
type Choice int

const (
	ChoiceNone Choice = iota
	ChoiceStraight
	ChoiceLeft
	ChoiceRight
)

func (c Choice) String() string {
	switch c {
	case ChoiceStraight:
		return "STRAIGHT"
	case ChoiceLeft:
		return "LEFT"
	case ChoiceRight:
		return "RIGHT"
	default:
		return "NONE"
	}
}

// Chooser is the random source for intersection choices. *rand.Rand
// satisfies it.
type Chooser interface {
	Intn(n int) int
}

// GridNavigator follows a line on a grid, picks a weighted random direction
// at every intersection and sweeps for the line when it is lost.
type GridNavigator struct {
	cfg     GridConfig
	planner *motion.Planner
	stall   *stall.Detector
	sweep   *scan.Sweep
	chooser Chooser
	choices []Choice
	sig     Signals
	guard   guard
	events  eventLog

	state State
	since time.Time
	timer timeutil.Stopwatch
	lost  timeutil.Stopwatch

	// hold is the open-loop command of a timed state, run for holdFor
	// before moving to next.
	hold    motion.Command
	holdFor time.Duration
	next    State

	line     sensing.LineSnapshot
	pattern  classify.LinePattern
	position float64
	previous float64
	last     motion.Command
	choice   Choice
	boost    int
}

var _ Navigator = (*GridNavigator)(nil)

// NewGridNavigator returns a navigator in Searching.
func NewGridNavigator(c *config.RobotConfig, chooser Chooser, sig Signals) *GridNavigator {
	cfg := GridConfigFromRobot(c)
	planner := motion.NewPlanner(motion.ConfigFromRobot(c))
	g := &GridNavigator{
		cfg:     cfg,
		planner: planner,
		stall:   stall.NewDetector(stall.ConfigFromRobot(c), planner),
		sweep:   scan.NewSweep(scan.SweepConfigFromRobot(c), planner),
		chooser: chooser,
		sig:     sig,
		guard:   guard{cfg: cfg.Surface},
		state:   StateSearching,
	}
	for _, w := range []struct {
		c Choice
		n int
	}{{ChoiceStraight, cfg.StraightWeight}, {ChoiceLeft, cfg.LeftWeight}, {ChoiceRight, cfg.RightWeight}} {
		for i := 0; i < w.n; i++ {
			g.choices = append(g.choices, w.c)
		}
	}
	return g
}

// Tick runs one control step.
func (g *GridNavigator) Tick(in Inputs) motion.Command {
	now := in.Now
	if g.since.IsZero() {
		g.since = now
	}
	g.line = in.Line
	g.pattern = classify.ClassifyLine(in.Line, g.cfg.Line)
	if pos, ok := g.pattern.Position(); ok {
		g.position = pos
	}

	if g.guard.check(now, in.Line, g.sig, &g.events) {
		g.last = motion.Stop
		return g.last
	}

	var cmd motion.Command
	if (g.state == StateSearching || g.state == StateFollowing) && g.stall.Check(now, in.Line) {
		cmd = g.recover(now, in.Line)
	} else {
		switch g.state {
		case StateSearching:
			cmd = g.search(now)
		case StateFollowing:
			cmd = g.follow(now)
		case StateIntersection:
			cmd = g.intersection(now)
		case StateTurning, StateMovingForward:
			cmd = g.timed(now)
		default:
			cmd = motion.Stop
		}
	}
	tracef("%s line=%v pos=%.1f cmd=%s", g.state, in.Line, g.position, cmd)
	g.last = cmd
	return cmd
}

func (g *GridNavigator) enter(now time.Time, s State) {
	if s != g.state {
		diagf("%s -> %s", g.state, s)
		g.events.add(now, EventTransition, fmt.Sprintf("%s->%s", g.state, s))
	}
	g.state = s
	g.since = now
	g.timer.Start(now)
	g.lost.Stop()
}

func (g *GridNavigator) enterTimed(now time.Time, s State, hold motion.Command, d time.Duration, next State) motion.Command {
	g.enter(now, s)
	g.hold = hold
	g.holdFor = d
	g.next = next
	return hold
}

func (g *GridNavigator) search(now time.Time) motion.Command {
	if g.pattern.OnLine() && !g.pattern.Wide {
		diagf("Line found! position=%.1f", g.position)
		g.enter(now, StateFollowing)
		g.sig.beep(now, g.cfg.FoundTone)
		g.sig.fill(hw.Green)
		g.previous = g.position
		return g.planner.LineOffset(g.position, g.previous)
	}
	return g.sweep.Step(now)
}

func (g *GridNavigator) follow(now time.Time) motion.Command {
	if g.pattern.Wide {
		diagf("Intersection detected: %d channels active", g.pattern.Count)
		g.enter(now, StateIntersection)
		return motion.Stop
	}
	if !g.pattern.OnLine() {
		if !g.lost.Running() {
			diagf("Line lost, holding course")
			g.lost.Start(now)
		}
		if g.lost.Exceeded(now, g.cfg.LostTolerance) {
			g.toSearching(now)
			return motion.Stop
		}
		return g.planner.Forward(g.cfg.BaseSpeed)
	}
	g.lost.Stop()
	cmd := g.planner.LineOffset(g.position, g.previous)
	g.previous = g.position
	return cmd
}

func (g *GridNavigator) intersection(now time.Time) motion.Command {
	g.choice = g.choices[g.chooser.Intn(len(g.choices))]
	diagf("Intersection: going %s", g.choice)
	g.events.add(now, EventIntersection, g.choice.String())
	g.sig.fill(hw.Red)
	g.sig.beep(now, g.cfg.IntersectionTone)

	switch g.choice {
	case ChoiceLeft:
		return g.enterTimed(now, StateTurning, g.planner.Spin(sensing.SideLeft, g.cfg.TurnSpeed), g.cfg.TurnDuration, StateSearching)
	case ChoiceRight:
		return g.enterTimed(now, StateTurning, g.planner.Spin(sensing.SideRight, g.cfg.TurnSpeed), g.cfg.TurnDuration, StateSearching)
	default:
		return g.enterTimed(now, StateMovingForward, g.planner.Forward(g.cfg.BaseSpeed), g.cfg.StraightDuration, StateFollowing)
	}
}

func (g *GridNavigator) timed(now time.Time) motion.Command {
	if !g.timer.Exceeded(now, g.holdFor) {
		return g.hold
	}
	if g.next == StateSearching {
		g.toSearching(now)
		return motion.Stop
	}
	g.enter(now, g.next)
	g.previous = g.position
	g.sig.fill(hw.Blue)
	return motion.Stop
}

func (g *GridNavigator) toSearching(now time.Time) {
	g.enter(now, StateSearching)
	g.sweep.Reset()
	g.sig.fill(hw.Blue)
}

func (g *GridNavigator) recover(now time.Time, line sensing.LineSnapshot) motion.Command {
	r := g.stall.Recover(line)
	g.boost = r.Power
	diagf("Stuck! recovering %s with boost %d (L=%d R=%d)", r.Action, r.Power, r.Left, r.Right)
	g.events.add(now, EventStall, fmt.Sprintf("%s boost=%d", r.Action, r.Power))
	g.sig.fill(hw.Orange)
	return g.enterTimed(now, StateMovingForward, r.Command, g.cfg.RecoveryDuration, StateSearching)
}

// State returns the active state.
func (g *GridNavigator) State() State { return g.state }

// Choice returns the last intersection choice.
func (g *GridNavigator) Choice() Choice { return g.choice }

// Status returns a snapshot for display.
func (g *GridNavigator) Status() Status {
	s := Status{
		Mode:     config.ModeGrid,
		State:    g.state,
		Since:    g.since,
		Surface:  g.guard.surface,
		Command:  g.last,
		Line:     g.line,
		Position: g.position,
		OnLine:   g.pattern.OnLine(),
		Boost:    g.boost,
	}
	if g.choice != ChoiceNone {
		s.Choice = g.choice.String()
	}
	return s
}

// Drain returns the events recorded since the last call.
func (g *GridNavigator) Drain() []Event { return g.events.drain() }

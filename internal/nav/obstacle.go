package nav

import (
	"fmt"
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/follow"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/scan"
	"github.com/banshee-data/rover/internal/sensing"
	"github.com/banshee-data/rover/internal/timeutil"
)

// ObstacleConfig parameterises the object-following navigator.
type ObstacleConfig struct {
	Range         classify.RangeConfig
	NoEcho        float64
	Law           string
	LostTolerance time.Duration
	ScanCooldown  time.Duration
	StopCooldown  time.Duration
	LogInterval   time.Duration
	FoundTone     int
}

// ObstacleConfigFromRobot builds an ObstacleConfig from the robot configuration.
func ObstacleConfigFromRobot(c *config.RobotConfig) ObstacleConfig {
	return ObstacleConfig{
		Range:         classify.RangeConfigFromRobot(c),
		NoEcho:        c.GetNoEchoDistance(),
		Law:           c.GetObstacleLaw(),
		LostTolerance: c.GetLostTolerance(),
		ScanCooldown:  c.GetScanCooldown(),
		StopCooldown:  c.GetStopCooldown(),
		LogInterval:   c.GetFollowLogInterval(),
		FoundTone:     c.GetFoundTone(),
	}
}

// movementColors maps following behaviours to LED colors.
var movementColors = map[motion.Movement]hw.Color{
	motion.MoveStraight:             hw.Green,
	motion.MoveDriftLeft:            hw.Yellow,
	motion.MoveDriftRight:           hw.Yellow,
	motion.MoveReacquireLeftStrong:  hw.Orange,
	motion.MoveReacquireLeftGentle:  hw.Orange,
	motion.MoveReacquireRightStrong: hw.Orange,
	motion.MoveReacquireRightGentle: hw.Orange,
	motion.MoveWide:                 hw.Blue,
}

// ObstacleNavigator follows an object with the ranging sensor, using the
// two side sensors to curve after it, and scans for it when it is lost.
type ObstacleNavigator struct {
	cfg     ObstacleConfig
	planner *motion.Planner
	filter  *sensing.ProximityFilter
	lock    *follow.Context
	scanner *scan.Scanner
	sig     Signals
	events  eventLog

	state   State
	since   time.Time
	lost    timeutil.Stopwatch
	scanned bool
	// lastScan is when the last scan attempt ended, or when the target was
	// last acquired from Scanning.
	lastScan time.Time
	lastLog  time.Time

	now      time.Time
	distance float64
	left     sensing.Reading
	right    sensing.Reading
	movement motion.Movement
	moving   bool
	color    hw.Color
	last     motion.Command
}

var _ Navigator = (*ObstacleNavigator)(nil)

// NewObstacleNavigator returns a navigator in Scanning that starts its
// first scan on the first tick.
func NewObstacleNavigator(c *config.RobotConfig, sig Signals) *ObstacleNavigator {
	planner := motion.NewPlanner(motion.ConfigFromRobot(c))
	return &ObstacleNavigator{
		cfg:     ObstacleConfigFromRobot(c),
		planner: planner,
		filter:  sensing.NewProximityFilter(2, sensing.FilterConfigFromRobot(c)),
		lock:    follow.NewContext(follow.ConfigFromRobot(c)),
		scanner: scan.NewScanner(scan.ConfigFromRobot(c), planner),
		sig:     sig,
		state:   StateScanning,
	}
}

// Tick runs one control step.
func (o *ObstacleNavigator) Tick(in Inputs) motion.Command {
	now := in.Now
	if o.since.IsZero() {
		o.since = now
	}
	o.now = now
	o.distance = in.Distance
	o.filter.Update(now, in.Left, in.Right)
	o.left = o.filter.Side(sensing.SideLeft)
	o.right = o.filter.Side(sensing.SideRight)

	var cmd motion.Command
	switch o.state {
	case StateScanning:
		cmd = o.scan(now, in.Distance)
	case StateFollowing:
		cmd = o.follow(now, in.Distance)
	case StateStopped:
		if now.Sub(o.since) > o.cfg.StopCooldown {
			o.toScanning(now)
		}
		cmd = motion.Stop
	default:
		cmd = motion.Stop
	}
	tracef("%s d=%.1f L=%d%% R=%d%% cmd=%s", o.state, in.Distance, o.left.Confidence, o.right.Confidence, cmd)
	o.last = cmd
	return cmd
}

func (o *ObstacleNavigator) enter(now time.Time, s State) {
	if s != o.state {
		diagf("%s -> %s", o.state, s)
		o.events.add(now, EventTransition, fmt.Sprintf("%s->%s", o.state, s))
	}
	o.state = s
	o.since = now
	o.lost.Stop()
	o.moving = false
}

func (o *ObstacleNavigator) toScanning(now time.Time) {
	o.enter(now, StateScanning)
	o.lock.Clear()
	o.setColor(hw.Blue)
}

func (o *ObstacleNavigator) toFollowing(now time.Time, distance float64) {
	o.enter(now, StateFollowing)
	o.lock.RecordIfValid(now, distance)
	o.lastScan = now
	o.sig.beep(now, o.cfg.FoundTone)
}

func (o *ObstacleNavigator) scan(now time.Time, distance float64) motion.Command {
	if o.scanner.Status() == scan.StatusRunning {
		st, cmd := o.scanner.Step(now, distance)
		switch st {
		case scan.StatusFound:
			diagf("Target confirmed by scan at %.1fcm", distance)
			o.events.add(now, EventScan, "found")
			o.scanner.Abort()
			o.toFollowing(now, distance)
		case scan.StatusFailed:
			diagf("Scan complete, no target found")
			o.events.add(now, EventScan, "failed")
			o.scanner.Abort()
			o.lastScan = now
		}
		return cmd
	}

	if o.cfg.Range.InRange(distance) {
		diagf("Immediate target found at %.1fcm", distance)
		o.toFollowing(now, distance)
		return motion.Stop
	}
	if o.scanned && now.Sub(o.lastScan) <= o.cfg.ScanCooldown {
		return motion.Stop
	}

	o.scanned = true
	hints := []scan.Hint{{Side: sensing.SideLeft, Reading: o.left}, {Side: sensing.SideRight, Reading: o.right}}
	cmd := o.scanner.Start(now, hints...)
	diagf("Scanning %s (hinted=%t)", o.scanner.Direction(), o.scanner.Hinted())
	o.events.add(now, EventScan, "start "+o.scanner.Direction().String())
	o.setColor(hw.Blue)
	return cmd
}

func (o *ObstacleNavigator) follow(now time.Time, distance float64) motion.Command {
	cmd, mv := o.movementFor(now, distance)
	switch mv {
	case motion.MoveTooClose:
		diagf("Too close at %.1fcm, stopping", distance)
		o.enter(now, StateStopped)
		o.setColor(hw.Red)
		return motion.Stop
	case motion.MoveLost:
		if !o.lost.Running() {
			diagf("Target lost at %.1fcm", distance)
			o.lost.Start(now)
		}
		if o.lost.Exceeded(now, o.cfg.LostTolerance) {
			o.toScanning(now)
			return motion.Stop
		}
		return o.last
	}

	o.lost.Stop()
	o.movement = mv
	o.moving = true
	if c, ok := movementColors[mv]; ok {
		o.setColor(c)
	}
	if now.Sub(o.lastLog) >= o.cfg.LogInterval {
		o.lastLog = now
		diagf("Following: d=%.1fcm L=%t(%d%%) R=%t(%d%%) state=%s cmd=%s",
			distance, o.left.Triggered(), o.left.Confidence, o.right.Triggered(), o.right.Confidence, mv, cmd)
	}
	return cmd
}

// movementFor picks the following behaviour for one reading.
func (o *ObstacleNavigator) movementFor(now time.Time, distance float64) (motion.Command, motion.Movement) {
	zone := classify.ClassifyDistance(distance, o.cfg.Range)
	if zone == classify.ZoneTooClose {
		return motion.Stop, motion.MoveTooClose
	}
	if o.cfg.Law == config.ObstacleLawStandOff {
		if zone == classify.ZoneLost {
			return motion.Stop, motion.MoveLost
		}
		o.lock.RecordIfValid(now, distance)
		return o.planner.Forward(o.planner.StandOff(distance)), motion.MoveStraight
	}

	lt, rt := o.left.Triggered(), o.right.Triggered()
	if zone == classify.ZoneLost {
		switch {
		case lt && !rt:
			o.lock.SetSide(sensing.SideLeft)
			return o.planner.Reacquire(sensing.SideLeft, o.left.Confidence)
		case rt && !lt:
			o.lock.SetSide(sensing.SideRight)
			return o.planner.Reacquire(sensing.SideRight, o.right.Confidence)
		default:
			return motion.Stop, motion.MoveLost
		}
	}

	base := o.planner.CruiseSpeed(distance)
	switch {
	case lt && rt:
		return o.planner.Wide(base), motion.MoveWide
	case lt:
		if o.lock.ShouldDiscount(now, distance, sensing.SideLeft, o.left.Confidence) {
			diagf("Discounting left trigger (%d%%) at %.1fcm", o.left.Confidence, distance)
			return o.planner.Forward(base), motion.MoveStraight
		}
		o.lock.SetSide(sensing.SideLeft)
		return o.planner.Drift(base, sensing.SideLeft, o.left.Confidence), motion.MoveDriftLeft
	case rt:
		if o.lock.ShouldDiscount(now, distance, sensing.SideRight, o.right.Confidence) {
			diagf("Discounting right trigger (%d%%) at %.1fcm", o.right.Confidence, distance)
			return o.planner.Forward(base), motion.MoveStraight
		}
		o.lock.SetSide(sensing.SideRight)
		return o.planner.Drift(base, sensing.SideRight, o.right.Confidence), motion.MoveDriftRight
	default:
		o.lock.RecordIfValid(now, distance)
		return o.planner.Forward(base), motion.MoveStraight
	}
}

func (o *ObstacleNavigator) setColor(c hw.Color) {
	if c == o.color {
		return
	}
	o.color = c
	o.sig.fill(c)
}

// State returns the active state.
func (o *ObstacleNavigator) State() State { return o.state }

// Lock exposes the following context for inspection.
func (o *ObstacleNavigator) Lock() *follow.Context { return o.lock }

// Status returns a snapshot for display.
func (o *ObstacleNavigator) Status() Status {
	s := Status{
		Mode:     config.ModeObstacle,
		State:    o.state,
		Since:    o.since,
		Command:  o.last,
		Distance: o.distance,
		NoEcho:   o.distance >= o.cfg.NoEcho,
		Left:     o.left,
		Right:    o.right,
	}
	if o.moving {
		s.Movement = o.movement.String()
	}
	if o.state == StateScanning && o.scanner.Status() != scan.StatusRunning && o.scanned {
		if wait := o.cfg.ScanCooldown - o.now.Sub(o.lastScan); wait > 0 {
			s.NextScan = wait
		}
	}
	return s
}

// Drain returns the events recorded since the last call.
func (o *ObstacleNavigator) Drain() []Event { return o.events.drain() }

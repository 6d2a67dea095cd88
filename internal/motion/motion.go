// Package motion maps line offsets and ranging errors to differential wheel
// speeds. Every output is clamped after all additive terms are applied.
package motion

import (
	"fmt"
	"math"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/sensing"
)

// Command is a differential wheel speed pair in driver units.
type Command struct {
	Left  int
	Right int
}

// Stop is the zero command.
var Stop = Command{}

func (c Command) String() string { return fmt.Sprintf("L%d/R%d", c.Left, c.Right) }

// IsStop reports whether both wheels are at zero.
func (c Command) IsStop() bool { return c == Stop }

// Movement names the behaviour that produced a following command.
type Movement int

const (
	MoveStraight Movement = iota
	MoveDriftLeft
	MoveDriftRight
	MoveWide
	MoveReacquireLeftStrong
	MoveReacquireLeftGentle
	MoveReacquireRightStrong
	MoveReacquireRightGentle
	MoveTooClose
	MoveLost
)

var movementNames = [...]string{
	MoveStraight:             "STRAIGHT",
	MoveDriftLeft:            "DRIFT_LEFT",
	MoveDriftRight:           "DRIFT_RIGHT",
	MoveWide:                 "WIDE_OBJECT",
	MoveReacquireLeftStrong:  "REACQUIRE_LEFT_STRONG",
	MoveReacquireLeftGentle:  "REACQUIRE_LEFT_GENTLE",
	MoveReacquireRightStrong: "REACQUIRE_RIGHT_STRONG",
	MoveReacquireRightGentle: "REACQUIRE_RIGHT_GENTLE",
	MoveTooClose:             "TOO_CLOSE",
	MoveLost:                 "LOST",
}

func (m Movement) String() string {
	if m < 0 || int(m) >= len(movementNames) {
		return "UNKNOWN"
	}
	return movementNames[m]
}

// IsDrift reports whether m is one of the drift corrections.
func (m Movement) IsDrift() bool { return m == MoveDriftLeft || m == MoveDriftRight }

// IsReacquire reports whether m is one of the reacquire turns.
func (m Movement) IsReacquire() bool { return m >= MoveReacquireLeftStrong && m <= MoveReacquireRightGentle }

// LineLaw parameterises the line-offset law.
type LineLaw struct {
	BaseSpeed      int
	Gain           float64
	DerivativeGain float64
	DeadBand       float64
	MinTurn        float64
	TurnSlowdown   int
	MinSpeed       int
	MaxSpeed       int
}

// StandOffLaw parameterises ranging-based following.
type StandOffLaw struct {
	Target           float64
	DeadBand         float64
	Nominal          int
	ForwardGain      float64
	ReverseGain      float64
	ForwardCap       int
	ReverseCap       int
	CloseGain        float64
	FarGain          float64
	MinCruise        int
	MaxCruise        int
	DriftBase        float64
	DriftGain        float64
	WideFactor       float64
	StrongConfidence int
}

// Config holds both laws plus the driver's symmetric speed limit.
type Config struct {
	Line     LineLaw
	StandOff StandOffLaw
	Limit    int
}

// ConfigFromRobot builds a Config from the robot configuration.
func ConfigFromRobot(c *config.RobotConfig) Config {
	return Config{
		Line: LineLaw{
			BaseSpeed:      c.GetBaseSpeed(),
			Gain:           c.GetLineGain(),
			DerivativeGain: c.GetLineDerivativeGain(),
			DeadBand:       c.GetLineDeadBand(),
			MinTurn:        c.GetMinTurn(),
			TurnSlowdown:   c.GetTurnSlowdown(),
			MinSpeed:       0,
			MaxSpeed:       c.GetLineMaxSpeed(),
		},
		StandOff: StandOffLaw{
			Target:           c.GetFollowDistance(),
			DeadBand:         c.GetStandOffDeadBand(),
			Nominal:          c.GetNominalSpeed(),
			ForwardGain:      c.GetForwardGain(),
			ReverseGain:      c.GetReverseGain(),
			ForwardCap:       c.GetForwardCap(),
			ReverseCap:       c.GetReverseCap(),
			CloseGain:        c.GetCloseGain(),
			FarGain:          c.GetFarGain(),
			MinCruise:        c.GetMinCruise(),
			MaxCruise:        c.GetMaxCruise(),
			DriftBase:        c.GetDriftBase(),
			DriftGain:        c.GetDriftGain(),
			WideFactor:       c.GetWideFactor(),
			StrongConfidence: c.GetStrongConfidence(),
		},
		Limit: c.GetMotorLimit(),
	}
}

// Planner computes wheel commands. It holds no per-tick state; the previous
// line error for the derivative term is supplied by the caller.
type Planner struct {
	cfg Config
}

// NewPlanner returns a Planner for cfg.
func NewPlanner(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Config returns the planner configuration.
func (p *Planner) Config() Config { return p.cfg }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Clamp limits both wheels to the driver range.
func (p *Planner) Clamp(c Command) Command {
	return Command{
		Left:  clampInt(c.Left, -p.cfg.Limit, p.cfg.Limit),
		Right: clampInt(c.Right, -p.cfg.Limit, p.cfg.Limit),
	}
}

// LineOffset steers towards the line. position is the current offset
// (positive: line to the right) and previous the offset on the last tick.
func (p *Planner) LineOffset(position, previous float64) Command {
	law := p.cfg.Line
	lo, hi := float64(law.MinSpeed), float64(law.MaxSpeed)

	if math.Abs(position) < law.DeadBand {
		base := int(clampFloat(float64(law.BaseSpeed), lo, hi))
		return p.Clamp(Command{Left: base, Right: base})
	}

	turn := position*law.Gain + (position-previous)*law.DerivativeGain
	if math.Abs(turn) < law.MinTurn {
		turn = math.Copysign(law.MinTurn, position)
	}
	base := float64(law.BaseSpeed - law.TurnSlowdown)
	left := clampFloat(base+turn, lo, hi)
	right := clampFloat(base-turn, lo, hi)
	return p.Clamp(Command{Left: int(left), Right: int(right)})
}

// StandOff returns the straight-line speed that holds the target distance.
// Reversing is capped lower than driving forward.
func (p *Planner) StandOff(distance float64) int {
	law := p.cfg.StandOff
	err := distance - law.Target
	var speed int
	switch {
	case math.Abs(err) < law.DeadBand:
		speed = law.Nominal
	case err > 0:
		speed = law.Nominal + int(err*law.ForwardGain)
		speed = min(speed, law.ForwardCap)
	default:
		speed = law.Nominal + int(err*law.ReverseGain)
		speed = max(speed, law.ReverseCap)
	}
	return clampInt(speed, -p.cfg.Limit, p.cfg.Limit)
}

// CruiseSpeed is the base speed of the curved follower: slower when closer
// than the target distance, faster when further, never reversing.
func (p *Planner) CruiseSpeed(distance float64) int {
	law := p.cfg.StandOff
	var speed int
	if distance < law.Target {
		speed = law.Nominal - int((law.Target-distance)*law.CloseGain)
	} else {
		speed = law.Nominal + int((distance-law.Target)*law.FarGain)
	}
	return clampInt(speed, law.MinCruise, law.MaxCruise)
}

// Forward drives both wheels at speed.
func (p *Planner) Forward(speed int) Command {
	return p.Clamp(Command{Left: speed, Right: speed})
}

// Spin rotates in place towards side.
func (p *Planner) Spin(side sensing.Side, speed int) Command {
	if side == sensing.SideLeft {
		return p.Clamp(Command{Left: -speed, Right: speed})
	}
	return p.Clamp(Command{Left: speed, Right: -speed})
}

// Drift slows only the wheel on the drift side, by more as the side
// confidence grows, producing a curve rather than a pivot.
func (p *Planner) Drift(base int, side sensing.Side, confidence int) Command {
	law := p.cfg.StandOff
	cut := int(law.DriftBase + float64(confidence)*law.DriftGain)
	c := Command{Left: base, Right: base}
	switch side {
	case sensing.SideLeft:
		c.Left -= cut
	case sensing.SideRight:
		c.Right -= cut
	}
	return p.Clamp(c)
}

// Wide slows down for an object that covers both side sensors.
func (p *Planner) Wide(base int) Command {
	return p.Forward(int(float64(base) * p.cfg.StandOff.WideFactor))
}

// Reacquire turns towards side after the ranging sensor lost the target.
func (p *Planner) Reacquire(side sensing.Side, confidence int) (Command, Movement) {
	strong := confidence > p.cfg.StandOff.StrongConfidence
	switch {
	case side == sensing.SideLeft && strong:
		return p.Clamp(Command{Left: 5, Right: 20}), MoveReacquireLeftStrong
	case side == sensing.SideLeft:
		return p.Clamp(Command{Left: 10, Right: 20}), MoveReacquireLeftGentle
	case strong:
		return p.Clamp(Command{Left: 20, Right: 5}), MoveReacquireRightStrong
	default:
		return p.Clamp(Command{Left: 20, Right: 10}), MoveReacquireRightGentle
	}
}

package scan

import (
	"time"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/sensing"
)

// SweepConfig parameterises the line search.
type SweepConfig struct {
	Creep     int
	Bias      int
	Base      time.Duration
	Step      time.Duration
	Max       time.Duration
	FlipEvery int
}

// SweepConfigFromRobot builds a SweepConfig from the robot configuration.
// The turn bias is half the in-place turning speed.
func SweepConfigFromRobot(c *config.RobotConfig) SweepConfig {
	return SweepConfig{
		Creep:     c.GetSearchCreep(),
		Bias:      c.GetTurnSpeed() / 2,
		Base:      c.GetSweepBase(),
		Step:      c.GetSweepStep(),
		Max:       c.GetSweepMax(),
		FlipEvery: c.GetSweepFlipEvery(),
	}
}

// Sweep creeps forward while alternating its turn bias, holding each motion
// a little longer every ten motions, and flips its main direction every
// FlipEvery motions.
type Sweep struct {
	cfg     SweepConfig
	planner *motion.Planner
	main    sensing.Side
	count   int
	started bool
	since   time.Time
	current motion.Command
}

// NewSweep returns a Sweep whose main direction is right.
func NewSweep(cfg SweepConfig, planner *motion.Planner) *Sweep {
	return &Sweep{cfg: cfg, planner: planner, main: sensing.SideRight}
}

// Reset restarts the motion sequence. The main direction is kept.
func (s *Sweep) Reset() {
	s.count = 0
	s.started = false
}

// Duration returns how long the current motion is held.
func (s *Sweep) Duration() time.Duration {
	d := s.cfg.Base + time.Duration(s.count/10)*s.cfg.Step
	return min(d, s.cfg.Max)
}

// Step returns the command for now, advancing to the next motion when the
// current one has run its course.
func (s *Sweep) Step(now time.Time) motion.Command {
	if !s.started {
		s.started = true
		s.begin(now)
		return s.current
	}
	if now.Sub(s.since) > s.Duration() {
		s.count++
		if s.count%s.cfg.FlipEvery == 0 {
			s.main = s.main.Opposite()
		}
		s.begin(now)
	}
	return s.current
}

func (s *Sweep) begin(now time.Time) {
	side := s.main
	if s.count%2 == 1 {
		side = side.Opposite()
	}
	c := motion.Command{Left: s.cfg.Creep - s.cfg.Bias, Right: s.cfg.Creep + s.cfg.Bias}
	if side == sensing.SideRight {
		c = motion.Command{Left: s.cfg.Creep + s.cfg.Bias, Right: s.cfg.Creep - s.cfg.Bias}
	}
	s.current = s.planner.Clamp(c)
	s.since = now
}

// Count returns the number of completed motions.
func (s *Sweep) Count() int { return s.count }

// Main returns the current main direction.
func (s *Sweep) Main() sensing.Side { return s.main }

// Package scan implements the two search behaviours: the rotating Scanner
// that looks for an object with the ranging sensor, and the Sweep that
// zig-zags forward looking for a line.
//
// Both are tick driven. They never block; the caller feeds one reading per
// tick and applies the returned command.
package scan

import (
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/sensing"
)

// Config parameterises the Scanner.
type Config struct {
	Range            classify.RangeConfig
	Speed            int
	MinSpeed         int
	Quorum           int
	HintConfidence   int
	ReverseAfter     time.Duration
	Timeout          time.Duration
	DefaultDirection sensing.Side
}

// ConfigFromRobot builds a Config from the robot configuration.
func ConfigFromRobot(c *config.RobotConfig) Config {
	return Config{
		Range:            classify.RangeConfigFromRobot(c),
		Speed:            c.GetScanSpeed(),
		MinSpeed:         c.GetMinScanSpeed(),
		Quorum:           c.GetScanQuorum(),
		HintConfidence:   c.GetHintConfidence(),
		ReverseAfter:     c.GetScanReverseAfter(),
		Timeout:          c.GetScanTimeout(),
		DefaultDirection: sensing.SideRight,
	}
}

// Status is the outcome of a scan step.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFound:
		return "found"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Hint is a side signal that may steer the initial scan direction.
type Hint struct {
	Side    sensing.Side
	Reading sensing.Reading
}

// Scanner rotates in place until Quorum consecutive in-range readings are
// seen. It reverses once at ReverseAfter and then slows down linearly to
// MinSpeed, and gives up at Timeout.
type Scanner struct {
	cfg      Config
	planner  *motion.Planner
	status   Status
	start    time.Time
	dir      sensing.Side
	hinted   bool
	reversed bool
	hits     int
	speed    int
}

// NewScanner returns an idle Scanner.
func NewScanner(cfg Config, planner *motion.Planner) *Scanner {
	return &Scanner{cfg: cfg, planner: planner}
}

// Start begins a scan at now. The direction follows the strongest hint whose
// debounced flag is set with confidence above HintConfidence, otherwise the
// default direction. It returns the first rotation command.
func (s *Scanner) Start(now time.Time, hints ...Hint) motion.Command {
	s.status = StatusRunning
	s.start = now
	s.dir = s.cfg.DefaultDirection
	s.hinted = false
	s.reversed = false
	s.hits = 0
	s.speed = s.cfg.Speed

	best := -1
	for _, h := range hints {
		if h.Side == sensing.SideNone || !h.Reading.Filtered {
			continue
		}
		if h.Reading.Confidence > s.cfg.HintConfidence && h.Reading.Confidence > best {
			best = h.Reading.Confidence
			s.dir = h.Side
			s.hinted = true
		}
	}
	return s.planner.Spin(s.dir, s.speed)
}

// Step feeds one ranging reading taken at now.
func (s *Scanner) Step(now time.Time, distance float64) (Status, motion.Command) {
	if s.status != StatusRunning {
		return s.status, motion.Stop
	}

	elapsed := now.Sub(s.start)
	if s.cfg.Range.InRange(distance) {
		s.hits++
		if s.hits >= s.cfg.Quorum {
			s.status = StatusFound
			return s.status, motion.Stop
		}
	} else {
		s.hits = 0
	}

	if elapsed >= s.cfg.Timeout {
		s.status = StatusFailed
		return s.status, motion.Stop
	}

	if elapsed >= s.cfg.ReverseAfter {
		if !s.reversed {
			s.reversed = true
			s.dir = s.dir.Opposite()
		}
		span := s.cfg.Timeout - s.cfg.ReverseAfter
		frac := float64(elapsed-s.cfg.ReverseAfter) / float64(span)
		s.speed = s.cfg.Speed - int(frac*float64(s.cfg.Speed-s.cfg.MinSpeed))
		s.speed = max(s.speed, s.cfg.MinSpeed)
	}
	return s.status, s.planner.Spin(s.dir, s.speed)
}

// Abort stops a running scan without reporting failure.
func (s *Scanner) Abort() { s.status = StatusIdle }

// Status returns the current status.
func (s *Scanner) Status() Status { return s.status }

// Direction returns the current rotation direction.
func (s *Scanner) Direction() sensing.Side { return s.dir }

// Hinted reports whether the current scan direction came from a hint.
func (s *Scanner) Hinted() bool { return s.hinted }

// Reversed reports whether the secondary rotation has begun.
func (s *Scanner) Reversed() bool { return s.reversed }

// Speed returns the current rotation speed.
func (s *Scanner) Speed() int { return s.speed }

// Hits returns the current run of consecutive in-range readings.
func (s *Scanner) Hits() int { return s.hits }

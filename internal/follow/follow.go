// Package follow implements the anti-distraction lock used while following
// an object: a short-term memory of the last trustworthy ranging reading
// that lets the navigator discount sudden, low-confidence side triggers.
package follow

import (
	"math"
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/sensing"
)

// Config parameterises the lock.
type Config struct {
	Range               classify.RangeConfig
	Horizon             time.Duration
	MaxDelta            float64
	ConfidenceThreshold int
}

// ConfigFromRobot builds a Config from the robot configuration.
func ConfigFromRobot(c *config.RobotConfig) Config {
	return Config{
		Range:               classify.RangeConfigFromRobot(c),
		Horizon:             c.GetLockHorizon(),
		MaxDelta:            c.GetLockMaxDelta(),
		ConfidenceThreshold: c.GetDiscountConfidence(),
	}
}

// Lock is the last in-range ranging reading and when it was taken.
type Lock struct {
	Distance float64
	At       time.Time
}

// Context owns the lock and the side currently being followed.
type Context struct {
	cfg    Config
	lock   Lock
	locked bool
	side   sensing.Side
}

// NewContext returns a Context with no lock.
func NewContext(cfg Config) *Context {
	return &Context{cfg: cfg}
}

// RecordIfValid refreshes the lock when distance is inside the operating
// window and reports whether it did.
func (c *Context) RecordIfValid(now time.Time, distance float64) bool {
	if !c.cfg.Range.InRange(distance) {
		return false
	}
	c.lock = Lock{Distance: distance, At: now}
	c.locked = true
	return true
}

// ShouldDiscount reports whether a side trigger should be ignored: a fresh
// lock exists, the ranging reading has barely moved since, and the side
// signal is weak.
func (c *Context) ShouldDiscount(now time.Time, distance float64, side sensing.Side, confidence int) bool {
	if !c.locked || side == sensing.SideNone {
		return false
	}
	if now.Sub(c.lock.At) >= c.cfg.Horizon {
		return false
	}
	return math.Abs(distance-c.lock.Distance) < c.cfg.MaxDelta &&
		confidence < c.cfg.ConfidenceThreshold
}

// Lock returns the current lock, if any.
func (c *Context) Lock() (Lock, bool) { return c.lock, c.locked }

// SetSide records which side the target is drifting towards.
func (c *Context) SetSide(s sensing.Side) { c.side = s }

// Side returns the side last recorded by SetSide.
func (c *Context) Side() sensing.Side { return c.side }

// Clear forgets the followed side. The lock itself ages out on its own.
func (c *Context) Clear() { c.side = sensing.SideNone }

// Reset drops the lock and the side.
func (c *Context) Reset() {
	c.lock = Lock{}
	c.locked = false
	c.side = sensing.SideNone
}

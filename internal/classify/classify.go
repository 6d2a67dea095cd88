// Package classify turns raw sensor snapshots into semantic patterns: a line
// position on the reflectance array, a distance zone for the ranging sensor,
// and the surface guard conditions evaluated before navigation.
package classify

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/sensing"
)

// LineConfig holds the reflectance thresholds.
type LineConfig struct {
	// Threshold is the intensity below which a channel sees the line.
	Threshold int
	// WideCount is the active-channel count from which a pattern is wide.
	WideCount int
}

// LineConfigFromRobot builds a LineConfig from the robot configuration.
func LineConfigFromRobot(c *config.RobotConfig) LineConfig {
	return LineConfig{
		Threshold: c.GetLineThreshold(),
		WideCount: c.GetIntersectionMinCount(),
	}
}

// LinePattern is the classification of one reflectance snapshot.
type LinePattern struct {
	Active [sensing.LineChannels]bool
	Count  int
	Wide   bool
}

// ClassifyLine marks each channel darker than the threshold as active.
func ClassifyLine(s sensing.LineSnapshot, cfg LineConfig) LinePattern {
	var p LinePattern
	for i, v := range s {
		if v < cfg.Threshold {
			p.Active[i] = true
			p.Count++
		}
	}
	p.Wide = p.Count >= cfg.WideCount
	return p
}

// Position returns the line offset in -2..+2, zero being centred and
// positive meaning the line is to the right. The second result is false
// when no channel is active; callers must then fall back to their last
// known position.
func (p LinePattern) Position() (float64, bool) {
	if p.Count == 0 {
		return 0, false
	}
	idx := make([]float64, 0, p.Count)
	for i, active := range p.Active {
		if active {
			idx = append(idx, float64(i))
		}
	}
	return stat.Mean(idx, nil) - float64(sensing.LineChannels/2), true
}

// OnLine reports whether any channel sees the line.
func (p LinePattern) OnLine() bool { return p.Count > 0 }

// RangeConfig holds the ranging operating window in centimetres.
type RangeConfig struct {
	Min float64
	Max float64
}

// RangeConfigFromRobot builds a RangeConfig from the robot configuration.
func RangeConfigFromRobot(c *config.RobotConfig) RangeConfig {
	return RangeConfig{Min: c.GetMinDistance(), Max: c.GetMaxDistance()}
}

// Zone buckets a ranging distance.
type Zone int

const (
	ZoneLost Zone = iota
	ZoneInRange
	ZoneTooClose
)

func (z Zone) String() string {
	switch z {
	case ZoneInRange:
		return "in-range"
	case ZoneTooClose:
		return "too-close"
	default:
		return "lost"
	}
}

// ClassifyDistance buckets d against the window; both bounds are in range.
func ClassifyDistance(d float64, cfg RangeConfig) Zone {
	switch {
	case d < cfg.Min:
		return ZoneTooClose
	case d <= cfg.Max:
		return ZoneInRange
	default:
		return ZoneLost
	}
}

// InRange is shorthand for ClassifyDistance(d, cfg) == ZoneInRange.
func (cfg RangeConfig) InRange(d float64) bool {
	return ClassifyDistance(d, cfg) == ZoneInRange
}

// SurfaceConfig holds the reflectance bounds of the guard conditions.
type SurfaceConfig struct {
	HomeMax     int
	HomeMinPeak int
	LiftedMax   int
}

// SurfaceConfigFromRobot builds a SurfaceConfig from the robot configuration.
func SurfaceConfigFromRobot(c *config.RobotConfig) SurfaceConfig {
	return SurfaceConfig{
		HomeMax:     c.GetHomeMax(),
		HomeMinPeak: c.GetHomeMinPeak(),
		LiftedMax:   c.GetLiftedMax(),
	}
}

// Surface is the guard classification of the reflectance array.
type Surface int

const (
	SurfaceNormal Surface = iota
	// SurfaceHome is the dark rest pad: every channel low but not zero.
	SurfaceHome
	// SurfaceLifted means every channel reads near zero, i.e. the robot
	// has been picked up.
	SurfaceLifted
)

func (s Surface) String() string {
	switch s {
	case SurfaceHome:
		return "home"
	case SurfaceLifted:
		return "lifted"
	default:
		return "normal"
	}
}

// ClassifySurface evaluates the home condition first, then lifted.
func ClassifySurface(s sensing.LineSnapshot, cfg SurfaceConfig) Surface {
	allBelowHome, anyAbovePeak, allBelowLifted := true, false, true
	for _, v := range s {
		if v >= cfg.HomeMax {
			allBelowHome = false
		}
		if v > cfg.HomeMinPeak {
			anyAbovePeak = true
		}
		if v >= cfg.LiftedMax {
			allBelowLifted = false
		}
	}
	switch {
	case allBelowHome && anyAbovePeak:
		return SurfaceHome
	case allBelowLifted:
		return SurfaceLifted
	default:
		return SurfaceNormal
	}
}

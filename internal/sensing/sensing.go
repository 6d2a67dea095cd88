// Package sensing holds the raw sensor snapshot types and the temporal
// filter that debounces the binary proximity sensors.
package sensing

import (
	"fmt"
	"time"

	"github.com/banshee-data/rover/internal/config"
)

// LineChannels is the number of reflectance channels on the line array.
const LineChannels = 5

// LineSnapshot is one reading of the reflectance array, left to right.
// Lower values mean a darker surface.
type LineSnapshot [LineChannels]int

// ObstacleSnapshot is one reading of the obstacle sensors: the averaged
// ranging distance in centimetres (the no-echo sentinel when nothing
// answered) and the raw, already de-inverted proximity flags.
type ObstacleSnapshot struct {
	Distance float64
	Left     bool
	Right    bool
}

// Side names a side of the robot.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// Opposite returns the other side; SideNone stays SideNone.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideNone
	}
}

// Proximity filter channel indices.
const (
	ChannelLeft  = 0
	ChannelRight = 1
)

// FilterConfig parameterises a ProximityFilter.
type FilterConfig struct {
	Window         int
	Quorum         int
	SampleInterval time.Duration
}

// DefaultFilterConfig returns the 3-of-5 debounce sampled every 20ms.
func DefaultFilterConfig() FilterConfig {
	return FilterConfigFromRobot(config.EmptyRobotConfig())
}

// FilterConfigFromRobot builds a FilterConfig from the robot configuration.
func FilterConfigFromRobot(c *config.RobotConfig) FilterConfig {
	return FilterConfig{
		Window:         c.GetFilterWindow(),
		Quorum:         c.GetFilterQuorum(),
		SampleInterval: c.GetSampleInterval(),
	}
}

// ProximityFilter keeps a sliding window of raw samples per channel and
// reports a quorum-debounced flag and a 0..100 confidence for each.
// It is owned by the control loop and is not safe for concurrent use.
type ProximityFilter struct {
	cfg      FilterConfig
	history  [][]bool
	next     int
	latest   []bool
	last     time.Time
	accepted bool
}

// NewProximityFilter returns a filter for the given number of channels with
// an all-inactive history.
func NewProximityFilter(channels int, cfg FilterConfig) *ProximityFilter {
	if channels <= 0 {
		panic(fmt.Sprintf("sensing: invalid channel count %d", channels))
	}
	if cfg.Window <= 0 {
		cfg.Window = 1
	}
	f := &ProximityFilter{
		cfg:     cfg,
		history: make([][]bool, channels),
		latest:  make([]bool, channels),
	}
	for i := range f.history {
		f.history[i] = make([]bool, cfg.Window)
	}
	return f
}

// Update ingests one raw sample per channel. Calls arriving sooner than the
// sample interval after the last accepted sample are ignored; the first call
// is always accepted. Missing channels count as inactive, extras are dropped.
// It reports whether the sample was accepted.
func (f *ProximityFilter) Update(now time.Time, raw ...bool) bool {
	if f.accepted && now.Sub(f.last) < f.cfg.SampleInterval {
		return false
	}
	for ch := range f.history {
		active := ch < len(raw) && raw[ch]
		f.history[ch][f.next] = active
		f.latest[ch] = active
	}
	f.next = (f.next + 1) % f.cfg.Window
	f.last = now
	f.accepted = true
	return true
}

func (f *ProximityFilter) count(ch int) int {
	n := 0
	for _, active := range f.history[ch] {
		if active {
			n++
		}
	}
	return n
}

// Filtered reports whether at least Quorum of the last Window samples on the
// channel were active.
func (f *ProximityFilter) Filtered(ch int) bool {
	return f.count(ch) >= f.cfg.Quorum
}

// Confidence returns the share of active samples in the window as 0..100.
func (f *ProximityFilter) Confidence(ch int) int {
	return f.count(ch) * 100 / f.cfg.Window
}

// Latest returns the most recently accepted raw sample for the channel.
func (f *ProximityFilter) Latest(ch int) bool {
	return f.latest[ch]
}

// Channels returns the number of channels the filter tracks.
func (f *ProximityFilter) Channels() int { return len(f.history) }

// Reading is the per-side view of a two-channel filter used by the
// obstacle navigator.
type Reading struct {
	Filtered   bool
	Sudden     bool
	Confidence int
}

// Triggered reports whether the side shows either a debounced detection or
// a fresh raw trigger.
func (r Reading) Triggered() bool { return r.Filtered || r.Sudden }

// Side returns the Reading for one side of a two-channel filter.
func (f *ProximityFilter) Side(s Side) Reading {
	ch := ChannelLeft
	if s == SideRight {
		ch = ChannelRight
	}
	return Reading{
		Filtered:   f.Filtered(ch),
		Sudden:     f.Latest(ch),
		Confidence: f.Confidence(ch),
	}
}

// Package nav holds the two navigation state machines. Each tick a navigator
// receives one set of sensor inputs and returns one motor command; it never
// blocks and never touches the motors itself. LED and tone signals are
// fired through Signals and their failures are only logged.
package nav

import (
	"time"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/sensing"
)

// State is the navigation state. Exactly one is active at a time.
type State int

const (
	StateSearching State = iota
	StateFollowing
	StateIntersection
	StateTurning
	StateMovingForward
	StateStopped
	StateScanning
)

var stateNames = [...]string{
	StateSearching:     "SEARCHING",
	StateFollowing:     "FOLLOWING",
	StateIntersection:  "INTERSECTION",
	StateTurning:       "TURNING",
	StateMovingForward: "MOVING_FORWARD",
	StateStopped:       "STOPPED",
	StateScanning:      "SCANNING",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Timed reports whether the state ends purely on elapsed time.
func (s State) Timed() bool { return s == StateTurning || s == StateMovingForward }

// Inputs is one tick's worth of sensor readings.
type Inputs struct {
	Now      time.Time
	Line     sensing.LineSnapshot
	Distance float64
	Left     bool
	Right    bool
}

// Navigator is the per-tick decision core shared by both modes.
type Navigator interface {
	Tick(in Inputs) motion.Command
	State() State
	Status() Status
	// Drain returns and forgets the events recorded since the last call.
	Drain() []Event
}

// Status is a snapshot of the navigator for the display and the debug page.
type Status struct {
	Mode     string
	State    State
	Since    time.Time
	Surface  classify.Surface
	Command  motion.Command
	Line     sensing.LineSnapshot
	Position float64
	OnLine   bool
	Choice   string
	Boost    int
	Distance float64
	NoEcho   bool
	Movement string
	Left     sensing.Reading
	Right    sensing.Reading
	// NextScan is the remaining scan cooldown, zero when a scan may start.
	NextScan time.Duration
}

// Event kinds recorded by the navigators.
const (
	EventTransition   = "transition"
	EventStall        = "stall"
	EventIntersection = "intersection"
	EventScan         = "scan"
	EventGuard        = "guard"
)

// Event is a notable decision, kept for telemetry.
type Event struct {
	At     time.Time
	Kind   string
	Detail string
}

type eventLog struct {
	events []Event
}

func (l *eventLog) add(at time.Time, kind, detail string) {
	l.events = append(l.events, Event{At: at, Kind: kind, Detail: detail})
}

func (l *eventLog) drain() []Event {
	out := l.events
	l.events = nil
	return out
}

// Signals are the fire-and-forget outputs. Either field may be nil.
type Signals struct {
	LEDs   hw.LEDStrip
	Beeper *hw.Beeper
}

func (s Signals) fill(c hw.Color) {
	if s.LEDs == nil {
		return
	}
	if err := s.LEDs.Fill(c); err != nil {
		opsf("led fill failed: %v", err)
	}
}

func (s Signals) beep(now time.Time, freq int) {
	if s.Beeper != nil {
		s.Beeper.Beep(now, freq)
	}
}

func (s Signals) alarm(now time.Time, freq int) {
	if s.Beeper != nil {
		s.Beeper.Alarm(now, freq)
	}
}

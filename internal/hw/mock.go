package hw

import (
	"context"
	"sync"

	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/sensing"
)

// RecordingMotors is a MotorDriver that records every command.
type RecordingMotors struct {
	mu       sync.Mutex
	Commands []motion.Command
	Err      error
}

func (m *RecordingMotors) SetDifferential(left, right int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = append(m.Commands, motion.Command{Left: left, Right: right})
	return m.Err
}

func (m *RecordingMotors) Forward(speed int) error  { return m.SetDifferential(speed, speed) }
func (m *RecordingMotors) Backward(speed int) error { return m.SetDifferential(-speed, -speed) }
func (m *RecordingMotors) Stop() error              { return m.SetDifferential(0, 0) }

// Last returns the most recent command, or Stop when none was sent.
func (m *RecordingMotors) Last() motion.Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return motion.Stop
	}
	return m.Commands[len(m.Commands)-1]
}

// StaticSensors serves fixed readings that tests change between ticks.
type StaticSensors struct {
	mu          sync.Mutex
	Line        sensing.LineSnapshot
	Distance    float64
	Left, Right bool
}

func (s *StaticSensors) Set(line sensing.LineSnapshot, distance float64, left, right bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Line, s.Distance, s.Left, s.Right = line, distance, left, right
}

func (s *StaticSensors) Read() sensing.LineSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Line
}

func (s *StaticSensors) Measure(ctx context.Context) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Distance
}

// Proximity returns the side sensors.
func (s *StaticSensors) Proximity() ProximitySensors { return staticProximity{s} }

type staticProximity struct{ s *StaticSensors }

func (p staticProximity) Read() (left, right bool) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.Left, p.s.Right
}

// ToneCall records one Tone or Off call; Off is recorded as frequency 0.
type ToneCall struct {
	Freq, Duty int
}

// RecordingSignals records LED, tone and display output.
type RecordingSignals struct {
	mu     sync.Mutex
	Colors []Color
	Tones  []ToneCall
	Lines  []string
	Shows  int
}

func (r *RecordingSignals) Fill(c Color) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Colors = append(r.Colors, c)
	return nil
}

func (r *RecordingSignals) Tone(freq, duty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tones = append(r.Tones, ToneCall{freq, duty})
	return nil
}

func (r *RecordingSignals) Off() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tones = append(r.Tones, ToneCall{})
	return nil
}

func (r *RecordingSignals) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = nil
	return nil
}

func (r *RecordingSignals) Text(x, y int, c Color, s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, s)
	return nil
}

func (r *RecordingSignals) Show() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Shows++
	return nil
}

// LastColor returns the most recent LED color, or Off.
func (r *RecordingSignals) LastColor() Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Colors) == 0 {
		return Off
	}
	return r.Colors[len(r.Colors)-1]
}

// ToneFreqs returns the frequencies of the recorded tones, Off included.
func (r *RecordingSignals) ToneFreqs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.Tones))
	for i, t := range r.Tones {
		out[i] = t.Freq
	}
	return out
}

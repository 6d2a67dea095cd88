// Package hw defines the narrow interfaces the navigation core uses to reach
// the robot's actuators and sensors, and implements all of them over the I/O
// board's serial line protocol.
package hw

import (
	"context"

	"github.com/banshee-data/rover/internal/sensing"
)

// MotorDriver drives the two wheels. Speeds are percentages in [-100, 100].
type MotorDriver interface {
	SetDifferential(left, right int) error
	Forward(speed int) error
	Backward(speed int) error
	Stop() error
}

// ReflectanceArray reads the five downward-facing line sensors.
type ReflectanceArray interface {
	Read() sensing.LineSnapshot
}

// RangingSensor measures the distance to the nearest object in centimetres.
// It never fails: a missing echo yields the no-echo sentinel.
type RangingSensor interface {
	Measure(ctx context.Context) float64
}

// ProximitySensors reads the two side infrared sensors. True means an
// obstacle is present.
type ProximitySensors interface {
	Read() (left, right bool)
}

// Display is the status screen.
type Display interface {
	Clear() error
	Text(x, y int, c Color, s string) error
	Show() error
}

// LEDStrip sets every LED to one color.
type LEDStrip interface {
	Fill(c Color) error
}

// ToneGenerator drives the buzzer.
type ToneGenerator interface {
	Tone(freq, duty int) error
	Off() error
}

// Color is an 8-bit RGB color.
type Color struct {
	R, G, B uint8
}

var (
	Off    = Color{}
	Red    = Color{255, 0, 0}
	Green  = Color{0, 255, 0}
	Blue   = Color{0, 0, 255}
	Yellow = Color{255, 255, 0}
	Orange = Color{255, 128, 0}
	White  = Color{255, 255, 255}
)

// RGB565 packs the color into the display's 16-bit format.
func (c Color) RGB565() uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

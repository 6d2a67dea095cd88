package hw

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/rover/internal/sensing"
	"github.com/banshee-data/rover/internal/serialmux"
)

// Inbound records are comma separated with a one-letter tag:
//
//	R,v0,v1,v2,v3,v4   reflectance, left to right
//	E,micros           echo duration; negative when nothing came back
//	P,left,right       raw infrared levels, 0 when an obstacle is present

func fields(line, tag string, n int) ([]string, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != n+1 || parts[0] != tag {
		return nil, fmt.Errorf("malformed %s record %q", tag, line)
	}
	return parts[1:], nil
}

// ParseReflectance parses an R record.
func ParseReflectance(line string) (sensing.LineSnapshot, error) {
	var s sensing.LineSnapshot
	parts, err := fields(line, "R", sensing.LineChannels)
	if err != nil {
		return s, err
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return s, fmt.Errorf("reflectance channel %d: %w", i, err)
		}
		s[i] = v
	}
	return s, nil
}

// ParseEcho parses an E record into microseconds.
func ParseEcho(line string) (float64, error) {
	parts, err := fields(line, "E", 1)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("echo duration: %w", err)
	}
	return v, nil
}

// ParseProximity parses a P record. The sensors are active-low; the result
// is true where an obstacle is present.
func ParseProximity(line string) (left, right bool, err error) {
	parts, err := fields(line, "P", 2)
	if err != nil {
		return false, false, err
	}
	var levels [2]int
	for i, p := range parts {
		levels[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return false, false, fmt.Errorf("proximity channel %d: %w", i, err)
		}
	}
	return levels[0] == 0, levels[1] == 0, nil
}

// Outbound commands.

func motorCommand(left, right int) string { return fmt.Sprintf("M,%d,%d", left, right) }

func toneCommand(freq, duty int) string { return fmt.Sprintf("T,%d,%d", freq, duty) }

func ledCommand(c Color) string { return fmt.Sprintf("L,%d,%d,%d", c.R, c.G, c.B) }

func textCommand(x, y int, c Color, s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
	return fmt.Sprintf("D,T,%d,%d,%d,%s", x, y, c.RGB565(), s)
}

func sampleRateCommand(ms int) string { return fmt.Sprintf("I,%d", ms) }

const (
	rangingCommand      = "U"
	displayClearCommand = "D,C"
	displayShowCommand  = "D,S"
)

// Record is one parsed inbound line.
type Record struct {
	Kind        string
	Reflectance sensing.LineSnapshot
	Echo        float64
	Left, Right bool
}

// ParseRecord classifies and parses one line from the board. Info and
// unknown lines are returned with only Kind set.
func ParseRecord(line string) (Record, error) {
	r := Record{Kind: serialmux.ClassifyPayload(line)}
	var err error
	switch r.Kind {
	case serialmux.EventTypeReflectance:
		r.Reflectance, err = ParseReflectance(line)
	case serialmux.EventTypeEcho:
		r.Echo, err = ParseEcho(line)
	case serialmux.EventTypeProximity:
		r.Left, r.Right, err = ParseProximity(line)
	}
	return r, err
}

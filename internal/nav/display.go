package nav

import (
	"fmt"
	"strings"

	"github.com/banshee-data/rover/internal/classify"
	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/units"
)

// Display layout in pixels.
const (
	pageLeft   = 10
	pageTop    = 10
	lineHeight = 15
)

// PageLine is one line of the status page.
type PageLine struct {
	Color hw.Color
	Text  string
}

// Page lays out the status page for s with distances in unit.
func Page(s Status, unit string) []PageLine {
	title := "Line Follower"
	if s.Mode == config.ModeObstacle {
		title = "Obstacle Follower"
	}
	lines := []PageLine{
		{hw.White, title},
		{stateColor(s.State), "State: " + s.State.String()},
	}

	switch s.Surface {
	case classify.SurfaceLifted:
		return append(lines, PageLine{hw.Red, "LIFTED!"})
	case classify.SurfaceHome:
		return append(lines, PageLine{hw.Green, "HOME"})
	}

	if s.Mode == config.ModeObstacle {
		return append(lines, obstaclePage(s, unit)...)
	}
	return append(lines, gridPage(s)...)
}

func gridPage(s Status) []PageLine {
	vals := make([]string, len(s.Line))
	for i, v := range s.Line {
		vals[i] = fmt.Sprint(v)
	}
	lines := []PageLine{
		{hw.White, "Sensors:"},
		{hw.White, strings.Join(vals, " ")},
	}
	if s.OnLine {
		lines = append(lines, PageLine{hw.Blue, fmt.Sprintf("Pos: %.1f", s.Position)})
	} else {
		lines = append(lines, PageLine{hw.Blue, "Pos: --"})
	}
	if s.Choice != "" {
		lines = append(lines, PageLine{hw.Yellow, "Last turn: " + s.Choice})
	}
	if s.Boost > 0 {
		lines = append(lines, PageLine{hw.Orange, fmt.Sprintf("Boost: %d", s.Boost)})
	}
	return lines
}

func obstaclePage(s Status, unit string) []PageLine {
	var lines []PageLine
	if s.NoEcho {
		lines = append(lines, PageLine{hw.Red, "Distance: No Target"})
	} else {
		lines = append(lines, PageLine{hw.White, fmt.Sprintf("Distance: %.1f %s", units.ConvertDistance(s.Distance, unit), unitLabel(unit))})
	}
	if s.Movement != "" {
		lines = append(lines, PageLine{hw.Green, "Move: " + s.Movement})
	}
	lines = append(lines, PageLine{hw.Blue, fmt.Sprintf("IR L:%d%% R:%d%%", s.Left.Confidence, s.Right.Confidence)})
	if s.NextScan > 0 {
		lines = append(lines, PageLine{hw.White, fmt.Sprintf("Next scan in %.1fs", s.NextScan.Seconds())})
	}
	return lines
}

func unitLabel(unit string) string {
	if !units.IsValid(unit) {
		return units.CM
	}
	return unit
}

func stateColor(s State) hw.Color {
	switch s {
	case StateFollowing:
		return hw.Green
	case StateSearching, StateScanning:
		return hw.Yellow
	default:
		return hw.Red
	}
}

// Render draws the status page on d.
func Render(d hw.Display, s Status, unit string) error {
	if err := d.Clear(); err != nil {
		return fmt.Errorf("clear display: %w", err)
	}
	for i, l := range Page(s, unit) {
		if err := d.Text(pageLeft, pageTop+i*lineHeight, l.Color, l.Text); err != nil {
			return fmt.Errorf("draw line %d: %w", i, err)
		}
	}
	if err := d.Show(); err != nil {
		return fmt.Errorf("show display: %w", err)
	}
	return nil
}

package telemetry

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rover/internal/config"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// missing is how echarts marks a gap in a series.
const missing = "-"

// RunPage builds an HTML page with the run's wheel commands and its sensor
// trace: line position in grid mode, ranging distance in obstacle mode.
func RunPage(run Run, ticks []Tick) *components.Page {
	x := make([]string, len(ticks))
	left := make([]opts.LineData, len(ticks))
	right := make([]opts.LineData, len(ticks))
	sensor := make([]opts.LineData, len(ticks))
	for i, t := range ticks {
		x[i] = fmt.Sprintf("%.2f", t.At.Sub(run.Started).Seconds())
		left[i] = opts.LineData{Value: t.Left}
		right[i] = opts.LineData{Value: t.Right}
		switch {
		case run.Mode == config.ModeObstacle && t.Echo:
			sensor[i] = opts.LineData{Value: t.Distance}
		case run.Mode != config.ModeObstacle && t.OnLine:
			sensor[i] = opts.LineData{Value: t.Position}
		default:
			sensor[i] = opts.LineData{Value: missing}
		}
	}

	subtitle := fmt.Sprintf("run=%s mode=%s ticks=%d", run.ID, run.Mode, len(ticks))
	cmds := newLineChart("Wheel commands", subtitle, "speed (%)")
	cmds.SetXAxis(x).
		AddSeries("left", left).
		AddSeries("right", right)

	name, unit := "position", "offset"
	if run.Mode == config.ModeObstacle {
		name, unit = "distance", "cm"
	}
	trace := newLineChart("Sensor trace", subtitle, unit)
	trace.SetXAxis(x).
		AddSeries(name, sensor)

	page := components.NewPage()
	page.PageTitle = "Rover run " + run.ID
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(cmds, trace)
	return page
}

func newLineChart(title, subtitle, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	return line
}

// WriteRunPage renders RunPage as HTML to w.
func WriteRunPage(w io.Writer, run Run, ticks []Tick) error {
	return RunPage(run, ticks).Render(w)
}

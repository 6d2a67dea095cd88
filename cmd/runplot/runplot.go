// Command runplot renders a recorded run from the telemetry database, either
// as PNG plots or as an interactive HTML page, and prints its summary.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/fsutil"
	"github.com/banshee-data/rover/internal/security"
	"github.com/banshee-data/rover/internal/telemetry"
)

var (
	dbFile = flag.String("db", "rover.db", "Telemetry database path")
	runID  = flag.String("run", "", "Run id (defaults to the latest run)")
	outDir = flag.String("out", ".", "Output directory")
	html   = flag.Bool("html", false, "Write an HTML page instead of PNG plots")
)

var (
	leftColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rightColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// seconds returns the tick times relative to the first tick.
func seconds(ticks []telemetry.Tick) []float64 {
	xs := make([]float64, len(ticks))
	for i, t := range ticks {
		xs[i] = t.At.Sub(ticks[0].At).Seconds()
	}
	return xs
}

func commandPlot(run telemetry.Run, ticks []telemetry.Tick) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - Wheel commands", run.ID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Speed"

	xs := seconds(ticks)
	left := make(plotter.XYs, len(ticks))
	right := make(plotter.XYs, len(ticks))
	for i, t := range ticks {
		left[i] = plotter.XY{X: xs[i], Y: float64(t.Left)}
		right[i] = plotter.XY{X: xs[i], Y: float64(t.Right)}
	}

	for _, s := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{{"left", left, leftColor}, {"right", right, rightColor}} {
		l, err := plotter.NewLine(s.pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.name, err)
		}
		l.Width = vg.Points(1)
		l.Color = s.c
		p.Add(l)
		p.Legend.Add(s.name, l)
	}
	p.Legend.Top = true
	return p, nil
}

// tracePlot plots the line position in grid runs and the target distance in
// obstacle runs. Ticks without a valid value are skipped.
func tracePlot(run telemetry.Run, ticks []telemetry.Tick) (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = "Time (s)"

	xs := seconds(ticks)
	pts := make(plotter.XYs, 0, len(ticks))
	if run.Mode == config.ModeObstacle {
		p.Title.Text = fmt.Sprintf("Run %s - Target distance", run.ID)
		p.Y.Label.Text = "Distance (cm)"
		for i, t := range ticks {
			if t.Echo {
				pts = append(pts, plotter.XY{X: xs[i], Y: t.Distance})
			}
		}
	} else {
		p.Title.Text = fmt.Sprintf("Run %s - Line position", run.ID)
		p.Y.Label.Text = "Position"
		for i, t := range ticks {
			if t.OnLine {
				pts = append(pts, plotter.XY{X: xs[i], Y: t.Position})
			}
		}
	}
	if len(pts) == 0 {
		return p, nil
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("trace scatter: %w", err)
	}
	s.GlyphStyle.Radius = vg.Points(1)
	p.Add(s)
	return p, nil
}

// baseName is the file name stem for run outputs.
func baseName(run telemetry.Run) string {
	return "run_" + security.SanitizeFilename(run.ID)
}

func savePNG(fsys fsutil.FileSystem, p *plot.Plot, path string) error {
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writePlots saves both plots under dir and returns their paths.
func writePlots(fsys fsutil.FileSystem, dir string, run telemetry.Run, ticks []telemetry.Tick) ([]string, error) {
	cmd, err := commandPlot(run, ticks)
	if err != nil {
		return nil, err
	}
	trace, err := tracePlot(run, ticks)
	if err != nil {
		return nil, err
	}

	cmdFile := filepath.Join(dir, baseName(run)+"_commands.png")
	if err := savePNG(fsys, cmd, cmdFile); err != nil {
		return nil, fmt.Errorf("save command plot: %w", err)
	}
	traceFile := filepath.Join(dir, baseName(run)+"_trace.png")
	if err := savePNG(fsys, trace, traceFile); err != nil {
		return nil, fmt.Errorf("save trace plot: %w", err)
	}
	return []string{cmdFile, traceFile}, nil
}

func writeHTML(fsys fsutil.FileSystem, dir string, run telemetry.Run, ticks []telemetry.Tick) (string, error) {
	path := filepath.Join(dir, baseName(run)+".html")
	f, err := fsys.Create(path)
	if err != nil {
		return "", err
	}
	if err := telemetry.WriteRunPage(f, run, ticks); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func main() {
	flag.Parse()

	if err := security.ValidateOutputPath(*outDir); err != nil {
		log.Fatalf("Invalid -out: %v", err)
	}
	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	db, err := telemetry.OpenDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open telemetry database: %v", err)
	}
	defer db.Close()

	var run telemetry.Run
	if *runID == "" {
		run, err = db.LatestRun()
	} else {
		run, err = db.GetRun(*runID)
	}
	if err != nil {
		log.Fatalf("Failed to find run: %v", err)
	}

	ticks, err := db.Ticks(run.ID)
	if err != nil {
		log.Fatalf("Failed to load ticks: %v", err)
	}
	if len(ticks) == 0 {
		log.Fatalf("Run %s has no ticks", run.ID)
	}

	if *html {
		path, err := writeHTML(fsys, *outDir, run, ticks)
		if err != nil {
			log.Fatalf("Failed to write page: %v", err)
		}
		log.Printf("Wrote %s", path)
	} else {
		paths, err := writePlots(fsys, *outDir, run, ticks)
		if err != nil {
			log.Fatalf("Failed to write plots: %v", err)
		}
		for _, p := range paths {
			log.Printf("Wrote %s", p)
		}
	}

	summary, err := db.Summarize(run.ID)
	if err != nil {
		log.Fatalf("Failed to summarize run: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("Failed to print summary: %v", err)
	}
}

// Package rover runs the control loop: it reads the sensors, asks the
// navigator for a command, drives the motors and keeps the display, the
// tone scheduler and the telemetry recorder up to date.
package rover

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/monitoring"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/nav"
	"github.com/banshee-data/rover/internal/telemetry"
	"github.com/banshee-data/rover/internal/timeutil"
)

// Config parameterises the loop.
type Config struct {
	Mode         string
	Tick         time.Duration
	DisplayEvery int
	Units        string
	NoEcho       float64
}

// ConfigFromRobot builds a Config for mode from the robot configuration.
func ConfigFromRobot(c *config.RobotConfig, mode string) Config {
	tick := c.GetGridTick()
	if mode == config.ModeObstacle {
		tick = c.GetObstacleTick()
	}
	return Config{
		Mode:         mode,
		Tick:         tick,
		DisplayEvery: c.GetDisplayEvery(),
		Units:        c.GetDisplayUnits(),
		NoEcho:       c.GetNoEchoDistance(),
	}
}

// Sensors groups the inputs. Ranging and Proximity are only read in
// obstacle mode.
type Sensors struct {
	Line      hw.ReflectanceArray
	Ranging   hw.RangingSensor
	Proximity hw.ProximitySensors
}

// Options are the collaborators of a Runner. Display, LEDs, Beeper and
// Recorder may be nil.
type Options struct {
	Config    Config
	Navigator nav.Navigator
	Motors    hw.MotorDriver
	Sensors   Sensors
	Display   hw.Display
	LEDs      hw.LEDStrip
	Beeper    *hw.Beeper
	Recorder  *telemetry.Recorder
	Clock     timeutil.Clock
}

// Runner owns the control goroutine.
type Runner struct {
	cfg     Config
	nav     nav.Navigator
	motors  hw.MotorDriver
	sensors Sensors
	display hw.Display
	leds    hw.LEDStrip
	beeper  *hw.Beeper
	rec     *telemetry.Recorder
	clock   timeutil.Clock

	ticks     atomic.Uint64
	motorErrs int
	status    atomic.Pointer[nav.Status]
}

// NewRunner validates the options and returns a Runner.
func NewRunner(o Options) (*Runner, error) {
	if o.Navigator == nil {
		return nil, fmt.Errorf("runner: navigator is required")
	}
	if o.Motors == nil {
		return nil, fmt.Errorf("runner: motor driver is required")
	}
	if o.Sensors.Line == nil {
		return nil, fmt.Errorf("runner: reflectance array is required")
	}
	if o.Config.Mode == config.ModeObstacle && (o.Sensors.Ranging == nil || o.Sensors.Proximity == nil) {
		return nil, fmt.Errorf("runner: obstacle mode needs ranging and proximity sensors")
	}
	if o.Config.Tick <= 0 {
		return nil, fmt.Errorf("runner: tick must be positive, got %v", o.Config.Tick)
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	r := &Runner{
		cfg:     o.Config,
		nav:     o.Navigator,
		motors:  o.Motors,
		sensors: o.Sensors,
		display: o.Display,
		leds:    o.LEDs,
		beeper:  o.Beeper,
		rec:     o.Recorder,
		clock:   o.Clock,
	}
	s := o.Navigator.Status()
	r.status.Store(&s)
	return r, nil
}

// Run ticks until ctx is cancelled, then brings the robot to a safe stop.
// A panic inside a tick stops the motors before it propagates.
func (r *Runner) Run(ctx context.Context) error {
	defer func() {
		if p := recover(); p != nil {
			monitoring.Logf("control loop panic, stopping motors: %v", p)
			r.shutdown()
			panic(p)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		default:
		}
		r.Step(ctx)
		r.clock.Sleep(r.cfg.Tick)
	}
}

// Step runs one tick and returns the command sent to the motors.
func (r *Runner) Step(ctx context.Context) motion.Command {
	in := r.sense(ctx)
	cmd := r.nav.Tick(in)
	r.drive(cmd)
	if r.beeper != nil {
		r.beeper.Update(in.Now)
	}

	s := r.nav.Status()
	r.status.Store(&s)
	if r.display != nil && r.cfg.DisplayEvery > 0 && r.ticks.Load()%uint64(r.cfg.DisplayEvery) == 0 {
		if err := nav.Render(r.display, s, r.cfg.Units); err != nil {
			monitoring.Logf("display refresh failed: %v", err)
		}
	}
	r.record(in, cmd, s)
	r.ticks.Add(1)
	return cmd
}

func (r *Runner) sense(ctx context.Context) nav.Inputs {
	in := nav.Inputs{
		Now:      r.clock.Now(),
		Line:     r.sensors.Line.Read(),
		Distance: r.cfg.NoEcho,
	}
	if r.cfg.Mode == config.ModeObstacle {
		in.Distance = r.sensors.Ranging.Measure(ctx)
		in.Left, in.Right = r.sensors.Proximity.Read()
	}
	return in
}

func (r *Runner) drive(cmd motion.Command) {
	if err := r.motors.SetDifferential(cmd.Left, cmd.Right); err != nil {
		r.motorErrs++
		if r.motorErrs == 1 || r.motorErrs%100 == 0 {
			monitoring.Logf("motor command %s failed (%d so far): %v", cmd, r.motorErrs, err)
		}
		return
	}
	r.motorErrs = 0
}

func (r *Runner) record(in nav.Inputs, cmd motion.Command, s nav.Status) {
	events := r.nav.Drain()
	if r.rec == nil {
		return
	}
	for _, e := range events {
		r.rec.RecordEvent(telemetry.Event{At: e.At, Kind: e.Kind, Detail: e.Detail})
	}
	t := telemetry.Tick{
		At:    in.Now,
		State: s.State.String(),
		Left:  cmd.Left,
		Right: cmd.Right,
		Line:  in.Line,
	}
	if r.cfg.Mode == config.ModeObstacle {
		t.Distance, t.Echo = in.Distance, in.Distance < r.cfg.NoEcho
	} else {
		t.Position, t.OnLine = s.Position, s.OnLine
	}
	r.rec.RecordTick(t)
}

// shutdown zeroes the motors, silences the buzzer, blanks the LEDs and
// flushes telemetry. Every step runs even if an earlier one fails.
func (r *Runner) shutdown() {
	if err := r.motors.Stop(); err != nil {
		monitoring.Logf("stop failed, retrying: %v", err)
		if err := r.motors.Stop(); err != nil {
			monitoring.Logf("stop failed again: %v", err)
		}
	}
	if r.beeper != nil {
		r.beeper.Silence()
	}
	if r.leds != nil {
		if err := r.leds.Fill(hw.Off); err != nil {
			monitoring.Logf("led blank failed: %v", err)
		}
	}
	if r.display != nil {
		if err := r.display.Clear(); err == nil {
			_ = r.display.Text(10, 10, hw.White, "Stopped")
			_ = r.display.Show()
		}
	}
	if r.rec != nil {
		if err := r.rec.Close(r.clock.Now()); err != nil {
			monitoring.Logf("telemetry close failed: %v", err)
		}
	}
}

// Ticks returns the number of completed ticks.
func (r *Runner) Ticks() uint64 { return r.ticks.Load() }

// Status returns the navigator status after the latest tick. Safe to call
// from any goroutine.
func (r *Runner) Status() nav.Status { return *r.status.Load() }

package hw

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/monitoring"
	"github.com/banshee-data/rover/internal/sensing"
	"github.com/banshee-data/rover/internal/serialmux"
	"github.com/banshee-data/rover/internal/timeutil"
	"github.com/banshee-data/rover/internal/units"
)

// Link is the part of a serial mux the board needs.
type Link interface {
	Subscribe() (string, chan string)
	Unsubscribe(string)
	SendCommand(string) error
}

// BoardConfig parameterises the board driver.
type BoardConfig struct {
	EchoTimeout    time.Duration
	Pulses         int
	NoEcho         float64
	SampleInterval time.Duration
	MotorLimit     int
}

// BoardConfigFromRobot builds a BoardConfig from the robot configuration.
func BoardConfigFromRobot(c *config.RobotConfig) BoardConfig {
	return BoardConfig{
		EchoTimeout:    c.GetEchoTimeout(),
		Pulses:         c.GetRangingPulses(),
		NoEcho:         c.GetNoEchoDistance(),
		SampleInterval: c.GetSampleInterval(),
		MotorLimit:     c.GetMotorLimit(),
	}
}

// Board implements every collaborator interface over the I/O board line
// protocol. Listen keeps the latest sensor values in atomic latches; the
// control loop reads them without blocking, except for Measure which waits
// for the echo of its own trigger.
type Board struct {
	link Link
	cfg  BoardConfig

	line      atomic.Pointer[sensing.LineSnapshot]
	proximity atomic.Uint32
	echo      *EchoLatch

	// measureMu keeps ranging pulses from interleaving.
	measureMu sync.Mutex

	unknown atomic.Uint64
}

var (
	_ MotorDriver      = (*Board)(nil)
	_ ReflectanceArray = (*Board)(nil)
	_ RangingSensor    = (*Board)(nil)
	_ Display          = (*Board)(nil)
	_ LEDStrip         = (*Board)(nil)
	_ ToneGenerator    = (*Board)(nil)
)

// NewBoard returns a board driver over link. Until the first reflectance
// record arrives Read returns an all-zero snapshot. clock times the echo
// waits; nil uses the real clock.
func NewBoard(link Link, cfg BoardConfig, clock timeutil.Clock) *Board {
	b := &Board{link: link, cfg: cfg, echo: NewEchoLatch(clock, cfg.EchoTimeout)}
	b.line.Store(&sensing.LineSnapshot{})
	return b
}

// Configure sets the board's sensor streaming rate.
func (b *Board) Configure() error {
	return b.link.SendCommand(sampleRateCommand(int(b.cfg.SampleInterval / time.Millisecond)))
}

// Listen consumes board lines until ctx is done or the link closes the
// subscription.
func (b *Board) Listen(ctx context.Context) error {
	id, ch := b.link.Subscribe()
	defer b.link.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-ch:
			if !ok {
				return nil
			}
			b.HandleLine(line)
		}
	}
}

// HandleLine parses one board line and updates the latches.
func (b *Board) HandleLine(line string) {
	rec, err := ParseRecord(line)
	if err != nil {
		monitoring.Logf("board: %v", err)
		return
	}
	switch rec.Kind {
	case serialmux.EventTypeReflectance:
		s := rec.Reflectance
		b.line.Store(&s)
	case serialmux.EventTypeEcho:
		b.echo.Publish(rec.Echo)
	case serialmux.EventTypeProximity:
		var bits uint32
		if rec.Left {
			bits |= 1
		}
		if rec.Right {
			bits |= 2
		}
		b.proximity.Store(bits)
	case serialmux.EventTypeInfo:
		monitoring.Logf("board: %s", line)
	default:
		if b.unknown.Add(1) == 1 {
			monitoring.Logf("board: ignoring unrecognised line %q", line)
		}
	}
}

// Read returns the latest reflectance snapshot.
func (b *Board) Read() sensing.LineSnapshot { return *b.line.Load() }

// Proximity returns the board's side infrared sensors.
func (b *Board) Proximity() ProximitySensors { return boardProximity{b} }

type boardProximity struct{ b *Board }

func (p boardProximity) Read() (left, right bool) {
	bits := p.b.proximity.Load()
	return bits&1 != 0, bits&2 != 0
}

// Measure fires Pulses ranging pulses and returns the mean distance in
// centimetres. A pulse with no echo within EchoTimeout, or a negative echo,
// counts as the no-echo sentinel. Cancelling ctx returns the sentinel.
func (b *Board) Measure(ctx context.Context) float64 {
	b.measureMu.Lock()
	defer b.measureMu.Unlock()

	pulses := max(b.cfg.Pulses, 1)
	var sum float64
	for i := 0; i < pulses; i++ {
		id := b.echo.Arm()
		if err := b.link.SendCommand(rangingCommand); err != nil {
			b.echo.Disarm(id)
			monitoring.Logf("board: ranging trigger failed: %v", err)
			return b.cfg.NoEcho
		}
		micros, ok := b.echo.Wait(ctx, id, b.cfg.EchoTimeout)
		if ctx.Err() != nil {
			return b.cfg.NoEcho
		}
		if !ok || micros < 0 {
			sum += b.cfg.NoEcho
			continue
		}
		sum += units.EchoToCentimetres(micros)
	}
	return sum / float64(pulses)
}

func (b *Board) clampSpeed(v int) int {
	return max(-b.cfg.MotorLimit, min(b.cfg.MotorLimit, v))
}

// SetDifferential drives the wheels at the given speeds. Each call is sent;
// repeated identical commands are not suppressed.
func (b *Board) SetDifferential(left, right int) error {
	return b.link.SendCommand(motorCommand(b.clampSpeed(left), b.clampSpeed(right)))
}

func (b *Board) Forward(speed int) error  { return b.SetDifferential(speed, speed) }
func (b *Board) Backward(speed int) error { return b.SetDifferential(-speed, -speed) }
func (b *Board) Stop() error              { return b.SetDifferential(0, 0) }

func (b *Board) Clear() error { return b.link.SendCommand(displayClearCommand) }

func (b *Board) Text(x, y int, c Color, s string) error {
	return b.link.SendCommand(textCommand(x, y, c, s))
}

func (b *Board) Show() error { return b.link.SendCommand(displayShowCommand) }

func (b *Board) Fill(c Color) error { return b.link.SendCommand(ledCommand(c)) }

func (b *Board) Tone(freq, duty int) error { return b.link.SendCommand(toneCommand(freq, duty)) }

func (b *Board) Off() error { return b.link.SendCommand(toneCommand(0, 0)) }

package stall

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/motion"
	"github.com/banshee-data/rover/internal/sensing"
)

var (
	t0      = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	centred = sensing.LineSnapshot{700, 700, 200, 700, 700}
)

func newDetector() *Detector {
	cfg := config.EmptyRobotConfig()
	return NewDetector(ConfigFromRobot(cfg), motion.NewPlanner(motion.ConfigFromRobot(cfg)))
}

func TestCheck_DwellOnIdenticalSnapshots(t *testing.T) {
	t.Parallel()

	d := newDetector()
	now := t0
	for i := 0; i < 5; i++ {
		assert.False(t, d.Check(now, centred), "sample %d is before the dwell", i)
		now = now.Add(500 * time.Millisecond)
	}
	// 2.5s elapsed so far; the dwell is strict.
	assert.False(t, d.Check(t0.Add(3*time.Second), centred))
	assert.True(t, d.Check(t0.Add(3*time.Second+time.Millisecond), centred))
}

func TestCheck_NoiseWithinTolerance(t *testing.T) {
	t.Parallel()

	d := newDetector()
	d.Check(t0, centred)
	noisy := sensing.LineSnapshot{720, 690, 230, 670, 710}
	assert.False(t, d.Check(t0.Add(time.Second), noisy))
	assert.True(t, d.Check(t0.Add(4*time.Second), noisy))
}

func TestCheck_DivergenceResets(t *testing.T) {
	t.Parallel()

	d := newDetector()
	d.Check(t0, centred)
	d.Check(t0.Add(4*time.Second), centred)
	d.Recover(centred)
	d.Recover(centred)

	moved := sensing.LineSnapshot{700, 200, 700, 700, 700}
	assert.False(t, d.Check(t0.Add(5*time.Second), moved))
	mem, ok := d.Memory()
	require.True(t, ok)
	assert.Equal(t, moved, mem.Snapshot)
	assert.Equal(t, t0.Add(5*time.Second), mem.Since)
	assert.Equal(t, 0, mem.Boost, "divergence resets the boost")
}

func TestCheck_OffLineDestroysMemory(t *testing.T) {
	t.Parallel()

	d := newDetector()
	d.Check(t0, centred)
	_, ok := d.Memory()
	require.True(t, ok)

	assert.False(t, d.Check(t0.Add(10*time.Second), sensing.LineSnapshot{900, 900, 900, 900, 900}))
	_, ok = d.Memory()
	assert.False(t, ok)
}

func TestRecover_BoostEscalatesToCap(t *testing.T) {
	t.Parallel()

	d := newDetector()
	d.Check(t0, centred)

	first := d.Recover(centred)
	assert.Equal(t, 0, first.Power, "first recovery has no boost")

	for k := 1; k < 25; k++ {
		r := d.Recover(centred)
		assert.LessOrEqual(t, r.Power, 10)
		assert.Equal(t, min(k, 10), r.Power)
	}
	mem, _ := d.Memory()
	assert.LessOrEqual(t, mem.Boost, 10)
}

func TestRecover_Direction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		snap   sensing.LineSnapshot
		action Action
		cmd    motion.Command
	}{
		{"centred goes forward", centred, ActionForward, motion.Command{11, 11}},
		{"outer left wins", sensing.LineSnapshot{200, 700, 700, 200, 700}, ActionLeft, motion.Command{6, 12}},
		{"right pair", sensing.LineSnapshot{700, 700, 700, 200, 200}, ActionRight, motion.Command{12, 6}},
		{"symmetric goes forward", sensing.LineSnapshot{700, 200, 700, 200, 700}, ActionForward, motion.Command{11, 11}},
		{"empty goes forward", sensing.LineSnapshot{900, 900, 900, 900, 900}, ActionForward, motion.Command{11, 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newDetector().Recover(tt.snap)
			assert.Equal(t, tt.action, r.Action)
			assert.Equal(t, tt.cmd, r.Command)
		})
	}
}

func TestStallScenario_RecoveryDiffersFromStalledCommand(t *testing.T) {
	t.Parallel()

	cfg := config.EmptyRobotConfig()
	planner := motion.NewPlanner(motion.ConfigFromRobot(cfg))
	d := NewDetector(ConfigFromRobot(cfg), planner)

	stalled := planner.LineOffset(0, 0)
	stalledAt := false
	for i := 0; i < 5; i++ {
		stalledAt = d.Check(t0.Add(time.Duration(i)*time.Second), centred)
	}
	require.True(t, stalledAt)

	r := d.Recover(centred)
	assert.False(t, r.Command.IsStop())
	assert.NotEqual(t, stalled, r.Command)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "left", ActionLeft.String())
	assert.Equal(t, "right", ActionRight.String())
	assert.Equal(t, "forward", ActionForward.String())
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rover/internal/units"
)

// Navigation modes.
const (
	ModeGrid     = "grid"
	ModeObstacle = "obstacle"
)

// ValidMode reports whether m names a navigation mode.
func ValidMode(m string) bool { return m == ModeGrid || m == ModeObstacle }

// Obstacle following laws.
const (
	ObstacleLawCurved   = "curved"
	ObstacleLawStandOff = "stand_off"
)

// DefaultConfigPath is the path to the canonical robot defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/robot.defaults.json"

// RobotConfig is the root configuration for the navigation core.
// All fields are optional; the Get* accessors supply the tuned defaults
// for anything the JSON file leaves out, so partial configs are safe.
type RobotConfig struct {
	// Reflectance classification
	LineThreshold        *int `json:"line_threshold,omitempty"`
	IntersectionMinCount *int `json:"intersection_min_count,omitempty"`
	HomeMax              *int `json:"home_max,omitempty"`
	HomeMinPeak          *int `json:"home_min_peak,omitempty"`
	LiftedMax            *int `json:"lifted_max,omitempty"`

	// Proximity filter
	FilterWindow   *int    `json:"filter_window,omitempty"`
	FilterQuorum   *int    `json:"filter_quorum,omitempty"`
	SampleInterval *string `json:"sample_interval,omitempty"` // duration string like "20ms"

	// Ranging
	MinDistance    *float64 `json:"min_distance,omitempty"`
	MaxDistance    *float64 `json:"max_distance,omitempty"`
	FollowDistance *float64 `json:"follow_distance,omitempty"`
	NoEchoDistance *float64 `json:"no_echo_distance,omitempty"`
	EchoTimeout    *string  `json:"echo_timeout,omitempty"`
	RangingPulses  *int     `json:"ranging_pulses,omitempty"`

	// Anti-distraction lock
	LockHorizon        *string  `json:"lock_horizon,omitempty"`
	LockMaxDelta       *float64 `json:"lock_max_delta,omitempty"`
	DiscountConfidence *int     `json:"discount_confidence,omitempty"`

	// Line-offset law
	BaseSpeed          *int     `json:"base_speed,omitempty"`
	LineGain           *float64 `json:"line_gain,omitempty"`
	LineDerivativeGain *float64 `json:"line_derivative_gain,omitempty"`
	LineDeadBand       *float64 `json:"line_dead_band,omitempty"`
	MinTurn            *float64 `json:"min_turn,omitempty"`
	TurnSlowdown       *int     `json:"turn_slowdown,omitempty"`
	LineMaxSpeed       *int     `json:"line_max_speed,omitempty"`
	TurnSpeed          *int     `json:"turn_speed,omitempty"`

	// Stand-off law and curved following
	NominalSpeed     *int     `json:"nominal_speed,omitempty"`
	StandOffDeadBand *float64 `json:"stand_off_dead_band,omitempty"`
	ForwardGain      *float64 `json:"forward_gain,omitempty"`
	ReverseGain      *float64 `json:"reverse_gain,omitempty"`
	ForwardCap       *int     `json:"forward_cap,omitempty"`
	ReverseCap       *int     `json:"reverse_cap,omitempty"`
	CloseGain        *float64 `json:"close_gain,omitempty"`
	FarGain          *float64 `json:"far_gain,omitempty"`
	MinCruise        *int     `json:"min_cruise,omitempty"`
	MaxCruise        *int     `json:"max_cruise,omitempty"`
	DriftBase        *float64 `json:"drift_base,omitempty"`
	DriftGain        *float64 `json:"drift_gain,omitempty"`
	WideFactor       *float64 `json:"wide_factor,omitempty"`
	StrongConfidence *int     `json:"strong_confidence,omitempty"`
	MotorLimit       *int     `json:"motor_limit,omitempty"`
	ObstacleLaw      *string  `json:"obstacle_law,omitempty"` // "curved" or "stand_off"

	// Stall detection
	StallTolerance   *int    `json:"stall_tolerance,omitempty"`
	StallDwell       *string `json:"stall_dwell,omitempty"`
	BoostCap         *int    `json:"boost_cap,omitempty"`
	RecoveryDuration *string `json:"recovery_duration,omitempty"`

	// Intersections
	StraightDuration *string `json:"straight_duration,omitempty"`
	TurnDuration     *string `json:"turn_duration,omitempty"`
	StraightWeight   *int    `json:"straight_weight,omitempty"`
	LeftWeight       *int    `json:"left_weight,omitempty"`
	RightWeight      *int    `json:"right_weight,omitempty"`

	// Line search
	LostTolerance  *string `json:"lost_tolerance,omitempty"`
	SearchCreep    *int    `json:"search_creep,omitempty"`
	SweepFlipEvery *int    `json:"sweep_flip_every,omitempty"`
	SweepBase      *string `json:"sweep_base,omitempty"`
	SweepStep      *string `json:"sweep_step,omitempty"`
	SweepMax       *string `json:"sweep_max,omitempty"`

	// Scanner
	ScanSpeed        *int    `json:"scan_speed,omitempty"`
	MinScanSpeed     *int    `json:"min_scan_speed,omitempty"`
	ScanQuorum       *int    `json:"scan_quorum,omitempty"`
	HintConfidence   *int    `json:"hint_confidence,omitempty"`
	ScanReverseAfter *string `json:"scan_reverse_after,omitempty"`
	ScanTimeout      *string `json:"scan_timeout,omitempty"`
	ScanCooldown     *string `json:"scan_cooldown,omitempty"`
	StopCooldown     *string `json:"stop_cooldown,omitempty"`

	// Loop and side signals
	GridTick          *string `json:"grid_tick,omitempty"`
	ObstacleTick      *string `json:"obstacle_tick,omitempty"`
	DisplayEvery      *int    `json:"display_every,omitempty"`
	BeepDuration      *string `json:"beep_duration,omitempty"`
	FoundTone         *int    `json:"found_tone,omitempty"`
	IntersectionTone  *int    `json:"intersection_tone,omitempty"`
	FollowLogInterval *string `json:"follow_log_interval,omitempty"`
	DisplayUnits      *string `json:"display_units,omitempty"`

	// Telemetry
	FlushEvery *int `json:"flush_every,omitempty"`
}

// EmptyRobotConfig returns a RobotConfig with all fields set to nil.
// Every accessor then yields its built-in default.
func EmptyRobotConfig() *RobotConfig {
	return &RobotConfig{}
}

// LoadRobotConfig loads a RobotConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadRobotConfig(path string) (*RobotConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyRobotConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup and tools.
func MustLoadDefaultConfig() *RobotConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ subpackages
	}
	for _, path := range candidates {
		if cfg, err := LoadRobotConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *RobotConfig) Validate() error {
	durations := map[string]*string{
		"sample_interval":     c.SampleInterval,
		"echo_timeout":        c.EchoTimeout,
		"lock_horizon":        c.LockHorizon,
		"stall_dwell":         c.StallDwell,
		"recovery_duration":   c.RecoveryDuration,
		"straight_duration":   c.StraightDuration,
		"turn_duration":       c.TurnDuration,
		"lost_tolerance":      c.LostTolerance,
		"sweep_base":          c.SweepBase,
		"sweep_step":          c.SweepStep,
		"sweep_max":           c.SweepMax,
		"scan_reverse_after":  c.ScanReverseAfter,
		"scan_timeout":        c.ScanTimeout,
		"scan_cooldown":       c.ScanCooldown,
		"stop_cooldown":       c.StopCooldown,
		"grid_tick":           c.GridTick,
		"obstacle_tick":       c.ObstacleTick,
		"beep_duration":       c.BeepDuration,
		"follow_log_interval": c.FollowLogInterval,
	}
	for name, v := range durations {
		if v == nil || *v == "" {
			continue
		}
		d, err := time.ParseDuration(*v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", name, *v)
		}
	}

	if c.GetFilterWindow() <= 0 {
		return fmt.Errorf("filter_window must be positive, got %d", c.GetFilterWindow())
	}
	if q := c.GetFilterQuorum(); q <= 0 || q > c.GetFilterWindow() {
		return fmt.Errorf("filter_quorum must be between 1 and filter_window (%d), got %d", c.GetFilterWindow(), q)
	}
	if c.GetMinDistance() >= c.GetMaxDistance() {
		return fmt.Errorf("min_distance (%g) must be below max_distance (%g)", c.GetMinDistance(), c.GetMaxDistance())
	}
	if c.GetNoEchoDistance() <= c.GetMaxDistance() {
		return fmt.Errorf("no_echo_distance (%g) must exceed max_distance (%g)", c.GetNoEchoDistance(), c.GetMaxDistance())
	}
	if c.GetRangingPulses() <= 0 {
		return fmt.Errorf("ranging_pulses must be positive, got %d", c.GetRangingPulses())
	}
	if c.GetLineThreshold() <= 0 {
		return fmt.Errorf("line_threshold must be positive, got %d", c.GetLineThreshold())
	}
	if n := c.GetIntersectionMinCount(); n < 1 || n > 5 {
		return fmt.Errorf("intersection_min_count must be between 1 and 5, got %d", n)
	}
	if c.GetMotorLimit() <= 0 {
		return fmt.Errorf("motor_limit must be positive, got %d", c.GetMotorLimit())
	}
	if c.GetReverseCap() > 0 || c.GetForwardCap() < 0 {
		return fmt.Errorf("reverse_cap must be <= 0 and forward_cap >= 0, got %d and %d", c.GetReverseCap(), c.GetForwardCap())
	}
	if c.GetMinCruise() > c.GetMaxCruise() {
		return fmt.Errorf("min_cruise (%d) must not exceed max_cruise (%d)", c.GetMinCruise(), c.GetMaxCruise())
	}
	if c.GetMinScanSpeed() > c.GetScanSpeed() {
		return fmt.Errorf("min_scan_speed (%d) must not exceed scan_speed (%d)", c.GetMinScanSpeed(), c.GetScanSpeed())
	}
	if c.GetScanReverseAfter() >= c.GetScanTimeout() {
		return fmt.Errorf("scan_reverse_after must be shorter than scan_timeout")
	}
	if c.GetBoostCap() < 0 {
		return fmt.Errorf("boost_cap must be non-negative, got %d", c.GetBoostCap())
	}
	sw, lw, rw := c.GetStraightWeight(), c.GetLeftWeight(), c.GetRightWeight()
	if sw < 0 || lw < 0 || rw < 0 || sw+lw+rw == 0 {
		return fmt.Errorf("intersection weights must be non-negative with a positive sum, got %d/%d/%d", sw, lw, rw)
	}
	if c.GetSweepFlipEvery() <= 0 {
		return fmt.Errorf("sweep_flip_every must be positive, got %d", c.GetSweepFlipEvery())
	}
	if c.GetDisplayEvery() <= 0 {
		return fmt.Errorf("display_every must be positive, got %d", c.GetDisplayEvery())
	}
	if law := c.GetObstacleLaw(); law != ObstacleLawCurved && law != ObstacleLawStandOff {
		return fmt.Errorf("obstacle_law must be %q or %q, got %q", ObstacleLawCurved, ObstacleLawStandOff, law)
	}
	if u := c.GetDisplayUnits(); !units.IsValid(u) {
		return fmt.Errorf("display_units must be one of %s, got %q", units.GetValidUnitsString(), u)
	}
	if c.GetFlushEvery() <= 0 {
		return fmt.Errorf("flush_every must be positive, got %d", c.GetFlushEvery())
	}

	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func stringOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// durationOr falls back to def when the field is unset or unparseable.
func durationOr(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def
	}
	return d
}

func (c *RobotConfig) GetLineThreshold() int        { return intOr(c.LineThreshold, 480) }
func (c *RobotConfig) GetIntersectionMinCount() int { return intOr(c.IntersectionMinCount, 4) }
func (c *RobotConfig) GetHomeMax() int              { return intOr(c.HomeMax, 160) }
func (c *RobotConfig) GetHomeMinPeak() int          { return intOr(c.HomeMinPeak, 100) }
func (c *RobotConfig) GetLiftedMax() int            { return intOr(c.LiftedMax, 30) }

func (c *RobotConfig) GetFilterWindow() int { return intOr(c.FilterWindow, 5) }
func (c *RobotConfig) GetFilterQuorum() int { return intOr(c.FilterQuorum, 3) }
func (c *RobotConfig) GetSampleInterval() time.Duration {
	return durationOr(c.SampleInterval, 20*time.Millisecond)
}

func (c *RobotConfig) GetMinDistance() float64    { return floatOr(c.MinDistance, 15) }
func (c *RobotConfig) GetMaxDistance() float64    { return floatOr(c.MaxDistance, 80) }
func (c *RobotConfig) GetFollowDistance() float64 { return floatOr(c.FollowDistance, 30) }
func (c *RobotConfig) GetNoEchoDistance() float64 { return floatOr(c.NoEchoDistance, 999) }
func (c *RobotConfig) GetRangingPulses() int      { return intOr(c.RangingPulses, 3) }
func (c *RobotConfig) GetEchoTimeout() time.Duration {
	return durationOr(c.EchoTimeout, 30*time.Millisecond)
}

func (c *RobotConfig) GetLockHorizon() time.Duration { return durationOr(c.LockHorizon, time.Second) }
func (c *RobotConfig) GetLockMaxDelta() float64      { return floatOr(c.LockMaxDelta, 5) }
func (c *RobotConfig) GetDiscountConfidence() int    { return intOr(c.DiscountConfidence, 60) }

func (c *RobotConfig) GetBaseSpeed() int              { return intOr(c.BaseSpeed, 9) }
func (c *RobotConfig) GetLineGain() float64           { return floatOr(c.LineGain, 3) }
func (c *RobotConfig) GetLineDerivativeGain() float64 { return floatOr(c.LineDerivativeGain, 0) }
func (c *RobotConfig) GetLineDeadBand() float64       { return floatOr(c.LineDeadBand, 0.1) }
func (c *RobotConfig) GetMinTurn() float64            { return floatOr(c.MinTurn, 1) }
func (c *RobotConfig) GetTurnSlowdown() int           { return intOr(c.TurnSlowdown, 2) }
func (c *RobotConfig) GetLineMaxSpeed() int           { return intOr(c.LineMaxSpeed, 25) }
func (c *RobotConfig) GetTurnSpeed() int              { return intOr(c.TurnSpeed, 12) }

func (c *RobotConfig) GetNominalSpeed() int         { return intOr(c.NominalSpeed, 17) }
func (c *RobotConfig) GetStandOffDeadBand() float64 { return floatOr(c.StandOffDeadBand, 3) }
func (c *RobotConfig) GetForwardGain() float64      { return floatOr(c.ForwardGain, 0.3) }
func (c *RobotConfig) GetReverseGain() float64      { return floatOr(c.ReverseGain, 0.4) }
func (c *RobotConfig) GetForwardCap() int           { return intOr(c.ForwardCap, 27) }
func (c *RobotConfig) GetReverseCap() int           { return intOr(c.ReverseCap, -15) }
func (c *RobotConfig) GetCloseGain() float64        { return floatOr(c.CloseGain, 0.5) }
func (c *RobotConfig) GetFarGain() float64          { return floatOr(c.FarGain, 0.3) }
func (c *RobotConfig) GetMinCruise() int            { return intOr(c.MinCruise, 10) }
func (c *RobotConfig) GetMaxCruise() int            { return intOr(c.MaxCruise, 27) }
func (c *RobotConfig) GetDriftBase() float64        { return floatOr(c.DriftBase, 5) }
func (c *RobotConfig) GetDriftGain() float64        { return floatOr(c.DriftGain, 0.1) }
func (c *RobotConfig) GetWideFactor() float64       { return floatOr(c.WideFactor, 0.7) }
func (c *RobotConfig) GetStrongConfidence() int     { return intOr(c.StrongConfidence, 80) }
func (c *RobotConfig) GetMotorLimit() int           { return intOr(c.MotorLimit, 100) }

func (c *RobotConfig) GetStallTolerance() int { return intOr(c.StallTolerance, 30) }
func (c *RobotConfig) GetBoostCap() int       { return intOr(c.BoostCap, 10) }
func (c *RobotConfig) GetStallDwell() time.Duration {
	return durationOr(c.StallDwell, 3*time.Second)
}
func (c *RobotConfig) GetRecoveryDuration() time.Duration {
	return durationOr(c.RecoveryDuration, 400*time.Millisecond)
}

func (c *RobotConfig) GetStraightDuration() time.Duration {
	return durationOr(c.StraightDuration, 500*time.Millisecond)
}
func (c *RobotConfig) GetTurnDuration() time.Duration {
	return durationOr(c.TurnDuration, 765*time.Millisecond)
}
func (c *RobotConfig) GetStraightWeight() int { return intOr(c.StraightWeight, 1) }
func (c *RobotConfig) GetLeftWeight() int     { return intOr(c.LeftWeight, 2) }
func (c *RobotConfig) GetRightWeight() int    { return intOr(c.RightWeight, 2) }

func (c *RobotConfig) GetLostTolerance() time.Duration {
	return durationOr(c.LostTolerance, 150*time.Millisecond)
}
func (c *RobotConfig) GetSearchCreep() int        { return intOr(c.SearchCreep, 5) }
func (c *RobotConfig) GetSweepFlipEvery() int     { return intOr(c.SweepFlipEvery, 20) }
func (c *RobotConfig) GetSweepBase() time.Duration { return durationOr(c.SweepBase, 100*time.Millisecond) }
func (c *RobotConfig) GetSweepStep() time.Duration { return durationOr(c.SweepStep, 50*time.Millisecond) }
func (c *RobotConfig) GetSweepMax() time.Duration  { return durationOr(c.SweepMax, 600*time.Millisecond) }

func (c *RobotConfig) GetScanSpeed() int      { return intOr(c.ScanSpeed, 13) }
func (c *RobotConfig) GetMinScanSpeed() int   { return intOr(c.MinScanSpeed, 8) }
func (c *RobotConfig) GetScanQuorum() int     { return intOr(c.ScanQuorum, 3) }
func (c *RobotConfig) GetHintConfidence() int { return intOr(c.HintConfidence, 60) }
func (c *RobotConfig) GetScanReverseAfter() time.Duration {
	return durationOr(c.ScanReverseAfter, 10*time.Second)
}
func (c *RobotConfig) GetScanTimeout() time.Duration {
	return durationOr(c.ScanTimeout, 60*time.Second)
}
func (c *RobotConfig) GetScanCooldown() time.Duration {
	return durationOr(c.ScanCooldown, 2*time.Second)
}
func (c *RobotConfig) GetStopCooldown() time.Duration {
	return durationOr(c.StopCooldown, time.Second)
}

func (c *RobotConfig) GetGridTick() time.Duration { return durationOr(c.GridTick, 10*time.Millisecond) }
func (c *RobotConfig) GetObstacleTick() time.Duration {
	return durationOr(c.ObstacleTick, 50*time.Millisecond)
}
func (c *RobotConfig) GetDisplayEvery() int { return intOr(c.DisplayEvery, 10) }
func (c *RobotConfig) GetBeepDuration() time.Duration {
	return durationOr(c.BeepDuration, 100*time.Millisecond)
}
func (c *RobotConfig) GetFoundTone() int        { return intOr(c.FoundTone, 523) }
func (c *RobotConfig) GetIntersectionTone() int { return intOr(c.IntersectionTone, 880) }
func (c *RobotConfig) GetFollowLogInterval() time.Duration {
	return durationOr(c.FollowLogInterval, 500*time.Millisecond)
}

func (c *RobotConfig) GetFlushEvery() int { return intOr(c.FlushEvery, 50) }

func (c *RobotConfig) GetObstacleLaw() string  { return stringOr(c.ObstacleLaw, ObstacleLawCurved) }
func (c *RobotConfig) GetDisplayUnits() string { return stringOr(c.DisplayUnits, units.CM) }

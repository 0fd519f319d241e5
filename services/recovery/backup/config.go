package backup

import (
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/recovery/control"
	"go.viam.com/recovery/spatialmath"
	"go.viam.com/recovery/utils"
)

// Names accepted by Config.TerminationOrder.
const (
	GoalFirstOrderName   = "goal_first"
	SafetyFirstOrderName = "safety_first"
)

const (
	defaultCycleFrequencyHz   = 10.
	defaultMinSpeed           = 0.025
	defaultDecelerationWindow = 500 * time.Millisecond
	defaultMaxAcceleration    = 0.5
	defaultTolerance          = 0.01
	defaultFootprintLength    = 0.4
	defaultFootprintWidth     = 0.4
)

// Config describes the backup behavior.
type Config struct {
	CycleFrequencyHz   float64       `json:"cycle_frequency_hz"`
	MinSpeed           float64       `json:"min_speed"`
	DecelerationWindow time.Duration `json:"deceleration_window"`
	MaxAcceleration    float64       `json:"max_acceleration"`
	// DefaultTolerance is used for goals that do not set a tolerance.
	DefaultTolerance float64 `json:"default_tolerance"`
	// FootprintLength is measured along the heading, FootprintWidth across it. The footprint is
	// centered on the robot's pose.
	FootprintLength  float64 `json:"footprint_length"`
	FootprintWidth   float64 `json:"footprint_width"`
	TerminationOrder string  `json:"termination_order"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		CycleFrequencyHz:   defaultCycleFrequencyHz,
		MinSpeed:           defaultMinSpeed,
		DecelerationWindow: defaultDecelerationWindow,
		MaxAcceleration:    defaultMaxAcceleration,
		DefaultTolerance:   defaultTolerance,
		FootprintLength:    defaultFootprintLength,
		FootprintWidth:     defaultFootprintWidth,
		TerminationOrder:   GoalFirstOrderName,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.CycleFrequencyHz <= 0 || !utils.IsFinite(cfg.CycleFrequencyHz) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("cycle_frequency_hz must be positive, got %v", cfg.CycleFrequencyHz))
	}
	if cfg.MinSpeed < 0 || !utils.IsFinite(cfg.MinSpeed) {
		return goutils.NewConfigValidationError(path, errors.Errorf("min_speed must not be negative, got %v", cfg.MinSpeed))
	}
	if cfg.DecelerationWindow < 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("deceleration_window must not be negative, got %v", cfg.DecelerationWindow))
	}
	if cfg.MaxAcceleration < 0 || !utils.IsFinite(cfg.MaxAcceleration) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("max_acceleration must not be negative, got %v", cfg.MaxAcceleration))
	}
	if cfg.DefaultTolerance <= 0 || !utils.IsFinite(cfg.DefaultTolerance) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("default_tolerance must be positive, got %v", cfg.DefaultTolerance))
	}
	if cfg.FootprintLength <= 0 || cfg.FootprintWidth <= 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("footprint must have a positive size, got %vx%v", cfg.FootprintLength, cfg.FootprintWidth))
	}
	if _, err := TerminationOrderByName(cfg.TerminationOrder); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// TickPeriod is the duration of one control step.
func (cfg *Config) TickPeriod() time.Duration {
	return time.Duration(float64(time.Second) / cfg.CycleFrequencyHz)
}

// PlannerConfig returns the velocity planner limits.
func (cfg *Config) PlannerConfig() control.PlannerConfig {
	return control.PlannerConfig{
		MinSpeed:           cfg.MinSpeed,
		DecelerationWindow: cfg.DecelerationWindow,
		MaxAcceleration:    cfg.MaxAcceleration,
	}
}

// Footprint returns the robot outline in its own frame.
func (cfg *Config) Footprint() spatialmath.Polygon {
	return spatialmath.NewRectangleFootprint(cfg.FootprintLength, cfg.FootprintWidth)
}

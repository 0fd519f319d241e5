// Package control contains the velocity planning used by motion recovery behaviors.
package control

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/recovery/utils"
)

// Velocity is a base velocity command. Linear is in m/s along the robot heading, angular in
// rad/s counter clockwise.
type Velocity struct {
	Linear  float64
	Angular float64
}

// IsZero reports whether the command is a stop.
func (v Velocity) IsZero() bool {
	return v.Linear == 0 && v.Angular == 0
}

// PlannerConfig holds the limits a VelocityPlanner enforces.
type PlannerConfig struct {
	// MinSpeed is the slowest non zero speed commanded, so the approach never becomes asymptotic.
	MinSpeed float64
	// DecelerationWindow is the time over which the remaining distance would be covered at the
	// planned speed. Zero disables slowing down near the target.
	DecelerationWindow time.Duration
	// MaxAcceleration limits how fast the speed ramps up, in m/s^2. Zero disables ramping.
	MaxAcceleration float64
}

// VelocityPlanner produces the straight line command for one control tick given the distance
// still to go. A planner is used for a single goal.
type VelocityPlanner struct {
	cfg       PlannerConfig
	tolerance float64
	tick      time.Duration
	last      Velocity
}

// NewVelocityPlanner returns a planner that stops once within tolerance of the target and
// never plans further than one tick of travel.
func NewVelocityPlanner(cfg PlannerConfig, tolerance float64, tick time.Duration) (*VelocityPlanner, error) {
	if tick <= 0 {
		return nil, errors.Errorf("tick duration must be positive, got %v", tick)
	}
	if tolerance < 0 || !utils.IsFinite(tolerance) {
		return nil, errors.Errorf("tolerance must be a non-negative number, got %v", tolerance)
	}
	if cfg.MinSpeed < 0 || cfg.MaxAcceleration < 0 || cfg.DecelerationWindow < 0 {
		return nil, errors.New("planner limits must not be negative")
	}
	return &VelocityPlanner{cfg: cfg, tolerance: tolerance, tick: tick}, nil
}

// Plan returns the command for remaining = target - traveled, both signed. The speed is
// min(speedLimit, |remaining| / window), raised to the minimum speed, ramped from the previous
// command and finally capped so a single tick cannot pass the target.
func (p *VelocityPlanner) Plan(remaining, speedLimit float64) Velocity {
	distance := math.Abs(remaining)
	if distance <= p.tolerance || speedLimit <= 0 {
		p.last = Velocity{}
		return p.last
	}

	speed := speedLimit
	if p.cfg.DecelerationWindow > 0 {
		speed = distance / p.cfg.DecelerationWindow.Seconds()
	}
	minSpeed := math.Min(p.cfg.MinSpeed, speedLimit)
	speed = utils.Clamp(speed, minSpeed, speedLimit)

	if p.cfg.MaxAcceleration > 0 {
		lastSpeed := 0.0
		if utils.Sign(p.last.Linear) == utils.Sign(remaining) {
			lastSpeed = math.Abs(p.last.Linear)
		}
		rampLimit := math.Max(lastSpeed+p.cfg.MaxAcceleration*p.tick.Seconds(), minSpeed)
		speed = math.Min(speed, rampLimit)
	}

	speed = math.Min(speed, distance/p.tick.Seconds())

	p.last = Velocity{Linear: utils.Sign(remaining) * speed}
	return p.last
}

// Last returns the most recently planned command.
func (p *VelocityPlanner) Last() Velocity {
	return p.last
}

// Package base defines the velocity controlled mobile base a recovery behavior drives.
package base

import (
	"context"

	"github.com/golang/geo/r3"
)

// A Base represents a physical base of a robot.
//
// Velocities follow the robot base convention: linear is in mm/sec with +Y pointing forward,
// angular is in degrees/sec about +Z (counter clockwise).
type Base interface {
	// SetVelocity commands the base to move at the given linear and angular velocity until
	// told otherwise. It must hand the command off without waiting for the motion.
	SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error

	// Stop stops the base. It is assumed the base stops immediately.
	Stop(ctx context.Context, extra map[string]interface{}) error

	// IsMoving returns whether the base is currently commanded to move.
	IsMoving(ctx context.Context) (bool, error)
}

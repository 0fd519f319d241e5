package backup

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/recovery/control"
	"go.viam.com/recovery/spatialmath"
)

// Oracle answers whether a world frame footprint overlaps an obstacle.
type Oracle interface {
	Occupied(ctx context.Context, footprint spatialmath.Polygon) (bool, error)
}

// CollisionChecker decides whether a velocity command is safe to issue from a pose.
type CollisionChecker struct {
	oracle    Oracle
	footprint spatialmath.Polygon
	step      time.Duration
}

// NewCollisionChecker returns a checker that projects footprint forward by step.
func NewCollisionChecker(oracle Oracle, footprint spatialmath.Polygon, step time.Duration) *CollisionChecker {
	return &CollisionChecker{oracle: oracle, footprint: footprint, step: step}
}

// ProjectedFootprint returns the footprint after driving cmd from pose for one step.
func (cc *CollisionChecker) ProjectedFootprint(pose spatialmath.Pose2D, cmd control.Velocity) spatialmath.Polygon {
	return cc.footprint.Transform(pose.Integrate(cmd.Linear, cmd.Angular, cc.step))
}

// IsSafe reports whether the projected footprint is free. A failed query is never safe.
func (cc *CollisionChecker) IsSafe(ctx context.Context, pose spatialmath.Pose2D, cmd control.Velocity) (bool, error) {
	occupied, err := cc.oracle.Occupied(ctx, cc.ProjectedFootprint(pose, cmd))
	if err != nil {
		return false, errors.Wrap(err, "obstacle map query failed")
	}
	return !occupied, nil
}

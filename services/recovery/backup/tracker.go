package backup

import (
	"time"

	"go.viam.com/recovery/spatialmath"
)

// DistanceTracker turns absolute pose samples into the signed distance traveled since a start
// pose. Distance is positive along the start heading and negative behind it.
type DistanceTracker struct {
	start    spatialmath.Pose2D
	current  spatialmath.Pose2D
	lastTime time.Time
	distance float64
}

// NewDistanceTracker starts tracking from the given sample.
func NewDistanceTracker(start spatialmath.TimedPose) *DistanceTracker {
	return &DistanceTracker{start: start.Pose, current: start.Pose, lastTime: start.Time}
}

// Update consumes a sample and returns the distance traveled. Samples that are not newer than
// the last consumed one are ignored.
func (dt *DistanceTracker) Update(sample spatialmath.TimedPose) float64 {
	if !sample.Time.After(dt.lastTime) {
		return dt.distance
	}
	dt.lastTime = sample.Time
	dt.current = sample.Pose
	dt.distance = SignedDistance(dt.start, sample.Pose)
	return dt.distance
}

// Distance returns the distance as of the last consumed sample.
func (dt *DistanceTracker) Distance() float64 {
	return dt.distance
}

// Pose returns the last consumed pose.
func (dt *DistanceTracker) Pose() spatialmath.Pose2D {
	return dt.current
}

// Start returns the pose distances are measured from.
func (dt *DistanceTracker) Start() spatialmath.Pose2D {
	return dt.start
}

// SignedDistance is the Euclidean distance from start to current, negative when current lies
// behind start's heading.
func SignedDistance(start, current spatialmath.Pose2D) float64 {
	displacement := current.Point().Sub(start.Point())
	magnitude := displacement.Norm()
	if displacement.Dot(start.Heading()) < 0 {
		return -magnitude
	}
	return magnitude
}

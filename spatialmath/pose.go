// Package spatialmath defines planar poses and footprint polygons for ground robots.
package spatialmath

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"
)

// Pose2D is a position on the ground plane plus a heading in radians measured
// counter clockwise from the +X axis. Units are meters.
type Pose2D struct {
	X     float64
	Y     float64
	Theta float64
}

// NewZeroPose returns the pose at the origin facing +X.
func NewZeroPose() Pose2D {
	return Pose2D{}
}

// Point returns the position component of the pose.
func (p Pose2D) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Heading returns the unit vector the pose is facing.
func (p Pose2D) Heading() r2.Point {
	return r2.Point{X: math.Cos(p.Theta), Y: math.Sin(p.Theta)}
}

// TransformPoint maps a point expressed in this pose's frame into the parent frame.
func (p Pose2D) TransformPoint(local r2.Point) r2.Point {
	sin, cos := math.Sincos(p.Theta)
	return r2.Point{
		X: p.X + local.X*cos - local.Y*sin,
		Y: p.Y + local.X*sin + local.Y*cos,
	}
}

// Compose returns the pose reached by applying delta in this pose's frame.
func (p Pose2D) Compose(delta Pose2D) Pose2D {
	pt := p.TransformPoint(delta.Point())
	return Pose2D{X: pt.X, Y: pt.Y, Theta: NormalizeAngle(p.Theta + delta.Theta)}
}

// Integrate moves the pose with a constant linear (m/s, along the heading) and angular (rad/s)
// velocity for dt. Arcs are integrated exactly; straight motion when angular is zero.
func (p Pose2D) Integrate(linear, angular float64, dt time.Duration) Pose2D {
	secs := dt.Seconds()
	if secs <= 0 {
		return p
	}
	dTheta := angular * secs
	if math.Abs(dTheta) < 1e-9 {
		return p.Compose(Pose2D{X: linear * secs})
	}
	radius := linear / angular
	return p.Compose(Pose2D{
		X:     radius * math.Sin(dTheta),
		Y:     radius * (1 - math.Cos(dTheta)),
		Theta: dTheta,
	})
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(x: %.3f, y: %.3f, theta: %.3f)", p.X, p.Y, p.Theta)
}

// AlmostEqual compares two poses within epsilon on each component.
func (p Pose2D) AlmostEqual(other Pose2D, epsilon float64) bool {
	return math.Abs(p.X-other.X) <= epsilon &&
		math.Abs(p.Y-other.Y) <= epsilon &&
		math.Abs(NormalizeAngle(p.Theta-other.Theta)) <= epsilon
}

// TimedPose is a pose sample stamped with the time it was measured.
type TimedPose struct {
	Pose Pose2D
	Time time.Time
}

// NormalizeAngle wraps an angle into (-pi, pi].
func NormalizeAngle(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	switch {
	case theta > math.Pi:
		theta -= 2 * math.Pi
	case theta <= -math.Pi:
		theta += 2 * math.Pi
	}
	return theta
}

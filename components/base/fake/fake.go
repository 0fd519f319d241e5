// Package fake implements a simulated base that integrates its commanded velocity over time and
// reports its own odometry.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"

	"go.viam.com/recovery/components/base"
	"go.viam.com/recovery/logging"
	"go.viam.com/recovery/spatialmath"
	"go.viam.com/recovery/utils"
)

var _ base.Base = (*Base)(nil)

// Command is a velocity command the fake base received, converted to m/s and rad/s.
type Command struct {
	Linear  float64
	Angular float64
	Time    time.Time
}

// Base is a fake base that moves along its heading at the last commanded velocity.
type Base struct {
	mu         sync.Mutex
	clock      clock.Clock
	logger     logging.Logger
	pose       spatialmath.Pose2D
	linear     float64
	angular    float64
	lastUpdate time.Time
	commands   []Command
	stopCount  int
}

// NewBase returns a fake base resting at start. A nil clock uses the wall clock and a nil logger
// the global one.
func NewBase(clk clock.Clock, start spatialmath.Pose2D, logger logging.Logger) *Base {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = logging.Global().Sublogger("base")
	}
	return &Base{
		clock:      clk,
		logger:     logger,
		pose:       start,
		lastUpdate: clk.Now(),
	}
}

// integrate must be called with mu held.
func (b *Base) integrate() {
	now := b.clock.Now()
	b.pose = b.pose.Integrate(b.linear, b.angular, now.Sub(b.lastUpdate))
	b.lastUpdate = now
}

// SetVelocity integrates the motion so far and then switches to the new velocity.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	b.linear = linear.Y / 1000
	b.angular = utils.DegToRad(angular.Z)
	b.commands = append(b.commands, Command{Linear: b.linear, Angular: b.angular, Time: b.lastUpdate})
	b.logger.Debugw("fake base velocity", "linear_m_per_sec", b.linear, "angular_rad_per_sec", b.angular)
	return nil
}

// Stop halts the base where it currently is.
func (b *Base) Stop(ctx context.Context, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	b.linear, b.angular = 0, 0
	b.stopCount++
	return nil
}

// IsMoving returns whether a non zero velocity is commanded.
func (b *Base) IsMoving(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linear != 0 || b.angular != 0, nil
}

// CurrentPosition reports the odometry pose stamped with the current clock time.
func (b *Base) CurrentPosition(ctx context.Context) (spatialmath.TimedPose, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	return spatialmath.TimedPose{Pose: b.pose, Time: b.lastUpdate}, nil
}

// Pose returns the pose integrated up to now.
func (b *Base) Pose() spatialmath.Pose2D {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.integrate()
	return b.pose
}

// Commands returns every velocity command received so far.
func (b *Base) Commands() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Command(nil), b.commands...)
}

// StopCount returns how many times Stop was called.
func (b *Base) StopCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopCount
}

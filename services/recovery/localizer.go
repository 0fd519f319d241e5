package recovery

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/recovery/spatialmath"
)

// ErrNoPose is returned by a Localizer that has not produced a pose yet.
var ErrNoPose = errors.New("no pose available")

// Localizer reports the robot's latest pose. CurrentPosition must not wait for a new sample;
// it returns the most recent one, which may repeat between calls.
type Localizer interface {
	CurrentPosition(ctx context.Context) (spatialmath.TimedPose, error)
}

// PoseBuffer is a Localizer fed by a push style pose source. It keeps only the newest sample.
type PoseBuffer struct {
	mu     sync.Mutex
	latest spatialmath.TimedPose
	set    bool
}

// Publish records a sample. Samples that are not newer than the current one are dropped.
func (pb *PoseBuffer) Publish(sample spatialmath.TimedPose) bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if pb.set && !sample.Time.After(pb.latest.Time) {
		return false
	}
	pb.latest = sample
	pb.set = true
	return true
}

// CurrentPosition returns the newest sample or ErrNoPose.
func (pb *PoseBuffer) CurrentPosition(ctx context.Context) (spatialmath.TimedPose, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if !pb.set {
		return spatialmath.TimedPose{}, ErrNoPose
	}
	return pb.latest, nil
}

package inject

import (
	"context"

	"go.viam.com/recovery/services/recovery"
	"go.viam.com/recovery/spatialmath"
)

// Localizer is an injected pose source.
type Localizer struct {
	recovery.Localizer
	CurrentPositionFunc func(ctx context.Context) (spatialmath.TimedPose, error)
}

// CurrentPosition calls the injected CurrentPosition or the real version.
func (l *Localizer) CurrentPosition(ctx context.Context) (spatialmath.TimedPose, error) {
	if l.CurrentPositionFunc == nil {
		return l.Localizer.CurrentPosition(ctx)
	}
	return l.CurrentPositionFunc(ctx)
}

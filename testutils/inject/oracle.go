package inject

import (
	"context"

	"go.viam.com/recovery/spatialmath"
)

// Oracle is an injected obstacle map.
type Oracle struct {
	OccupiedFunc func(ctx context.Context, footprint spatialmath.Polygon) (bool, error)
}

// Occupied calls the injected Occupied, reporting free space when nothing is injected.
func (o *Oracle) Occupied(ctx context.Context, footprint spatialmath.Polygon) (bool, error) {
	if o.OccupiedFunc == nil {
		return false, nil
	}
	return o.OccupiedFunc(ctx, footprint)
}

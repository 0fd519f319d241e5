package inject

import (
	"context"

	"github.com/golang/geo/r3"

	"go.viam.com/recovery/components/base"
)

// Base is an injected base.
type Base struct {
	base.Base
	SetVelocityFunc func(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error
	StopFunc        func(ctx context.Context, extra map[string]interface{}) error
	IsMovingFunc    func(ctx context.Context) (bool, error)
}

// SetVelocity calls the injected SetVelocity or the real version.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	if b.SetVelocityFunc == nil {
		return b.Base.SetVelocity(ctx, linear, angular, extra)
	}
	return b.SetVelocityFunc(ctx, linear, angular, extra)
}

// Stop calls the injected Stop or the real version.
func (b *Base) Stop(ctx context.Context, extra map[string]interface{}) error {
	if b.StopFunc == nil {
		return b.Base.Stop(ctx, extra)
	}
	return b.StopFunc(ctx, extra)
}

// IsMoving calls the injected IsMoving or the real version.
func (b *Base) IsMoving(ctx context.Context) (bool, error) {
	if b.IsMovingFunc == nil {
		return b.Base.IsMoving(ctx)
	}
	return b.IsMovingFunc(ctx)
}

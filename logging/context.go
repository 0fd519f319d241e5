package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugModeKey struct{}

// EnableDebugMode marks ctx so CDebugw logs regardless of level. The name tags every entry logged
// that way, which lets one goal's debug output be picked out; an empty name picks a random one.
func EnableDebugMode(ctx context.Context, name string) context.Context {
	if name == "" {
		name = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugModeKey{}, name)
}

// DebugModeName returns the name ctx was put in debug mode with, or "" if it was not.
func DebugModeName(ctx context.Context) string {
	name, _ := ctx.Value(debugModeKey{}).(string)
	return name
}

// IsDebugMode reports whether ctx is in debug mode.
func IsDebugMode(ctx context.Context) bool {
	return DebugModeName(ctx) != ""
}

package logging

import (
	"context"

	"go.viam.com/utils"
)

type traceKey struct{}

// EnableDebugMode marks ctx so CDebugf emits even on loggers above DEBUG. The name tags the
// traced call; an empty name is replaced with a random six letter one.
func EnableDebugMode(ctx context.Context, name string) context.Context {
	if name == "" {
		name = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, traceKey{}, name)
}

// IsDebugMode reports whether ctx was marked by EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return GetName(ctx) != ""
}

// GetName returns the trace name attached by EnableDebugMode, or "".
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(traceKey{}).(string)
	return name
}

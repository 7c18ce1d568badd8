package domain

import "context"

type runIDKey struct{}

// ContextWithRunID returns a context carrying the run identifier.
// The engine reuses an ID already present in the context instead of generating one,
// which lets hosts know the ID before the run starts.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run identifier carried by ctx, if any.
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}

// Package obslog provides structured JSON logging and deterministic run ID
// issuance for sweep runs. Grounded on libs/observability (context-carried
// trace identifiers, JSON line logging) and, for the distributed ID
// issuer, libs/resilience.CircuitBreaker wrapping libs/marketdata.Cache's
// go-redis usage.
package obslog

import "context"

type contextKey string

const (
	simulatorIDKey contextKey = "simulator_id"
	windowIndexKey contextKey = "window_index"
)

// RunInfo carries trace identifiers for one sweep through a context.
// SimulatorID spans the whole parameter sweep; WindowIndex identifies one
// rolling-start window within it.
type RunInfo struct {
	SimulatorID string
	WindowIndex int
}

// WithRunInfo attaches info's identifiers to ctx.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	if info.SimulatorID != "" {
		ctx = context.WithValue(ctx, simulatorIDKey, info.SimulatorID)
	}
	ctx = context.WithValue(ctx, windowIndexKey, info.WindowIndex)
	return ctx
}

// RunInfoFromContext reads back whatever identifiers WithRunInfo attached.
func RunInfoFromContext(ctx context.Context) RunInfo {
	info := RunInfo{}
	if v := ctx.Value(simulatorIDKey); v != nil {
		if id, ok := v.(string); ok {
			info.SimulatorID = id
		}
	}
	if v := ctx.Value(windowIndexKey); v != nil {
		if idx, ok := v.(int); ok {
			info.WindowIndex = idx
		}
	}
	return info
}

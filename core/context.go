package core

import (
	"context"

	"github.com/huangsam/pts/internal/logger"
	"github.com/huangsam/pts/internal/telemetry"
)

// Context keys for pipeline options
type contextKey string

const (
	runIDKey          contextKey = "runID"
	suppressOutputKey contextKey = "suppressOutput"
	telemetryKey      contextKey = "telemetry"
)

// withRunID stores the history run id in the context
func withRunID(ctx context.Context, runID int64) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// getRunID returns the history run id from context
func getRunID(ctx context.Context) (int64, bool) {
	val := ctx.Value(runIDKey)
	if val == nil {
		return 0, false
	}
	id, ok := val.(int64)
	return id, ok
}

// WithSuppressOutput marks that results go back to the caller and nothing
// should be written to stdout. Used by the MCP and HTTP surfaces.
func WithSuppressOutput(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressOutputKey, true)
}

// shouldSuppressOutput returns whether output should be suppressed from context
func shouldSuppressOutput(ctx context.Context) bool {
	val := ctx.Value(suppressOutputKey)
	if val == nil {
		return false // default: write output
	}
	suppress, ok := val.(bool)
	return ok && suppress
}

// WithTelemetry attaches the metrics sink that prediction reports to.
func WithTelemetry(ctx context.Context, sink *telemetry.Sink) context.Context {
	return context.WithValue(ctx, telemetryKey, sink)
}

// telemetryFrom returns the sink attached by WithTelemetry, if any
func telemetryFrom(ctx context.Context) *telemetry.Sink {
	sink, _ := ctx.Value(telemetryKey).(*telemetry.Sink)
	return sink
}

// runLogger returns a component logger tagged with the run and request ids found in ctx.
func runLogger(ctx context.Context, component string) *logger.Logger {
	builder := logger.Named(component).With()
	if id, ok := getRunID(ctx); ok {
		builder = builder.Int64("run_id", id)
	}
	if req := logger.RequestID(ctx); req != "" {
		builder = builder.Str("request_id", req)
	}
	ll := builder.Logger()
	return &ll
}

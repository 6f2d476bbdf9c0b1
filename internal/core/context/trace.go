package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext correlates the log lines of one operation.
type TraceContext struct {
	TraceID string
	SpanID  string
}

type traceContextKey struct{}

// WithTrace attaches t to ctx.
func WithTrace(ctx context.Context, t *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// GetTrace returns the explicit TraceContext of ctx, else the ids of the
// recording otel span in ctx, else nil.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return &TraceContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
	}
	return nil
}

// NewTraceContext generates a fresh trace id for work started outside any span.
func NewTraceContext() *TraceContext {
	raw := uuid.New()
	return &TraceContext{TraceID: raw.String()}
}

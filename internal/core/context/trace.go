// Package context carries per-request tracing identity across layers that
// must not depend on the HTTP package, such as logging and audit.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext identifies one request across log lines and audit rows.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

// NewTraceContext builds a TraceContext with freshly generated identifiers.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		SpanID:    uuid.New().String()[:16],
		RequestID: uuid.New().String(),
	}
}

type traceKey struct{}

// WithTrace binds the trace to the context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

// GetTrace returns the bound trace, or nil when the context carries none.
func GetTrace(ctx context.Context) *TraceContext {
	trace, _ := ctx.Value(traceKey{}).(*TraceContext)
	return trace
}

// GetTraceID returns the bound trace id, generating a throwaway one for
// contexts that never passed through the trace middleware.
func GetTraceID(ctx context.Context) string {
	if trace := GetTrace(ctx); trace != nil {
		return trace.TraceID
	}
	return uuid.New().String()
}

// GetRequestID returns the bound request id, or empty when there is none.
func GetRequestID(ctx context.Context) string {
	if trace := GetTrace(ctx); trace != nil {
		return trace.RequestID
	}
	return ""
}

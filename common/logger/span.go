package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "pivotpath-engine"

// Span pairs an OTel span with the context it is attached to, so worker
// code can carry both through a task without juggling two values.
type Span struct {
	ctx  context.Context
	span trace.Span
}

// StartSpanFromTraceID starts a span continuing the trace identified by
// traceID, which travels with the task through the queue. An empty or
// malformed traceID starts a fresh trace instead.
func StartSpanFromTraceID(ctx context.Context, traceID, name string, opts ...trace.SpanStartOption) *Span {
	if remote, ok := remoteSpanContext(traceID); ok {
		opts = append(opts, trace.WithLinks(trace.Link{SpanContext: remote}))
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &Span{ctx: ctx, span: span}
}

// remoteSpanContext builds the remote parent for a trace id received
// over the queue. The bool result is false when the id is unusable.
func remoteSpanContext(traceID string) (trace.SpanContext, bool) {
	if traceID == "" {
		return trace.SpanContext{}, false
	}
	parsed, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return trace.SpanContext{}, false
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    parsed,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}), true
}

// Context returns the context carrying the span.
func (s *Span) Context() context.Context {
	return s.ctx
}

// RecordError records err on the span; nil errors are ignored.
func (s *Span) RecordError(err error) {
	if s.span != nil && err != nil {
		s.span.RecordError(err)
	}
}

// End completes the span.
func (s *Span) End() {
	if s.span != nil {
		s.span.End()
	}
}

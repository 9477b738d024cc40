package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey int

const (
	loggerKey contextKey = iota
	correlationKey
)

// Correlation identifies the unit of work a log line belongs to: the HTTP
// request and, once the envelope is parsed, the webhook event.
type Correlation struct {
	RequestID string
	EventID   string
}

// Fields returns the non-empty ids as zap fields
func (c Correlation) Fields() []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if c.RequestID != "" {
		fields = append(fields, zap.String("request_id", c.RequestID))
	}
	if c.EventID != "" {
		fields = append(fields, zap.String("event_id", c.EventID))
	}
	return fields
}

// WithContext attaches logger to ctx. The stored logger should not already
// carry correlation fields; L adds them.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the attached logger, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// CorrelationFromContext returns the ids recorded on ctx
func CorrelationFromContext(ctx context.Context) Correlation {
	c, _ := ctx.Value(correlationKey).(Correlation)
	return c
}

// ContextWithRequestID records the request id on ctx
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	c := CorrelationFromContext(ctx)
	c.RequestID = requestID
	return context.WithValue(ctx, correlationKey, c)
}

// ContextWithEventID records the webhook event id on ctx
func ContextWithEventID(ctx context.Context, eventID string) context.Context {
	c := CorrelationFromContext(ctx)
	c.EventID = eventID
	return context.WithValue(ctx, correlationKey, c)
}

// WithRequestID records requestID, attaches logger and returns the enriched logger
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = WithContext(ContextWithRequestID(ctx, requestID), logger)
	return ctx, L(ctx)
}

// WithEventID records eventID, attaches logger and returns the enriched logger
func WithEventID(ctx context.Context, logger *zap.Logger, eventID string) (context.Context, *zap.Logger) {
	ctx = WithContext(ContextWithEventID(ctx, eventID), logger)
	return ctx, L(ctx)
}

// GetRequestID returns the request id recorded on ctx
func GetRequestID(ctx context.Context) string {
	return CorrelationFromContext(ctx).RequestID
}

// GetEventID returns the event id recorded on ctx
func GetEventID(ctx context.Context) string {
	return CorrelationFromContext(ctx).EventID
}

// GetTraceID extracts the trace ID from the context's span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// WithTraceContext adds trace_id and span_id from the context's span.
// Without a valid span the logger is returned unchanged.
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}

// L returns the context logger with trace and correlation fields.
//
//	logger.L(ctx).Info("Order updated", zap.String("order_id", id))
func L(ctx context.Context) *zap.Logger {
	l := WithTraceContext(ctx, FromContext(ctx))
	if fields := CorrelationFromContext(ctx).Fields(); len(fields) > 0 {
		l = l.With(fields...)
	}
	return l
}

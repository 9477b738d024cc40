package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// TracerName is the default tracer name for application spans
const TracerName = "subsync"

// Span attribute keys used by the reconciliation services
const (
	SpanAttrEventID        = "event.id"
	SpanAttrEventType      = "event.type"
	SpanAttrEventSource    = "event.source"
	SpanAttrOrderID        = "order.id"
	SpanAttrSubscriptionID = "subscription.id"
	SpanAttrGatewaySubID   = "gateway.subscription_id"
	SpanAttrOutcome        = "reconcile.outcome"
	SpanAttrFailures       = "reconcile.failures"
)

// DownstreamCallEvent is the span event recorded for each upstream call
const DownstreamCallEvent = "downstream_call"

// SpanOption configures a span at start
type SpanOption func(*[]attribute.KeyValue)

// WithAttribute adds an attribute to the span
func WithAttribute(key string, value any) SpanOption {
	return func(attrs *[]attribute.KeyValue) {
		*attrs = append(*attrs, toAttribute(key, value))
	}
}

// StartSpan starts an internal span on the global tracer provider.
// The caller must call span.End().
//
//	ctx, span := telemetry.StartSpan(ctx, "ingress.gateway_event")
//	defer span.End()
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	var attrs []attribute.KeyValue
	for _, opt := range opts {
		opt(&attrs)
	}
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartServiceSpan starts a span named {service}.{method}
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttributes adds key/value pairs to span. Non-string keys are skipped.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	span.SetAttributes(pairsToAttributes(keyValues)...)
}

// RecordCalls adds one DownstreamCallEvent per call result, in call order.
// Failed calls carry the error text; they do not change the span status.
func RecordCalls(span trace.Span, calls reconcile.Results) {
	if span == nil || !span.IsRecording() {
		return
	}
	for _, call := range calls {
		attrs := []attribute.KeyValue{
			attribute.String("call.target", call.Target),
			attribute.String("call.operation", call.Operation),
			attribute.String("call.resource_id", call.ResourceID),
			attribute.Bool("call.ok", call.OK()),
		}
		if call.Err != nil {
			attrs = append(attrs, attribute.String("call.error", call.Err.Error()))
		}
		span.AddEvent(DownstreamCallEvent, trace.WithAttributes(attrs...))
	}
}

// RecordError records err on the span and sets the span status to error
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

func pairsToAttributes(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

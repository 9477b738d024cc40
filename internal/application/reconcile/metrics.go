package reconcile

import (
	"context"
	"time"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// Event sources
const (
	SourceGateway  = "gateway"
	SourceCommerce = "commerce"
)

// Ingest outcomes
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Metrics receives reconciliation outcomes
type Metrics interface {
	RecordEvent(ctx context.Context, source, eventType, outcome string)
	RecordDownstream(ctx context.Context, result reconcile.CallResult)
	RecordDuration(ctx context.Context, source string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordEvent(context.Context, string, string, string) {}
func (noopMetrics) RecordDownstream(context.Context, reconcile.CallResult) {}
func (noopMetrics) RecordDuration(context.Context, string, time.Duration) {}

// NoopMetrics returns a Metrics that discards everything
func NoopMetrics() Metrics {
	return noopMetrics{}
}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// MeterName is the instrumentation scope of the reconciliation metrics
const MeterName = "github.com/subsync/backend/reconcile"

// Downstream call results
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultFailure  = "failure"
)

// ReconcileMetrics records webhook and downstream call outcomes
type ReconcileMetrics struct {
	meter      metric.Meter
	events     *Counter
	downstream *Counter
	duration   *Histogram
}

// NewReconcileMetrics creates the reconciliation instruments on mp
func NewReconcileMetrics(mp *MeterProvider) (*ReconcileMetrics, error) {
	meter := mp.Meter(MeterName)

	events, err := NewCounter(meter,
		"subsync_webhook_events_total",
		"Webhook events received, by source, event type and outcome",
		"{event}",
	)
	if err != nil {
		return nil, err
	}

	downstream, err := NewCounter(meter,
		"subsync_downstream_calls_total",
		"Calls made to the payment gateway and the commerce platform",
		"{call}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "subsync_webhook_duration_seconds",
		Description: "Time spent handling one webhook delivery",
		Unit:        "s",
		Boundaries:  EventDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &ReconcileMetrics{
		meter:      meter,
		events:     events,
		downstream: downstream,
		duration:   duration,
	}, nil
}

// RecordEvent counts one received event
func (m *ReconcileMetrics) RecordEvent(ctx context.Context, source, eventType, outcome string) {
	m.events.Inc(ctx,
		AttrSource.String(source),
		AttrEventType.String(eventType),
		AttrOutcome.String(outcome),
	)
}

// RecordDownstream counts one upstream call
func (m *ReconcileMetrics) RecordDownstream(ctx context.Context, result reconcile.CallResult) {
	status := ResultFailure
	switch {
	case result.OK():
		status = ResultSuccess
	case result.NotFound():
		status = ResultNotFound
	}
	m.downstream.Inc(ctx,
		AttrTarget.String(result.Target),
		AttrOperation.String(result.Operation),
		AttrResult.String(status),
	)
}

// RecordDuration records how long a delivery took to handle
func (m *ReconcileMetrics) RecordDuration(ctx context.Context, source string, d time.Duration) {
	m.duration.RecordDuration(ctx, d, AttrSource.String(source))
}

// ObserveLedgerSize exports the entry count of a process-local ledger as a
// gauge. Shared backends (database, redis) are not observed.
func (m *ReconcileMetrics) ObserveLedgerSize(backend string, size func() int) error {
	_, err := m.meter.Int64ObservableGauge("subsync_ledger_entries",
		metric.WithDescription("Event ids held by the in-process idempotency ledger"),
		metric.WithUnit("{event}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(size()), metric.WithAttributes(AttrBackend.String(backend)))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger gauge: %w", err)
	}
	return nil
}

// ObserveDBPool exports connection pool usage as subsync_db_connections
// (in_use and idle) and the cumulative subsync_db_wait_count.
func (m *ReconcileMetrics) ObserveDBPool(stats func() (sql.DBStats, error)) error {
	conns, err := m.meter.Int64ObservableGauge("subsync_db_connections",
		metric.WithDescription("Database connections by pool state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connection gauge: %w", err)
	}
	waits, err := m.meter.Int64ObservableCounter("subsync_db_wait_count",
		metric.WithDescription("Connections waited for because the pool was exhausted"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wait counter: %w", err)
	}

	inUse := metric.WithAttributes(AttrPoolState.String("in_use"))
	idle := metric.WithAttributes(AttrPoolState.String("idle"))
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s, err := stats()
		if err != nil {
			return err
		}
		o.ObserveInt64(conns, int64(s.InUse), inUse)
		o.ObserveInt64(conns, int64(s.Idle), idle)
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, conns, waits)
	if err != nil {
		return fmt.Errorf("failed to register pool callback: %w", err)
	}
	return nil
}

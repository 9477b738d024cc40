package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/infrastructure/telemetry"
)

// AckDecision is how an inbound delivery was acknowledged
type AckDecision struct {
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	// Duplicate is set when the event id was already in the ledger
	Duplicate bool `json:"duplicate,omitempty"`
	// Ignored is set when the delivery took a no-op path
	Ignored bool   `json:"ignored,omitempty"`
	Message string `json:"message,omitempty"`
	// Failures counts downstream calls that failed while processing
	Failures int `json:"failures,omitempty"`
}

// IngressService verifies inbound deliveries, enforces idempotency on
// gateway events and dispatches to the reconcilers
type IngressService struct {
	gatewayVerifier  reconcile.EventVerifier
	commerceVerifier reconcile.CommerceEventVerifier
	ledger           reconcile.Ledger
	forward          *ForwardReconciler
	reverse          *ReverseReconciler
	metrics          Metrics
	logger           *zap.Logger
}

// IngressServiceConfig contains dependencies for IngressService
type IngressServiceConfig struct {
	GatewayVerifier  reconcile.EventVerifier
	CommerceVerifier reconcile.CommerceEventVerifier
	Ledger           reconcile.Ledger
	Forward          *ForwardReconciler
	Reverse          *ReverseReconciler
	Metrics          Metrics
	Logger           *zap.Logger
}

// NewIngressService creates a new IngressService
func NewIngressService(cfg IngressServiceConfig) *IngressService {
	return &IngressService{
		gatewayVerifier:  cfg.GatewayVerifier,
		commerceVerifier: cfg.CommerceVerifier,
		ledger:           cfg.Ledger,
		forward:          cfg.Forward,
		reverse:          cfg.Reverse,
		metrics:          metricsOrNoop(cfg.Metrics),
		logger:           cfg.Logger,
	}
}

// IngestGatewayEvent processes one gateway webhook delivery.
//
// Returned errors wrap ErrVerification, ErrMalformedPayload or ErrInternal.
// The event is marked processed only after the forward reconciler has
// attempted every downstream call; on ErrInternal it is left unmarked so a
// redelivery reprocesses it.
func (s *IngressService) IngestGatewayEvent(ctx context.Context, payload []byte, signature string) (*AckDecision, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingress", "gateway_event",
		telemetry.WithAttribute(telemetry.SpanAttrEventSource, SourceGateway))
	defer span.End()

	ack, err := s.ingestGatewayEvent(ctx, payload, signature)
	annotateSpan(span, ack, err)
	return ack, err
}

func (s *IngressService) ingestGatewayEvent(ctx context.Context, payload []byte, signature string) (*AckDecision, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDuration(ctx, SourceGateway, time.Since(start)) }()

	event, err := s.gatewayVerifier.ParseEvent(payload, signature)
	if err != nil {
		s.metrics.RecordEvent(ctx, SourceGateway, "", OutcomeRejected)
		return nil, err
	}

	ack := &AckDecision{EventID: event.ID, EventType: string(event.Type)}
	ctx, log := logger.WithEventID(ctx, s.logger, event.ID)
	log = log.With(zap.String("event_type", ack.EventType))

	processed, err := s.ledger.IsProcessed(ctx, event.ID)
	if err != nil {
		log.Error("Failed to check idempotency ledger", zap.Error(err))
		s.metrics.RecordEvent(ctx, SourceGateway, ack.EventType, OutcomeFailed)
		return ack, fmt.Errorf("ledger lookup: %w", errors.Join(reconcile.ErrInternal, err))
	}
	if processed {
		log.Info("Duplicate gateway event, skipping")
		s.metrics.RecordEvent(ctx, SourceGateway, ack.EventType, OutcomeDuplicate)
		ack.Duplicate = true
		ack.Message = "Event already processed"
		return ack, nil
	}

	result, err := s.runForward(ctx, event)
	if err != nil {
		log.Error("Gateway event processing aborted", zap.Error(err))
		s.metrics.RecordEvent(ctx, SourceGateway, ack.EventType, OutcomeFailed)
		return ack, err
	}
	telemetry.RecordCalls(trace.SpanFromContext(ctx), result.Calls)

	if err := s.ledger.MarkProcessed(ctx, event.ID); err != nil {
		log.Error("Failed to mark gateway event processed", zap.Error(err))
		s.metrics.RecordEvent(ctx, SourceGateway, ack.EventType, OutcomeFailed)
		return ack, fmt.Errorf("ledger mark: %w", errors.Join(reconcile.ErrInternal, err))
	}

	ack.Failures = len(result.Calls.Failed())
	if !result.Handled {
		ack.Ignored = true
		ack.Message = result.Reason
		s.metrics.RecordEvent(ctx, SourceGateway, ack.EventType, OutcomeIgnored)
		return ack, nil
	}

	ack.Message = "Event processed"
	s.metrics.RecordEvent(ctx, SourceGateway, ack.EventType, OutcomeProcessed)
	return ack, nil
}

// runForward invokes the forward reconciler and converts a panic into ErrInternal
func (s *IngressService) runForward(ctx context.Context, event *reconcile.BillingEvent) (result ForwardResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic while reconciling %s: %v", reconcile.ErrInternal, event.ID, r)
		}
	}()
	return s.forward.Handle(ctx, event), nil
}

// IngestCommerceEvent processes one commerce webhook delivery.
//
// Returned errors wrap ErrVerification or ErrUpstream. Deliveries without a
// linked gateway subscription, or bodies that are not subscriptions, are
// acknowledged as ignored.
func (s *IngressService) IngestCommerceEvent(ctx context.Context, payload []byte, signature string) (*AckDecision, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ingress", "commerce_event",
		telemetry.WithAttribute(telemetry.SpanAttrEventSource, SourceCommerce))
	defer span.End()

	ack, err := s.ingestCommerceEvent(ctx, payload, signature)
	annotateSpan(span, ack, err)
	return ack, err
}

func (s *IngressService) ingestCommerceEvent(ctx context.Context, payload []byte, signature string) (*AckDecision, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDuration(ctx, SourceCommerce, time.Since(start)) }()

	sub, err := s.commerceVerifier.ParseSubscriptionEvent(payload, signature)
	if err != nil {
		if errors.Is(err, reconcile.ErrMalformedPayload) {
			s.logger.Info("Commerce webhook body is not a subscription, ignoring", zap.Error(err))
			s.metrics.RecordEvent(ctx, SourceCommerce, "", OutcomeIgnored)
			return &AckDecision{Ignored: true, Message: "Nothing to do"}, nil
		}
		s.metrics.RecordEvent(ctx, SourceCommerce, "", OutcomeRejected)
		return nil, err
	}

	ack := &AckDecision{EventID: sub.ID, EventType: "subscription." + sub.Status.String()}
	log := s.logger.With(
		zap.String("subscription_id", sub.ID),
		zap.String("status", sub.Status.String()))

	gatewayID := sub.GatewaySubscriptionID()
	if gatewayID == "" || sub.Status == "" {
		log.Info("Commerce subscription is not linked to a gateway subscription, nothing to do")
		s.metrics.RecordEvent(ctx, SourceCommerce, ack.EventType, OutcomeIgnored)
		ack.Ignored = true
		ack.Message = "Nothing to do"
		return ack, nil
	}

	results, err := s.reverse.Handle(ctx, sub.Status, gatewayID)
	telemetry.RecordCalls(trace.SpanFromContext(ctx), results)
	ack.Failures = len(results.Failed())
	if err != nil {
		s.metrics.RecordEvent(ctx, SourceCommerce, ack.EventType, OutcomeFailed)
		return ack, err
	}

	log.Info("Commerce event processed", zap.String("stripe_subscription_id", gatewayID))
	s.metrics.RecordEvent(ctx, SourceCommerce, ack.EventType, OutcomeProcessed)
	ack.Message = "Event processed"
	return ack, nil
}

// annotateSpan copies the acknowledgement onto the ingress span
func annotateSpan(span trace.Span, ack *AckDecision, err error) {
	if ack != nil {
		telemetry.SetAttributes(span,
			telemetry.SpanAttrEventID, ack.EventID,
			telemetry.SpanAttrEventType, ack.EventType,
			telemetry.SpanAttrFailures, ack.Failures,
		)
		switch {
		case ack.Duplicate:
			telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, OutcomeDuplicate)
		case ack.Ignored:
			telemetry.SetAttributes(span, telemetry.SpanAttrOutcome, OutcomeIgnored)
		}
	}
	if err != nil {
		telemetry.RecordError(span, err)
	}
}

package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// ReverseReconciler maps a commerce subscription status change onto gateway
// cancel, pause and resume actions. Gateway failures other than a missing
// subscription are returned to the caller.
type ReverseReconciler struct {
	gateway reconcile.PaymentGateway
	metrics Metrics
	logger  *zap.Logger
}

// NewReverseReconciler creates a new ReverseReconciler
func NewReverseReconciler(gateway reconcile.PaymentGateway, metrics Metrics, logger *zap.Logger) *ReverseReconciler {
	return &ReverseReconciler{
		gateway: gateway,
		metrics: metricsOrNoop(metrics),
		logger:  logger,
	}
}

// Handle brings the gateway subscription in line with commerceStatus.
// The returned results list every gateway call made.
func (r *ReverseReconciler) Handle(ctx context.Context, commerceStatus reconcile.SubscriptionStatus, gatewaySubscriptionID string) (reconcile.Results, error) {
	log := r.logger.With(
		zap.String("stripe_subscription_id", gatewaySubscriptionID),
		zap.String("commerce_status", commerceStatus.String()))

	sub, err := r.gateway.GetSubscription(ctx, gatewaySubscriptionID)
	lookup := r.record(ctx, opGetSubscription, gatewaySubscriptionID, err)
	if err != nil {
		if lookup.NotFound() {
			log.Info("Gateway subscription not found, nothing to reconcile")
			return reconcile.Results{lookup}, nil
		}
		log.Error("Failed to get gateway subscription", zap.Error(err))
		results := reconcile.Results{lookup}
		return results, results.Err()
	}

	results := reconcile.Results{lookup}
	canceled := sub.Status == reconcile.GatewayStatusCanceled

	switch commerceStatus {
	case reconcile.SubscriptionStatusCancelled:
		if canceled {
			log.Debug("Gateway subscription already canceled")
			return results, nil
		}
		err := r.gateway.CancelSubscription(ctx, gatewaySubscriptionID)
		results = append(results, r.recordUpdate(ctx, opCancelSubscription, gatewaySubscriptionID, err))

	case reconcile.SubscriptionStatusOnHold:
		if canceled {
			log.Warn("Cannot pause a canceled gateway subscription")
			return results, nil
		}
		err := r.gateway.PauseSubscription(ctx, gatewaySubscriptionID)
		results = append(results, r.recordUpdate(ctx, opPauseSubscription, gatewaySubscriptionID, err))

	case reconcile.SubscriptionStatusActive:
		if canceled {
			log.Warn("Cannot resume a canceled gateway subscription")
			return results, nil
		}
		err := r.gateway.ResumeSubscription(ctx, gatewaySubscriptionID)
		results = append(results, r.recordUpdate(ctx, opResumeSubscription, gatewaySubscriptionID, err))

	default:
		log.Debug("Commerce status has no gateway mapping")
		return results, nil
	}

	if err := results.Err(); err != nil {
		log.Error("Gateway reconciliation failed", zap.Error(err))
		return results, err
	}

	log.Info("Gateway subscription reconciled", zap.String("gateway_status", sub.Status))
	return results, nil
}

func (r *ReverseReconciler) record(ctx context.Context, op, id string, err error) reconcile.CallResult {
	res := reconcile.NewCallResult(reconcile.TargetGateway, op, id, err)
	r.metrics.RecordDownstream(ctx, res)
	return res
}

// recordUpdate records a cancel, pause or resume. A subscription deleted
// between the lookup and the update is not a failure.
func (r *ReverseReconciler) recordUpdate(ctx context.Context, op, id string, err error) reconcile.CallResult {
	res := r.record(ctx, op, id, err)
	if res.NotFound() {
		res.Err = nil
	}
	return res
}

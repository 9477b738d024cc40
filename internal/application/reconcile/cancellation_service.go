package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// ErrSubscriptionNotLinked is returned when a commerce subscription carries no gateway cross-reference
var ErrSubscriptionNotLinked = fmt.Errorf("%w: subscription is not linked to a gateway subscription", reconcile.ErrMalformedPayload)

// CancellationResult describes a completed user-initiated cancellation
type CancellationResult struct {
	SubscriptionID        string `json:"subscription_id"`
	GatewaySubscriptionID string `json:"stripe_subscription_id"`
	Status                string `json:"status"`
}

// CancellationService cancels a subscription on behalf of a user: the
// gateway subscription first, then the commerce record
type CancellationService struct {
	commerce reconcile.CommercePlatform
	gateway  reconcile.PaymentGateway
	audit    reconcile.AuditRecorder
	logger   *zap.Logger
}

// NewCancellationService creates a new CancellationService
func NewCancellationService(commerce reconcile.CommercePlatform, gateway reconcile.PaymentGateway, audit reconcile.AuditRecorder, logger *zap.Logger) *CancellationService {
	return &CancellationService{
		commerce: commerce,
		gateway:  gateway,
		audit:    audit,
		logger:   logger,
	}
}

// Cancel cancels the commerce subscription and its gateway counterpart. A
// gateway failure leaves the commerce status unchanged.
func (s *CancellationService) Cancel(ctx context.Context, subscriptionID string) (*CancellationResult, error) {
	log := s.logger.With(zap.String("subscription_id", subscriptionID))

	sub, err := s.commerce.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	gatewayID := sub.GatewaySubscriptionID()
	if gatewayID == "" {
		return nil, ErrSubscriptionNotLinked
	}

	if err := s.gateway.CancelSubscription(ctx, gatewayID); err != nil {
		if !errors.Is(err, reconcile.ErrNotFound) {
			log.Error("Failed to cancel gateway subscription",
				zap.String("stripe_subscription_id", gatewayID),
				zap.Error(err))
			return nil, err
		}
		log.Info("Gateway subscription already gone", zap.String("stripe_subscription_id", gatewayID))
	}

	update := reconcile.SubscriptionUpdate{Status: reconcile.SubscriptionStatusCancelled}
	if err := s.commerce.UpdateSubscriptionStatus(ctx, subscriptionID, update); err != nil {
		log.Error("Gateway subscription canceled but commerce update failed", zap.Error(err))
		return nil, err
	}

	s.audit.Record(ctx, reconcile.AuditActionSubscriptionUpdated, map[string]any{
		"subscription_id":        subscriptionID,
		"stripe_subscription_id": gatewayID,
		"status":                 update.Status.String(),
		"initiated_by":           "user",
	})

	log.Info("Subscription canceled", zap.String("stripe_subscription_id", gatewayID))
	return &CancellationResult{
		SubscriptionID:        subscriptionID,
		GatewaySubscriptionID: gatewayID,
		Status:                update.Status.String(),
	}, nil
}

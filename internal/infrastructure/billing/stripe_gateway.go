package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/subscription"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
)

// pauseBehaviorVoid pauses collection; invoices drafted while paused are voided
const pauseBehaviorVoid = "void"

// StripeGateway implements reconcile.PaymentGateway on the Stripe subscriptions API
type StripeGateway struct {
	subscriptions *subscription.Client
	logger        *zap.Logger
}

// NewStripeGateway creates a gateway backed by the configured API backend
func NewStripeGateway(config *StripeConfig, logger *zap.Logger) (*StripeGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return NewStripeGatewayWithBackend(config.SecretKey, config.NewBackend(), logger), nil
}

// NewStripeGatewayWithBackend creates a gateway on an explicit backend
func NewStripeGatewayWithBackend(key string, backend stripe.Backend, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		subscriptions: &subscription.Client{B: backend, Key: key},
		logger:        logger,
	}
}

// GetSubscription retrieves a subscription
func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*reconcile.GatewaySubscription, error) {
	g.logger.Debug("Getting Stripe subscription", zap.String("subscription_id", subscriptionID))

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, g.wrap("get subscription", subscriptionID, err)
	}

	return toGatewaySubscription(sub), nil
}

// CancelSubscription cancels a subscription immediately
func (g *StripeGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	g.logger.Debug("Canceling Stripe subscription", zap.String("subscription_id", subscriptionID))

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := g.subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return g.wrap("cancel subscription", subscriptionID, err)
	}

	g.logger.Info("Canceled Stripe subscription",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))
	return nil
}

// PauseSubscription pauses payment collection. Pausing an already paused
// subscription is accepted by Stripe and is not an error.
func (g *StripeGateway) PauseSubscription(ctx context.Context, subscriptionID string) error {
	g.logger.Debug("Pausing Stripe subscription collection", zap.String("subscription_id", subscriptionID))

	params := &stripe.SubscriptionParams{
		PauseCollection: &stripe.SubscriptionPauseCollectionParams{
			Behavior: stripe.String(pauseBehaviorVoid),
		},
	}
	params.Context = ctx

	sub, err := g.subscriptions.Update(subscriptionID, params)
	if err != nil {
		return g.wrap("pause subscription", subscriptionID, err)
	}

	g.logger.Info("Paused Stripe subscription collection",
		zap.String("subscription_id", sub.ID),
		zap.String("behavior", pauseBehaviorVoid))
	return nil
}

// ResumeSubscription clears pause_collection so billing resumes
func (g *StripeGateway) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	g.logger.Debug("Resuming Stripe subscription collection", zap.String("subscription_id", subscriptionID))

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	// An empty value unsets the field
	params.AddExtra("pause_collection", "")

	sub, err := g.subscriptions.Update(subscriptionID, params)
	if err != nil {
		return g.wrap("resume subscription", subscriptionID, err)
	}

	g.logger.Info("Resumed Stripe subscription collection",
		zap.String("subscription_id", sub.ID),
		zap.String("status", string(sub.Status)))
	return nil
}

// wrap classifies a Stripe error as not-found or upstream
func (g *StripeGateway) wrap(op, subscriptionID string, err error) error {
	if isResourceMissing(err) {
		g.logger.Info("Stripe subscription not found",
			zap.String("operation", op),
			zap.String("subscription_id", subscriptionID))
		return fmt.Errorf("stripe: failed to %s %s: %w", op, subscriptionID, errors.Join(reconcile.ErrNotFound, err))
	}

	g.logger.Error("Stripe request failed",
		zap.String("operation", op),
		zap.String("subscription_id", subscriptionID),
		zap.Error(err))
	return fmt.Errorf("stripe: failed to %s %s: %w", op, subscriptionID, errors.Join(reconcile.ErrUpstream, err))
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodeResourceMissing
}

func toGatewaySubscription(sub *stripe.Subscription) *reconcile.GatewaySubscription {
	return &reconcile.GatewaySubscription{
		ID:       sub.ID,
		Status:   string(sub.Status),
		Paused:   sub.PauseCollection != nil && sub.PauseCollection.Behavior != "",
		Metadata: sub.Metadata,
	}
}

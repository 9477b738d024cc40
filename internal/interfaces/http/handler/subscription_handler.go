package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appreconcile "github.com/subsync/backend/internal/application/reconcile"
	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// SubscriptionCanceller cancels a subscription on both systems
type SubscriptionCanceller interface {
	Cancel(ctx context.Context, subscriptionID string) (*appreconcile.CancellationResult, error)
}

// SubscriptionHandler handles admin subscription endpoints
type SubscriptionHandler struct {
	BaseHandler
	canceller SubscriptionCanceller
}

// NewSubscriptionHandler creates a new SubscriptionHandler
func NewSubscriptionHandler(canceller SubscriptionCanceller) *SubscriptionHandler {
	return &SubscriptionHandler{canceller: canceller}
}

// Cancel handles POST /api/v1/subscriptions/:id/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.canceller.Cancel(ctx, req.ID)
	if err != nil {
		if !errors.Is(err, reconcile.ErrNotFound) && !errors.Is(err, reconcile.ErrMalformedPayload) {
			logger.L(ctx).Error("Subscription cancellation failed",
				zap.String("subscription_id", req.ID),
				zap.String("admin_subject", middleware.GetAdminSubject(c)),
				zap.Error(err))
		}
		h.HandleError(c, err)
		return
	}

	logger.L(ctx).Info("Subscription cancelled",
		zap.String("subscription_id", result.SubscriptionID),
		zap.String("stripe_subscription_id", result.GatewaySubscriptionID),
		zap.String("admin_subject", middleware.GetAdminSubject(c)))
	h.Success(c, dto.NewCancellationResponse(result))
}

package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appreconcile "github.com/subsync/backend/internal/application/reconcile"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// OrderDetailsReader loads an order with its child subscriptions
type OrderDetailsReader interface {
	GetOrderDetails(ctx context.Context, orderID string) (*appreconcile.OrderDetails, error)
}

// OrderHandler handles admin order endpoints
type OrderHandler struct {
	BaseHandler
	reader OrderDetailsReader
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(reader OrderDetailsReader) *OrderHandler {
	return &OrderHandler{reader: reader}
}

// GetByID handles GET /api/v1/orders/:id
func (h *OrderHandler) GetByID(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	details, err := h.reader.GetOrderDetails(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewOrderDetailsResponse(details))
}

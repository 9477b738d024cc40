package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appreconcile "github.com/subsync/backend/internal/application/reconcile"
	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// AuditLogReader reads the audit log newest first
type AuditLogReader interface {
	ListAll(ctx context.Context) ([]reconcile.AuditEntry, error)
	ListPage(ctx context.Context, limit, offset int) (*appreconcile.AuditLogPage, error)
}

// AuditLogHandler serves the audit log
type AuditLogHandler struct {
	BaseHandler
	reader AuditLogReader
}

// NewAuditLogHandler creates a new AuditLogHandler
func NewAuditLogHandler(reader AuditLogReader) *AuditLogHandler {
	return &AuditLogHandler{reader: reader}
}

// ListPublic handles GET /logs. The body is a bare array of
// {action, details, timestamp}.
func (h *AuditLogHandler) ListPublic(c *gin.Context) {
	entries, err := h.reader.ListAll(c.Request.Context())
	if err != nil {
		logger.L(c.Request.Context()).Error("Failed to list audit log", zap.Error(err))
		h.InternalError(c, "Failed to list audit log")
		return
	}
	c.JSON(http.StatusOK, dto.NewAuditLogResponses(entries))
}

// ListPage handles GET /api/v1/logs?limit=&offset=
func (h *AuditLogHandler) ListPage(c *gin.Context) {
	var req dto.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	req.Normalize()

	page, err := h.reader.ListPage(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		logger.L(c.Request.Context()).Error("Failed to list audit log page",
			zap.Int("limit", req.Limit),
			zap.Int("offset", req.Offset),
			zap.Error(err))
		h.InternalError(c, "Failed to list audit log")
		return
	}

	h.SuccessWithMeta(c, dto.NewAuditLogPageResponse(page.Items, page.Total), page.Total, req.Limit, req.Offset)
}

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/domain/reconcile"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/interfaces/http/dto"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler writes the response envelope for the admin and public handlers
type BaseHandler struct{}

// errorResponses maps domain errors to envelope codes, first match wins.
// An empty message means the error text after the sentinel prefix is shown.
var errorResponses = []struct {
	target  error
	code    string
	message string
}{
	{reconcile.ErrNotFound, dto.ErrCodeNotFound, "Resource not found"},
	{reconcile.ErrMalformedPayload, dto.ErrCodeBadRequest, ""},
	{reconcile.ErrVerification, dto.ErrCodeSignatureInvalid, "Signature verification failed"},
	{reconcile.ErrUpstream, dto.ErrCodeUpstream, "Upstream request failed"},
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends data with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, limit, offset int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, limit, offset))
}

// Error sends an error envelope carrying the request id
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error envelope with the status registered for code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.HTTPStatus(code), code, message)
}

func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleError maps err onto the envelope. Upstream failures are 502 since
// the admin API proxies the commerce platform and the gateway. Responses
// of 500 and above are logged with the cause.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code, message := dto.ErrCodeInternal, "An unexpected error occurred"
	for _, r := range errorResponses {
		if !errors.Is(err, r.target) {
			continue
		}
		code, message = r.code, r.message
		if message == "" {
			message = strings.TrimPrefix(err.Error(), r.target.Error()+": ")
		}
		break
	}

	if status := dto.HTTPStatus(code); status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("Admin request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	h.ErrorWithCode(c, code, message)
}

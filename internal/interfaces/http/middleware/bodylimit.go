package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/subsync/backend/internal/interfaces/http/dto"
)

// BodyLimitConfig sets the request body ceiling. PathLimits maps a path prefix
// to its own ceiling; the longest matching prefix wins.
type BodyLimitConfig struct {
	MaxBytes   int64
	PathLimits map[string]int64
}

// BodyLimit returns a middleware that limits request body size
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return BodyLimitWithConfig(BodyLimitConfig{MaxBytes: maxBytes})
}

// BodyLimitWithConfig rejects declared oversize bodies up front. Bodies of
// unknown length are wrapped so that reads past the limit fail.
func BodyLimitWithConfig(cfg BodyLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Body == http.NoBody {
			c.Next()
			return
		}

		limit := cfg.limitFor(c.Request.URL.Path)
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRequestTooLarge,
				"Request body exceeds maximum allowed size",
				GetRequestID(c),
			))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

func (cfg BodyLimitConfig) limitFor(path string) int64 {
	limit, matched := cfg.MaxBytes, -1
	for prefix, n := range cfg.PathLimits {
		if len(prefix) > matched && strings.HasPrefix(path, prefix) {
			limit, matched = n, len(prefix)
		}
	}
	return limit
}

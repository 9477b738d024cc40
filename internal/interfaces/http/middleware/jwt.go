package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/infrastructure/auth"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/interfaces/http/dto"
)

// Admin auth context keys
const (
	AdminClaimsKey  = "admin_claims"
	AdminSubjectKey = "admin_subject"
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
)

// TokenValidator validates a bearer token
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// AdminAuthConfig holds configuration for the admin auth middleware
type AdminAuthConfig struct {
	// Validator is required for token validation
	Validator TokenValidator
	// Optional callback if token is invalid (default: return 401/403)
	OnError func(c *gin.Context, err error)
	// Logger for middleware logging
	Logger *zap.Logger
}

// AdminAuth requires a valid admin bearer token
func AdminAuth(validator TokenValidator, log *zap.Logger) gin.HandlerFunc {
	return AdminAuthWithConfig(AdminAuthConfig{Validator: validator, Logger: log})
}

// AdminAuthWithConfig creates the admin auth middleware with custom config
func AdminAuthWithConfig(cfg AdminAuthConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			handleAuthError(c, cfg, auth.ErrInvalidToken, "Missing token")
			return
		}

		claims, err := cfg.Validator.ValidateToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(AdminClaimsKey, claims)
		c.Set(AdminSubjectKey, claims.Subject)

		ctx := c.Request.Context()
		reqLogger := logger.FromContext(ctx).With(zap.String("admin_subject", claims.Subject))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLogger))

		cfg.Logger.Debug("Admin authentication successful",
			zap.String("admin_subject", claims.Subject),
			zap.String("jti", claims.ID),
		)

		c.Next()
	}
}

// handleAuthError answers an authentication failure
func handleAuthError(c *gin.Context, cfg AdminAuthConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	cfg.Logger.Warn("Admin authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	status := http.StatusUnauthorized
	code := dto.ErrCodeUnauthorized
	errorMessage := "Authentication required"

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code = dto.ErrCodeTokenExpired
		errorMessage = "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code = dto.ErrCodeTokenInvalid
		errorMessage = "Token is not yet valid"
	case errors.Is(err, auth.ErrInsufficientRole):
		status = http.StatusForbidden
		code = dto.ErrCodeForbidden
		errorMessage = "Admin access required"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims), errors.Is(err, auth.ErrMissingSubject):
		code = dto.ErrCodeTokenInvalid
		errorMessage = "Invalid token"
	}

	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, errorMessage, GetRequestID(c)))
}

// GetAdminClaims retrieves the admin claims from gin.Context
func GetAdminClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(AdminClaimsKey); exists {
		if adminClaims, ok := claims.(*auth.Claims); ok {
			return adminClaims
		}
	}
	return nil
}

// GetAdminSubject retrieves the authenticated admin subject, or ""
func GetAdminSubject(c *gin.Context) string {
	return c.GetString(AdminSubjectKey)
}

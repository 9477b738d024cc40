package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/subsync/backend/internal/infrastructure/logger"
)

// readinessTimeout bounds each dependency ping
const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names one dependency of the readiness probe
type ReadinessCheck struct {
	Name   string
	Pinger Pinger
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	checks    []ReadinessCheck
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. Nil pingers are skipped.
func NewSystemHandler(name, version string, checks ...ReadinessCheck) *SystemHandler {
	active := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check.Pinger != nil {
			active = append(active, check)
		}
	}
	return &SystemHandler{
		name:      name,
		version:   version,
		checks:    active,
		startTime: time.Now(),
	}
}

// HealthResponse is the liveness and readiness body
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready handles GET /health/ready. Every check runs so the body
// reports each dependency.
func (h *SystemHandler) Ready(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := check.Pinger.Ping(ctx)
		cancel()
		if err != nil {
			logger.GetGinLogger(c).Warn("Readiness check failed",
				zap.String("check", check.Name),
				zap.Error(err))
			resp.Checks[check.Name] = "error"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	c.JSON(status, resp)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo handles GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

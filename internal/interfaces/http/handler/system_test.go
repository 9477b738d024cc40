package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func okPing(context.Context) error { return nil }

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("subsync", "1.0.0",
		ReadinessCheck{Name: "database", Pinger: pingFunc(okPing)},
		ReadinessCheck{Name: "redis"},
	)
	assert.False(t, h.startTime.IsZero())
	require.Len(t, h.checks, 1)
	assert.Equal(t, "database", h.checks[0].Name)
}

func TestSystemHandler_Health(t *testing.T) {
	h := NewSystemHandler("subsync", "1.0.0")
	c, w := newTestContext(http.MethodGet, "/health")

	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSystemHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		redisErr   error
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name:       "all dependencies up",
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ok", Checks: map[string]string{"database": "ok", "redis": "ok"}},
		},
		{
			name:       "redis down",
			redisErr:   errors.New("connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   HealthResponse{Status: "unavailable", Checks: map[string]string{"database": "ok", "redis": "error"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("subsync", "1.0.0",
				ReadinessCheck{Name: "database", Pinger: pingFunc(okPing)},
				ReadinessCheck{Name: "redis", Pinger: pingFunc(func(ctx context.Context) error {
					_, hasDeadline := ctx.Deadline()
					assert.True(t, hasDeadline)
					return tt.redisErr
				})},
			)
			c, w := newTestContext(http.MethodGet, "/health/ready")

			h.Ready(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("subsync", "1.2.3")
	c, w := newTestContext(http.MethodGet, "/api/v1/system/info")

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "subsync", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
}

func TestSystemHandler_GetSystemInfo_Uptime(t *testing.T) {
	h := NewSystemHandler("subsync", "1.0.0")
	c, w := newTestContext(http.MethodGet, "/")
	h.GetSystemInfo(c)

	var resp struct {
		Data SystemInfoResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0s", resp.Data.Uptime)
}

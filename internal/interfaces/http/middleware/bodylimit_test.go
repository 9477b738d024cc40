package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

// readAll answers 200 when the whole body could be read
func readAll(c *gin.Context) {
	if _, err := io.ReadAll(c.Request.Body); err != nil {
		c.String(http.StatusBadRequest, "body too large")
		return
	}
	c.String(http.StatusOK, "ok")
}

func TestBodyLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), BodyLimit(100))
	router.POST("/webhooks/gateway-events", readAll)
	router.GET("/logs", readAll)

	tests := []struct {
		name          string
		method        string
		path          string
		body          string
		unknownLength bool
		wantStatus    int
	}{
		{"within limit", http.MethodPost, "/webhooks/gateway-events", `{"id":"evt_1"}`, false, http.StatusOK},
		{"exactly at limit", http.MethodPost, "/webhooks/gateway-events", strings.Repeat("x", 100), false, http.StatusOK},
		{"declared length over limit", http.MethodPost, "/webhooks/gateway-events", strings.Repeat("x", 200), false, http.StatusRequestEntityTooLarge},
		{"streamed body over limit", http.MethodPost, "/webhooks/gateway-events", strings.Repeat("x", 200), true, http.StatusBadRequest},
		{"no body", http.MethodGet, "/logs", "", false, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.unknownLength {
				// as with chunked transfer encoding
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBodyLimit_ErrorEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), BodyLimit(10))
	router.POST("/api/v1/subscriptions/1/cancel", readAll)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/1/cancel", strings.NewReader(strings.Repeat("x", 20)))
	req.Header.Set(RequestIDHeader, "req-big")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")
	assert.Contains(t, w.Body.String(), "req-big")
}

func TestBodyLimitWithConfig_PathLimits(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(BodyLimitWithConfig(BodyLimitConfig{
		MaxBytes: 1000,
		PathLimits: map[string]int64{
			"/webhooks/":                50,
			"/webhooks/commerce-events": 20,
		},
	}))
	router.POST("/webhooks/gateway-events", readAll)
	router.POST("/webhooks/commerce-events", readAll)
	router.POST("/api/v1/logs", readAll)

	tests := []struct {
		path       string
		size       int
		wantStatus int
	}{
		{"/webhooks/gateway-events", 40, http.StatusOK},
		{"/webhooks/gateway-events", 60, http.StatusRequestEntityTooLarge},
		{"/webhooks/commerce-events", 30, http.StatusRequestEntityTooLarge},
		{"/api/v1/logs", 500, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(strings.Repeat("x", tt.size)))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestBodyLimitConfig_LimitFor(t *testing.T) {
	cfg := BodyLimitConfig{MaxBytes: 10, PathLimits: map[string]int64{"/a": 5, "/a/b": 2}}

	assert.Equal(t, int64(10), cfg.limitFor("/x"))
	assert.Equal(t, int64(5), cfg.limitFor("/a/c"))
	assert.Equal(t, int64(2), cfg.limitFor("/a/b/c"))
}

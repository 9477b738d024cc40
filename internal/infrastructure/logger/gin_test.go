package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(l *zap.Logger, quiet ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("request_id", "test-req-123")
		c.Next()
	})
	router.Use(Recovery(l), GinMiddleware(l, quiet...))
	return router
}

func httpRequestLogs(recorded *observer.ObservedLogs) []observer.LoggedEntry {
	return recorded.FilterMessage("HTTP Request").All()
}

func TestGinMiddleware_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusUnauthorized, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			router := newTestRouter(zap.New(core))
			router.POST("/webhooks/gateway-events", func(c *gin.Context) {
				c.Status(tt.status)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/webhooks/gateway-events", nil)
			router.ServeHTTP(w, req)

			logs := httpRequestLogs(recorded)
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, "test-req-123", logs[0].ContextMap()["request_id"])
			assert.Equal(t, int64(tt.status), logs[0].ContextMap()["status"])
		})
	}
}

func TestGinMiddleware_QuietPaths(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	router := newTestRouter(zap.New(core), "/health")
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	logs := httpRequestLogs(recorded)
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
}

func TestGinMiddleware_RequestLoggerAvailable(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/logs", func(c *gin.Context) {
		GetGinLogger(c).Info("from handler")
		FromContext(c.Request.Context()).Info("from request context")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/logs", nil))

	for _, msg := range []string{"from handler", "from request context"} {
		entries := recorded.FilterMessage(msg).All()
		require.Len(t, entries, 1)
		assert.Equal(t, "/logs", entries[0].ContextMap()["path"])
	}
}

func TestGetGinLogger_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.ErrorLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
	assert.Equal(t, 1, recorded.FilterMessage("Panic recovered").Len())
}

func TestGinMiddleware_ContextLoggerCarriesRequestIDOnce(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newTestRouter(zap.New(core))
	router.GET("/logs", func(c *gin.Context) {
		L(c.Request.Context()).Info("handled")
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/logs", nil))

	entries := recorded.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	count := 0
	for _, f := range entries[0].Context {
		if f.Key == "request_id" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, "/logs", entries[0].ContextMap()["path"])
}

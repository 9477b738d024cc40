package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/subsync/backend/internal/infrastructure/telemetry"
)

// Request surfaces, used to split webhook traffic from operator traffic
const (
	SurfaceWebhook = "webhook"
	SurfaceAdmin   = "admin"
	SurfaceHealth  = "health"
	SurfacePublic  = "public"
)

var attrSurface = attribute.Key("http.surface")

// webhookBodyBuckets cover the 64 KiB webhook ceiling and the 1 MiB default body limit
var webhookBodyBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}

type httpMetrics struct {
	requests *telemetry.Counter
	duration *telemetry.Histogram
	bodySize *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	m := &httpMetrics{}
	var err error

	if m.requests, err = telemetry.NewCounter(meter,
		"http_server_request_total", "HTTP requests by surface, route and status", "{request}"); err != nil {
		return nil, err
	}
	if m.duration, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.bodySize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "Declared request body size",
		Unit:        "By",
		Boundaries:  webhookBodyBuckets,
	}); err != nil {
		return nil, err
	}
	if m.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetrics records request count, latency, body size and in-flight
// requests. A nil or disabled provider yields a pass-through.
func HTTPMetrics(mp *telemetry.MeterProvider) gin.HandlerFunc {
	if mp == nil || !mp.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(mp.Meter("http.server"))
}

// HTTPMetricsWithMeter is HTTPMetrics on an existing meter. Instrument
// creation errors go to the global otel error handler and disable recording.
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		otel.Handle(err)
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.inFlight.Add(ctx, 1)
		c.Next()
		metrics.inFlight.Add(ctx, -1)

		// Route pattern, not the raw path, to bound cardinality
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
			attrSurface.String(RouteSurface(route)),
		}

		metrics.requests.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
		metrics.duration.RecordDuration(ctx, time.Since(start), attrs...)
		if size := c.Request.ContentLength; size > 0 {
			metrics.bodySize.Record(ctx, float64(size), attrs...)
		}
	}
}

// RouteSurface classifies a route pattern
func RouteSurface(route string) string {
	switch {
	case strings.HasPrefix(route, "/webhooks/"):
		return SurfaceWebhook
	case strings.HasPrefix(route, "/api/"):
		return SurfaceAdmin
	case route == "/health" || strings.HasPrefix(route, "/health/"):
		return SurfaceHealth
	default:
		return SurfacePublic
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

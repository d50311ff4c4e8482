package monitoring

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/medrex/dlt-consent/pkg/logger"
)

// Correlation headers set on every API response
const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"
)

// MonitoringMiddleware combines metrics, tracing, and logging for the API router
type MonitoringMiddleware struct {
	metrics *MetricsCollector
	tracing *TracingManager
	logger  *logger.Logger
}

// NewMonitoringMiddleware creates a new monitoring middleware
func NewMonitoringMiddleware(metrics *MetricsCollector, tracing *TracingManager, log *logger.Logger) *MonitoringMiddleware {
	return &MonitoringMiddleware{
		metrics: metrics,
		tracing: tracing,
		logger:  log,
	}
}

// Gin returns the gin handler recording every request
func (mm *MonitoringMiddleware) Gin() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// Generate request ID if not present
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(RequestIDHeader, requestID)

		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := mm.tracing.StartSpan(ctx, c.Request.Method+" "+route)
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("request.id", requestID),
		)
		if traceID := mm.tracing.TraceIDFromContext(ctx); traceID != "" {
			c.Header(TraceIDHeader, traceID)
			ctx = context.WithValue(ctx, logger.TraceIDKey, traceID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		duration := time.Since(start)

		mm.metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), duration)
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, strconv.Itoa(status))
		}

		mm.logger.HTTPRequest(ctx, c.Request.Method, route, c.ClientIP(), status, duration.Milliseconds())
	}
}

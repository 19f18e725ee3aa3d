// Package middleware provides HTTP middleware components for authentication,
// rate limiting, and request telemetry.
package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtslogistics/pricing-agent/internal/logging"
	"github.com/dtslogistics/pricing-agent/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	// ContextRequestID holds the request id set by RequestTelemetry.
	ContextRequestID = "request_id"
)

// RequestTelemetry assigns a request id, annotates the server span started by
// otelgin, records request metrics and writes one API log line per request.
// Health probes are counted but not logged.
func RequestTelemetry(logger *logging.StandardLogger, recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(requestIDHeader, requestID)

		span := trace.SpanFromContext(c.Request.Context())
		span.SetAttributes(attribute.String("http.request_id", requestID))

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		span.SetAttributes(
			attribute.String("pricing.caller", Caller(c)),
			attribute.Int64("http.response.time_ms", elapsed.Milliseconds()),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}

		recorder.RecordHTTP(route, c.Request.Method, status, elapsed.Seconds())

		if logger != nil && route != "/health" {
			logger.LogAPIRequest(c.Request.Method, route, status, elapsed.Milliseconds(), Caller(c))
		}
	}
}

// RecordError records an error on the current span
func RecordError(c *gin.Context, err error, description string) {
	span := trace.SpanFromContext(c.Request.Context())
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, description)
	}
}

// AddSpanAttribute adds an attribute to the current span
func AddSpanAttribute(c *gin.Context, key string, value interface{}) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	default:
		span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", value)))
	}
}

package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// Tracing opens a server span per request on the global tracer provider.
func Tracing(service string) gin.HandlerFunc {
	return otelgin.Middleware(service)
}

// AttachTraceContext echoes trace and request ids. It runs after Tracing so
// the trace id comes from the active span when tracing is enabled.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		traceID := observability.TraceID(c.Request.Context())
		if traceID == "" {
			traceID = strings.TrimSpace(c.GetHeader(headerTraceID))
		}
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set("trace_id", traceID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerTraceID, traceID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}

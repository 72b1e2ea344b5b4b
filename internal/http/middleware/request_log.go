package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if log == nil {
			return
		}
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if v := c.GetString("trace_id"); v != "" {
			fields = append(fields, "trace_id", v)
		}
		if v := c.GetString("request_id"); v != "" {
			fields = append(fields, "request_id", v)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Debug("HTTP request", fields...)
		}
	}
}

package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uw-ssec/ca-biositing-sub000/internal/observability"
)

// Metrics counts requests by route and status.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.ObserveHTTP(route, strconv.Itoa(c.Writer.Status()))
	}
}

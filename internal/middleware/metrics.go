package middleware

import (
	"time"

	"github.com/GoPolymarket/guardgate/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware observes request latency per route. The label is the
// method plus the route template, so offer ids never become label values.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.LatencyBucket.WithLabelValues(endpointLabel(c)).Observe(time.Since(start).Seconds())
	}
}

func endpointLabel(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unmatched"
	}
	return c.Request.Method + " " + route
}

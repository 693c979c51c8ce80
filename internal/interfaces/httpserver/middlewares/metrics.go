package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"prepd-server/services/realtime-api/internal/infrastructure/metrics"
)

// Metrics records request duration by method, route and status.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

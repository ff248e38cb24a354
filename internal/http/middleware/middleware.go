package middleware

import (
	"strconv"
	"time"

	"govcon_outreach_backend/platform/metrics"

	"github.com/gin-gonic/gin"
)

// RequestTimer records request latency per matched route. Unmatched paths
// share one label so scanners cannot blow up the series count.
func RequestTimer() gin.HandlerFunc {
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

package middleware

import (
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/fluxtrace/internal/metrics"
)

// PrometheusMiddleware records HTTP request duration and count. Routes in
// streaming hold the connection for a whole trace, so their duration goes to
// a separate histogram and does not skew request latency.
func PrometheusMiddleware(streaming ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath() // route pattern keeps label cardinality bounded
		if path == "" {
			path = "unknown"
		}

		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start).Seconds()

		if slices.Contains(streaming, path) {
			metrics.StreamDuration.WithLabelValues(path).Observe(elapsed)
		} else {
			metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(elapsed)
		}
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

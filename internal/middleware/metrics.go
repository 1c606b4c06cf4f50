package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edureach/program-lottery-api/internal/service"
)

// Metrics returns middleware that captures request metrics using the provided
// service. Health and scrape endpoints are excluded so the histograms
// describe lottery API traffic only.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		switch c.Request.URL.Path {
		case "/health", "/ready", "/metrics":
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}

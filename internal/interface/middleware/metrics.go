package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds the request collectors for one service.
type HTTPMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	RequestDuration  *prometheus.HistogramVec
}

// NewHTTPMetrics registers the collectors on reg under the given prefix.
func NewHTTPMetrics(reg prometheus.Registerer, prefix string) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

// Handler records every request. Paths use the route template so
// /c/:username does not explode cardinality.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%dxx", c.Writer.Status()/100)
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

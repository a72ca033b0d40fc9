package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per route.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	h := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medisub_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medisub_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if err := reg.Register(h.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(h.duration); err != nil {
		return nil, err
	}
	return h, nil
}

// GinMiddleware observes every request. Unmatched routes share one label.
func GinMiddleware(h *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		h.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		h.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

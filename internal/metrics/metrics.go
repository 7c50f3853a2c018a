package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidcast_login_attempts_total",
			Help: "Login attempts by provider and result",
		},
		[]string{"provider", "result"},
	)

	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_sessions_created_total",
		Help: "Sessions issued",
	})

	SessionsRevoked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidcast_sessions_revoked_total",
			Help: "Sessions switched off, by reason",
		},
		[]string{"reason"},
	)

	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidcast_gate_decisions_total",
			Help: "Route gate outcomes",
		},
		[]string{"class", "outcome"},
	)

	DeviceReports = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidcast_device_status_reports_total",
		Help: "Status reports received from devices",
	})

	DeviceProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidcast_device_probes_total",
			Help: "Outbound calls to device agents, by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		LoginAttempts,
		SessionsCreated,
		SessionsRevoked,
		GateDecisions,
		DeviceReports,
		DeviceProbes,
	)
}

func MetricsHandler(c *gin.Context) {
	promhttp.Handler().ServeHTTP(c.Writer, c.Request)
}

func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		if path == "/metrics" {
			return
		}

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

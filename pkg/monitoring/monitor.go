package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_sessions_started_total",
			Help: "Total number of exam sessions started",
		},
	)

	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_sessions_completed_total",
			Help: "Total number of exam sessions completed, by reason",
		},
		[]string{"reason"},
	)

	SessionScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_session_percentage",
			Help:    "Distribution of session percentages",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	CatalogFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_fallbacks_total",
			Help: "Catalog reads that failed on the primary store, by operation and policy",
		},
		[]string{"operation", "policy"},
	)

	TimerConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "exam_timer_connections",
			Help: "Open exam timer websocket connections",
		},
	)

	PurchasesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchases by final status",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(SessionsStarted)
	prometheus.MustRegister(SessionsCompleted)
	prometheus.MustRegister(SessionScore)
	prometheus.MustRegister(CatalogFallbacks)
	prometheus.MustRegister(TimerConnections)
	prometheus.MustRegister(PurchasesCreated)
}

// ObserveCompletion 记录一次交卷
func ObserveCompletion(reason string, percentage int) {
	SessionsCompleted.WithLabelValues(reason).Inc()
	SessionScore.Observe(float64(percentage))
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

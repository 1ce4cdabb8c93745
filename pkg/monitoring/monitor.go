package monitoring

import (
	"strconv"
	"sync"
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

	// GatingEvaluations 按结果统计前置条件评估次数
	GatingEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gating_evaluations_total",
			Help: "Prerequisite evaluations by outcome",
		},
		[]string{"outcome"},
	)

	MilestoneChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gating_user_milestone_changes_total",
			Help: "User milestone grants and revocations",
		},
		[]string{"action"},
	)

	SignalsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gating_signals_sent_total",
			Help: "Signals dispatched, by signal name",
		},
		[]string{"signal"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(GatingEvaluations)
		prometheus.MustRegister(MilestoneChanges)
		prometheus.MustRegister(SignalsSent)
	})
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

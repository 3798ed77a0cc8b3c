package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of completion requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Completion request duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	JSONRecoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "json_recovery_total",
			Help: "Structured output recoveries by winning strategy",
		},
		[]string{"kind", "strategy"},
	)

	TasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_enqueued_total",
			Help: "Total number of pipeline tasks enqueued",
		},
		[]string{"kind"},
	)
	TasksProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_tasks_processing",
			Help: "Number of pipeline tasks currently processing",
		},
		[]string{"kind"},
	)
	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_completed_total",
			Help: "Total number of pipeline tasks completed",
		},
		[]string{"kind"},
	)
	TasksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_failed_total",
			Help: "Total number of pipeline tasks failed",
		},
		[]string{"kind"},
	)

	OverallScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_overall_score",
			Help:    "Distribution of normalized overall scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)
	ProgressSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "progress_subscribers",
			Help: "Number of live progress subscriptions",
		},
	)
)

var registerOnce sync.Once

func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AIRequestsTotal,
			AIRequestDuration,
			JSONRecoveryTotal,
			TasksEnqueuedTotal,
			TasksProcessing,
			TasksCompletedTotal,
			TasksFailedTotal,
			OverallScoreHistogram,
			ProgressSubscribers,
		)
	})
}

// GinMetrics records Prometheus metrics for each request.
func GinMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func ObserveCompletion(provider string, took time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AIRequestsTotal.WithLabelValues(provider, outcome).Inc()
	AIRequestDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func ObserveRecovery(kind, strategy string) {
	JSONRecoveryTotal.WithLabelValues(kind, strategy).Inc()
}

func EnqueueTask(kind string) {
	TasksEnqueuedTotal.WithLabelValues(kind).Inc()
}

func StartTask(kind string) {
	TasksProcessing.WithLabelValues(kind).Inc()
}

func CompleteTask(kind string) {
	TasksProcessing.WithLabelValues(kind).Dec()
	TasksCompletedTotal.WithLabelValues(kind).Inc()
}

func FailTask(kind string) {
	TasksProcessing.WithLabelValues(kind).Dec()
	TasksFailedTotal.WithLabelValues(kind).Inc()
}

func ObserveOverallScore(score int) {
	if score >= 0 && score <= 100 {
		OverallScoreHistogram.Observe(float64(score))
	}
}

// Package metrics holds the Prometheus collectors shared by every service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LedgerOps counts ledger mutations by operation and result.
	LedgerOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_ledger_operations_total",
			Help: "Ledger credit/debit/reverse calls by result",
		},
		[]string{"op", "result"},
	)
	// SagaOutcomes counts finished sagas by kind and terminal state.
	SagaOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_outcomes_total",
			Help: "Sagas reaching a terminal state",
		},
		[]string{"saga", "state"},
	)
	// CompensationFailures is the alerting signal: every increment is money that needs an operator.
	CompensationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensation_failures_total",
			Help: "Compensating actions that failed and require manual reconciliation",
		},
		[]string{"saga", "step"},
	)
	// CallDuration observes outbound inter-service calls.
	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interservice_call_duration_seconds",
			Help:    "Latency of outbound service calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "outcome"},
	)
	// NotificationsDropped counts best-effort notifications that failed.
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_dropped_total",
		Help: "Fire-and-forget notifications that could not be delivered",
	})
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of response latency (seconds) for HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

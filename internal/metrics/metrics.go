// Package metrics holds the prometheus instruments of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_dispatch_total",
			Help: "Total number of messages dispatched to an agent.",
		},
		[]string{"intent", "status", "default_route"},
	)

	dispatchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nl2sql_dispatch_duration_seconds",
			Help:    "Time spent handling one message, by intent.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"intent"},
	)

	providerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_provider_errors_total",
			Help: "Total number of failures surfaced by capability providers.",
		},
		[]string{"provider", "op"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nl2sql_active_sessions",
			Help: "Current number of live sessions.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		dispatchTotal,
		dispatchDurationSeconds,
		providerErrorsTotal,
		activeSessions,
		httpRequestsTotal,
	)
}

// ObserveDispatch records one handled message.
func ObserveDispatch(intent, status string, defaultRoute bool, elapsed time.Duration) {
	dispatchTotal.WithLabelValues(intent, status, strconv.FormatBool(defaultRoute)).Inc()
	dispatchDurationSeconds.WithLabelValues(intent).Observe(elapsed.Seconds())
}

func IncrementProviderError(provider, op string) {
	providerErrorsTotal.WithLabelValues(provider, op).Inc()
}

func SetActiveSessions(n int) {
	if n < 0 {
		n = 0
	}
	activeSessions.Set(float64(n))
}

func ObserveHTTPRequest(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

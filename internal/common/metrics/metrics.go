// internal/common/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RelayRequestsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total number of requests completed by relay endpoint",
		},
		[]string{"handler"},
	)

	RelayRequestsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_failed_total",
			Help: "Total number of requests failed by relay endpoint",
		},
		[]string{"handler", "error_code"},
	)

	RelayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "relay_request_duration_seconds",
			Help: "Duration of request processing in seconds",
		},
		[]string{"handler"},
	)

	RelayRequestsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_requests_active",
			Help: "Number of in-flight requests per relay endpoint",
		},
		[]string{"handler"},
	)

	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_upstream_calls_total",
			Help: "Outbound calls by service, operation and outcome",
		},
		[]string{"service", "operation", "outcome"},
	)

	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_upstream_call_duration_seconds",
			Help:    "Duration of outbound calls in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "operation"},
	)

	TallyIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_tally_increments_total",
			Help: "Interest tally increments by outcome",
		},
		[]string{"outcome"},
	)

	ContactCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_contact_cache_lookups_total",
			Help: "Contact cache lookups by result",
		},
		[]string{"result"},
	)
)

// ObserveUpstream records one outbound call.
func ObserveUpstream(service, operation, outcome string, elapsed time.Duration) {
	UpstreamCalls.WithLabelValues(service, operation, outcome).Inc()
	UpstreamCallDuration.WithLabelValues(service, operation).Observe(elapsed.Seconds())
}

// Track starts the request gauge for handler and returns the func that
// records completion or failure. An empty errorCode means success.
func Track(handler string) func(errorCode string) {
	start := time.Now()
	RelayRequestsActive.WithLabelValues(handler).Inc()
	return func(errorCode string) {
		RelayRequestsActive.WithLabelValues(handler).Dec()
		RelayRequestDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
		if errorCode != "" {
			RelayRequestsFailed.WithLabelValues(handler, errorCode).Inc()
			return
		}
		RelayRequestsCompleted.WithLabelValues(handler).Inc()
	}
}

// Package metrics exposes the Prometheus counters and histograms wirerpcd
// records for each dispatched request.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestsTotal counts every dispatched request, labeled by transport
// ("tcp"/"udp"), operation name, and outcome ("ok"/"error").
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wirerpc_requests_total",
		Help: "Total number of dispatched RPC requests.",
	},
	[]string{"transport", "operation", "outcome"},
)

// RequestDuration measures dispatch latency, labeled the same way as
// RequestsTotal (minus outcome, recorded regardless of success).
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "wirerpc_request_duration_seconds",
		Help:    "Time spent decoding and dispatching one RPC request.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"transport", "operation"},
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration)
}

// Observe records one dispatch outcome for transport/operation, given the
// call's start time.
func Observe(transport, operation string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RequestsTotal.WithLabelValues(transport, operation, outcome).Inc()
	RequestDuration.WithLabelValues(transport, operation).Observe(time.Since(started).Seconds())
}

// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NominationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nomination_requests_total",
			Help: "Total number of nomination submissions by outcome",
		},
		[]string{"outcome"},
	)

	NominationSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nomination_step_total",
			Help: "Results of the individual relay steps",
		},
		[]string{"step", "result"},
	)

	NominationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nomination_request_duration_seconds",
			Help:    "Duration of nomination processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of outbound calls to external platforms",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation", "status"},
	)
)

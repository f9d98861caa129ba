package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_requests_total",
		Help: "Model streaming requests by outcome",
	}, []string{"status"})

	metricFirstTokenMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_first_token_ms",
		Help:    "Latency from request to first text token (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.6, 10),
	})
)

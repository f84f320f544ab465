// Package metrics holds the Prometheus collectors for provider calls and queries.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	once sync.Once

	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Upstream provider calls by outcome",
		},
		[]string{"provider", "op", "outcome"},
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of upstream provider calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "engine",
			Name:      "queries_total",
			Help:      "Engine queries by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
)

// Register adds the collectors to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ProviderRequests, ProviderLatency, QueryTotal)
	})
}

// ObserveProvider records one provider call.
func ObserveProvider(provider, op string, started time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	ProviderRequests.WithLabelValues(provider, op, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, op).Observe(time.Since(started).Seconds())
}

// ObserveQuery records one engine query.
func ObserveQuery(op string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	QueryTotal.WithLabelValues(op, outcome).Inc()
}

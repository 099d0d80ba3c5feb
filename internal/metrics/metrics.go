// Package metrics provides Prometheus metrics for firewrite.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "firewrite"

var (
	// WritesApplied tracks individual writes applied by committed batches.
	WritesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_applied_total",
			Help:      "Total writes applied",
		},
		[]string{"kind"}, // update/delete/transform
	)

	// CommitsTotal tracks commit attempts by outcome.
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total commits",
		},
		[]string{"status"}, // success/error
	)

	// CommitLatency tracks end-to-end commit latency.
	CommitLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_latency_seconds",
			Help:      "Commit latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ConversionsTotal tracks create-path document conversions.
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Total document conversions",
		},
		[]string{"status"}, // success/error
	)
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveCommit records a commit and, on success, the writes it applied.
func ObserveCommit(latencySeconds float64, kinds []string, err error) {
	CommitsTotal.WithLabelValues(statusLabel(err)).Inc()
	CommitLatency.Observe(latencySeconds)
	if err != nil {
		return
	}
	for _, k := range kinds {
		WritesApplied.WithLabelValues(k).Inc()
	}
}

// ObserveConversion records a document conversion.
func ObserveConversion(err error) {
	ConversionsTotal.WithLabelValues(statusLabel(err)).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

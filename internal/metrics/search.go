package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "imgdex"

// Search outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeRejected    = "rejected"
	OutcomeBackendDown = "backend_error"
)

// Search and indexing metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by query mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	SearchBackendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_backend_duration_seconds",
			Help:      "Search backend round-trip duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	SearchResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results_returned",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	SearchOracleFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_oracle_fallbacks_total",
			Help:      "Searches that continued without an image embedding after an oracle failure",
		},
	)

	IndexerDocumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_documents_total",
			Help:      "Corpus images processed by the indexer",
		},
		[]string{"result"}, // "indexed" / "skipped" / "failed"
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers search and indexer metrics with the default registry.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(
			SearchRequestsTotal,
			SearchBackendDuration,
			SearchResultsReturned,
			SearchOracleFallbacksTotal,
			IndexerDocumentsTotal,
		)
	})
}

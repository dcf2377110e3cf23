package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Embedding oracle metrics.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of image embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Image embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model"},
	)

	EmbeddingErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_errors_total",
			Help:      "Total image embedding errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	EmbeddingImageBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_image_bytes",
			Help:      "Size of images sent to the embedding oracle",
			Buckets:   prometheus.ExponentialBuckets(16<<10, 2, 10),
		},
		[]string{"provider"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits, misses and errors",
		},
		[]string{"result"}, // "hit" / "miss" / "error"
	)
)

var registerEmbeddingOnce sync.Once

// RegisterEmbeddingMetrics registers embedding metrics with the default registry.
func RegisterEmbeddingMetrics() {
	registerEmbeddingOnce.Do(func() {
		prometheus.MustRegister(
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingErrorsTotal,
			EmbeddingImageBytes,
			EmbeddingCacheTotal,
		)
	})
}

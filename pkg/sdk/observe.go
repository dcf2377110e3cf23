package imgdex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/imgdex/internal/domain"
)

// Outcome classes recorded in the status label.
const (
	statusOK          = "ok"
	statusInvalid     = "invalid"
	statusUnavailable = "unavailable"
	statusError       = "error"
)

// classify maps an operation error to a low-cardinality status label.
func classify(err error) string {
	switch {
	case err == nil:
		return statusOK
	case errors.Is(err, domain.ErrEmptyQuery),
		errors.Is(err, domain.ErrInvalidTopK),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrVectorDimMismatch):
		return statusInvalid
	case errors.Is(err, domain.ErrBackendUnavailable),
		errors.Is(err, domain.ErrEmbeddingProviderError),
		errors.Is(err, context.DeadlineExceeded):
		return statusUnavailable
	default:
		return statusError
	}
}

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	fallbacks  prometheus.Counter
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	operations, err := reuseOrRegister(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imgdex",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK operations by operation and outcome class.",
	}, []string{"operation", "status"}))
	if err != nil {
		return nil, err
	}
	duration, err := reuseOrRegister(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imgdex",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK operation latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	fallbacks, err := reuseOrRegister(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "imgdex",
		Subsystem: "sdk",
		Name:      "embedding_fallbacks_total",
		Help:      "Searches that dropped the image because embedding failed.",
	}))
	if err != nil {
		return nil, err
	}
	return &sdkMetrics{operations: operations, duration: duration, fallbacks: fallbacks}, nil
}

// reuseOrRegister registers c, returning the already registered collector
// when several clients share one registry.
func reuseOrRegister[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("imgdex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("imgdex: metric registered with type %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer records SDK operations. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	obs := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		obs.metrics = m
	}
	return obs, nil
}

func (o *observer) observe(op string, start time.Time, err error, attrs ...slog.Attr) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	status := classify(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs = append(attrs,
		slog.String("op", op),
		slog.String("status", status),
		slog.Duration("duration", elapsed),
	)
	level := slog.LevelDebug
	msg := "imgdex operation"
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		level = slog.LevelWarn
		if status == statusInvalid {
			level = slog.LevelInfo
		}
	}
	o.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// embeddingFallback counts a search that ran on text alone after the
// embedder failed.
func (o *observer) embeddingFallback() {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.fallbacks.Inc()
}

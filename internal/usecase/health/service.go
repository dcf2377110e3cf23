package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed; searches still run.
	Degraded Status = "degraded"
	// Unhealthy indicates the search backend is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names reported in Report.Checks.
const (
	ComponentBackend   = "search_backend"
	ComponentEmbedding = "embedding"
	ComponentCache     = "cache"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	backend   BackendPinger
	embedding EmbeddingChecker
	cache     CachePinger
	timeout   time.Duration
}

// New creates a Service. embedding and cache can be nil.
func New(backend BackendPinger, embedding EmbeddingChecker, cache CachePinger) *Service {
	return &Service{backend: backend, embedding: embedding, cache: cache, timeout: DefaultCheckTimeout}
}

// WithTimeout overrides the per-component probe timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check probes all components concurrently. A backend failure makes the
// report Unhealthy; an oracle or cache failure only Degraded, since
// searches fall back to text without them.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, 3)
		g      errgroup.Group
	)

	probe := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[name] = res
			mu.Unlock()
			return nil
		})
	}

	probe(ComponentBackend, s.backend.Ping)
	if s.embedding != nil {
		probe(ComponentEmbedding, s.embedding.HealthCheck)
	}
	if s.cache != nil {
		probe(ComponentCache, s.cache.Ping)
	}
	_ = g.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == ComponentBackend {
			status = Unhealthy
			break
		}
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

package imgdex

import (
	"context"
	"maps"
	"slices"

	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
)

// HealthStatus is the aggregated view of the client's dependencies.
// Status is "ok", "degraded" or "error"; Checks maps a component name
// ("search_backend", "embedding") to "ok" or "error".
type HealthStatus struct {
	Status string
	Checks map[string]string
}

// Healthy reports whether searches can run. A degraded embedder still
// allows text-only searches.
func (h HealthStatus) Healthy() bool {
	return h.Status != string(healthuc.Unhealthy)
}

// Failed lists the components whose probe failed.
func (h HealthStatus) Failed() []string {
	var out []string
	for _, name := range slices.Sorted(maps.Keys(h.Checks)) {
		if h.Checks[name] != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	return out
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Health probes the search backend and, when the configured Embedder has a
// HealthCheck(ctx) error method, the embedder too.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	hs := HealthStatus{Status: string(report.Status), Checks: make(map[string]string, len(report.Checks))}
	for name, res := range report.Checks {
		hs.Checks[name] = string(res)
	}
	return hs
}

package health

import "context"

// BackendPinger checks search backend availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding oracle availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// CachePinger checks embedding cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

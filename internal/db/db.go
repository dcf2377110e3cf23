package db

import (
	"context"
	"fmt"
	"time"
)

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Waiter blocks until a backend answers or the timeout expires.
type Waiter interface {
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// KVStore provides simple key-value operations (embedding cache).
type KVStore interface {
	Pinger
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close()
}

// IndexManager provides search index lifecycle operations.
type IndexManager interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, definition []byte) error
}

// Searcher executes a rendered search request against an index.
type Searcher interface {
	Search(ctx context.Context, index string, body []byte) (*SearchResult, error)
}

// SearchStore is the facade the search backend implements.
type SearchStore interface {
	Pinger
	Waiter
	IndexManager
	Searcher
}

// PollReady calls p.Ping every interval until it succeeds or timeout
// expires. The first probe runs immediately.
func PollReady(ctx context.Context, p Pinger, timeout, interval time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = p.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("not ready after %s: %w (last error: %w)", timeout, ctx.Err(), lastErr)
		case <-ticker.C:
		}
	}
}

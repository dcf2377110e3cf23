package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/imgdex/internal/db"
)

// Compile-time check: Store implements db.KVStore.
var _ db.KVStore = (*Store)(nil)

// Config holds connection parameters for the embedding cache. Redis and
// Valkey speak the same protocol and are served by the same client.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// Standalone skips cluster topology discovery for a single node.
	Standalone bool
	// WriteTimeout bounds a single command write. Zero keeps the rueidis default.
	WriteTimeout time.Duration
}

// Store is the embedding cache backend.
type Store struct {
	client rueidis.Client
}

// NewStore creates a cache store. Client-side caching is disabled:
// cached vectors are read once per query image and never re-read hot.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:       cfg.Addrs,
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		ClientName:        "imgdex",
		ForceSingleClient: cfg.Standalone,
		ConnWriteTimeout:  cfg.WriteTimeout,
		DisableCache:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect cache %v: %w", cfg.Addrs, err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the cache responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if err := db.PollReady(ctx, s, timeout, 100*time.Millisecond); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return nil
}

// Package app assembles the components shared by the API server and the
// indexer from configuration.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/config"
	"github.com/kailas-cloud/imgdex/internal/corpus"
	dbElastic "github.com/kailas-cloud/imgdex/internal/db/elastic"
	dbRedis "github.com/kailas-cloud/imgdex/internal/db/redis"
	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/metrics"
	"github.com/kailas-cloud/imgdex/internal/repository/embcache"
	openaiEmb "github.com/kailas-cloud/imgdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/imgdex/internal/usecase/embedding"
)

// OpenSearchStore connects to Elasticsearch and waits until it answers.
func OpenSearchStore(ctx context.Context, cfg config.ElasticsearchConfig) (*dbElastic.Store, error) {
	store, err := dbElastic.NewStore(dbElastic.Config{
		Addrs:          cfg.Addrs,
		Username:       cfg.Username,
		Password:       cfg.Password,
		RequestTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeoutSec)*time.Second); err != nil {
		return nil, fmt.Errorf("elasticsearch not ready: %w", err)
	}
	return store, nil
}

// OpenCache connects to the embedding cache. It returns nil when the cache
// is disabled.
func OpenCache(ctx context.Context, cfg config.CacheConfig) (*dbRedis.Store, error) {
	if !cfg.Enabled {
		return nil, nil //nolint:nilnil // disabled cache is not an error
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Addrs,
		Password:   cfg.Password,
		Standalone: cfg.Standalone,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	if err := store.WaitForReady(ctx, 10*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	return store, nil
}

// Embedders holds the assembled oracle chain.
type Embedders struct {
	// Base talks to the oracle directly; used for health checks.
	Base *openaiEmb.Embedder
	// Chain is Base wrapped in the cache (if any) and instrumentation.
	Chain domain.Embedder
}

// BuildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// cache and limiter may be nil.
func BuildEmbedder(
	cfg config.EmbeddingConfig,
	cacheCfg config.CacheConfig,
	cache *dbRedis.Store,
	limiter embeddinguc.Limiter,
	logger *zap.Logger,
) Embedders {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if cache != nil {
		embedder = embcache.New(base, cache, logger,
			embcache.WithTTL(time.Duration(cacheCfg.TTLHours)*time.Hour),
			embcache.WithCounter(metrics.EmbeddingCacheTotal),
		)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, limiter, logger,
	)
	return Embedders{Base: base, Chain: embedder}
}

// OpenCorpus opens the configured corpus backend. The returned close
// function releases local resources and is never nil.
func OpenCorpus(cfg config.CorpusConfig) (corpus.Store, func() error, error) {
	switch cfg.Backend {
	case config.CorpusMinio:
		client, err := corpus.NewMinioClient(corpus.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			Prefix:    cfg.Minio.Prefix,
			Region:    cfg.Minio.Region,
			Secure:    cfg.Minio.Secure,
		})
		if err != nil {
			return nil, nil, err
		}
		return corpus.NewMinioStore(client, cfg.Minio.Bucket, cfg.Minio.Prefix), func() error { return nil }, nil
	case config.CorpusLocal, "":
		store, err := corpus.NewLocalStore(cfg.Root)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown corpus backend %q", cfg.Backend)
	}
}

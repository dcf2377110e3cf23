package imgdex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dbElastic "github.com/kailas-cloud/imgdex/internal/db/elastic"
	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	searchrepo "github.com/kailas-cloud/imgdex/internal/repository/search"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imgdex/internal/usecase/search"
)

const (
	defaultIndex            = "images"
	defaultReadinessTimeout = 10 * time.Second
)

// Internal interfaces, swapped for mocks in tests.
type searchUseCase interface {
	Search(ctx context.Context, in searchuc.Input) (searchuc.Outcome, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Client is the imgdex SDK entry point.
type Client struct {
	store     pinger
	searchSvc searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client and waits for Elasticsearch to answer.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		index:      defaultIndex,
		dimensions: domain.DefaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("imgdex: elasticsearch address required (use WithElasticsearch)")
	}

	store, err := dbElastic.NewStore(dbElastic.Config{
		Addrs:          cfg.addrs,
		Username:       cfg.username,
		Password:       cfg.password,
		RequestTimeout: cfg.requestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("imgdex: create elasticsearch store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		return nil, fmt.Errorf("imgdex: elasticsearch not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return wireClient(store, cfg, obs), nil
}

func wireClient(store *dbElastic.Store, cfg *clientConfig, obs *observer) *Client {
	var domEmb domain.Embedder = noopEmbedder{}
	var embChecker healthuc.EmbeddingChecker
	if cfg.embedder != nil {
		domEmb = &embedderAdapter{inner: cfg.embedder}
		if hc, ok := cfg.embedder.(healthuc.EmbeddingChecker); ok {
			embChecker = hc
		}
	}

	searchSvc := searchuc.New(
		searchrepo.New(store, cfg.index, nil),
		domEmb,
		searchuc.Config{
			DefaultTopK: cfg.defaultTopK,
			MaxTopK:     cfg.maxTopK,
			Dimensions:  cfg.dimensions,
		},
	)

	return &Client{
		store:     store,
		searchSvc: searchSvc,
		healthSvc: healthuc.New(store, embChecker, nil),
		obs:       obs,
	}
}

// Ping checks Elasticsearch connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search ranks the indexed images against q.
func (c *Client) Search(ctx context.Context, q Query) (res SearchResult, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("search", start, err,
			slog.Bool("has_image", len(q.Image) > 0),
			slog.String("mode", string(res.Mode)),
			slog.Int("hits", len(res.Hits)),
		)
	}()

	out, err := c.searchSvc.Search(ctx, searchuc.Input{
		Image:       q.Image,
		ContentType: q.ContentType,
		Text:        q.Text,
		TopK:        q.TopK,
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("search: %w", err)
	}
	if out.EmbeddingFailed {
		c.obs.embeddingFallback()
	}

	hits := make([]Hit, len(out.Results))
	for i := range out.Results {
		hits[i] = hitFromResult(&out.Results[i])
	}
	return SearchResult{
		Mode:            SearchMode(out.Mode),
		EmbeddingFailed: out.EmbeddingFailed,
		Hits:            hits,
	}, nil
}

func hitFromResult(r *result.Result) Hit {
	return Hit{
		Score:        r.Score(),
		ImageID:      r.ImageID(),
		ImageName:    r.ImageName(),
		RelativePath: r.RelativePath(),
		Tags:         r.Tags(),
	}
}

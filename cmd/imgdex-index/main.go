// Command imgdex-index embeds every image in the corpus and bulk-indexes
// the documents into Elasticsearch. Re-running it overwrites documents in
// place, since image ids derive from relative paths.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/app"
	"github.com/kailas-cloud/imgdex/internal/config"
	dbElastic "github.com/kailas-cloud/imgdex/internal/db/elastic"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
	"github.com/kailas-cloud/imgdex/internal/metrics"
	documentrepo "github.com/kailas-cloud/imgdex/internal/repository/document"
	embeddinguc "github.com/kailas-cloud/imgdex/internal/usecase/embedding"
	"github.com/kailas-cloud/imgdex/internal/usecase/indexing"
	"github.com/kailas-cloud/imgdex/internal/version"
)

func main() {
	var (
		manifestPath = flag.String("manifest", "", "YAML tag manifest (overrides indexer.tag_manifest)")
		workers      = flag.Int("workers", 0, "concurrent images (overrides indexer.workers)")
		metricsAddr  = flag.String("metrics-addr", "", "serve Prometheus metrics on this address while indexing")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*manifestPath, *workers, *metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, "imgdex-index:", err)
		os.Exit(1)
	}
}

func run(manifestPath string, workers int, metricsAddr string) error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if manifestPath != "" {
		cfg.Indexer.TagManifest = manifestPath
	}
	if workers > 0 {
		cfg.Indexer.Workers = workers
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting imgdex indexer",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.String("index", cfg.Elasticsearch.Index),
		zap.String("corpus_backend", cfg.Corpus.Backend),
		zap.Int("workers", cfg.Indexer.Workers),
		zap.Float64("rate_per_sec", cfg.Indexer.RatePerSec),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, logger)
		defer func() { _ = srv.Close() }()
	}

	manifest, err := indexing.LoadManifest(cfg.Indexer.TagManifest)
	if err != nil {
		return err
	}

	store, err := app.OpenSearchStore(ctx, cfg.Elasticsearch)
	if err != nil {
		return err
	}

	cache, err := app.OpenCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	corpusStore, closeCorpus, err := app.OpenCorpus(cfg.Corpus)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer func() { _ = closeCorpus() }()

	bulk, err := store.NewBulkWriter(dbElastic.BulkConfig{
		Index:         cfg.Elasticsearch.Index,
		Workers:       cfg.Indexer.Workers,
		FlushBytes:    cfg.Indexer.FlushBytes,
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("bulk writer: %w", err)
	}

	repo := documentrepo.New(store, bulk, documentrepo.Config{
		Index:      cfg.Elasticsearch.Index,
		Dimensions: cfg.Embedding.Dimensions,
		Shards:     cfg.Elasticsearch.Shards,
		Replicas:   cfg.Elasticsearch.ReplicasOrDefault(),
	})

	emb := app.BuildEmbedder(cfg.Embedding, cfg.Cache, cache,
		embeddinguc.NewLimiter(cfg.Indexer.RatePerSec), logger)

	svc := indexing.New(corpusStore, emb.Chain, repo, indexing.Config{
		Workers:       cfg.Indexer.Workers,
		MaxImageBytes: int64(cfg.Indexer.MaxImageMB) << 20,
		Manifest:      manifest,
	}, logger)

	report, err := svc.Run(ctx)
	logger.Info("Indexing report",
		zap.Int64("indexed", report.Indexed),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("failed", report.Failed),
		zap.Bool("index_created", report.IndexCreated),
		zap.Duration("duration", report.Duration),
	)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	fmt.Printf("indexed=%d skipped=%d failed=%d\n", report.Indexed, report.Skipped, report.Failed)
	return nil
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", zap.Error(err))
		}
	}()
	return srv
}

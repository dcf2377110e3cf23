package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/app"
	"github.com/kailas-cloud/imgdex/internal/config"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
	"github.com/kailas-cloud/imgdex/internal/metrics"
	searchrepo "github.com/kailas-cloud/imgdex/internal/repository/search"
	chiTransport "github.com/kailas-cloud/imgdex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imgdex/internal/usecase/search"
	"github.com/kailas-cloud/imgdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting imgdex API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("es_addrs", cfg.Elasticsearch.Addrs),
		zap.String("index", cfg.Elasticsearch.Index),
		zap.String("corpus_backend", cfg.Corpus.Backend),
	)

	ctx := context.Background()

	store, err := app.OpenSearchStore(ctx, cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Search backend unavailable", zap.Error(err))
	}
	logger.Info("Connected to Elasticsearch")

	cache, err := app.OpenCache(ctx, cfg.Cache)
	if err != nil {
		logger.Fatal("Embedding cache unavailable", zap.Error(err))
	}
	if cache != nil {
		defer cache.Close()
		logger.Info("Connected to embedding cache")
	}

	corpusStore, closeCorpus, err := app.OpenCorpus(cfg.Corpus)
	if err != nil {
		logger.Fatal("Failed to open corpus", zap.Error(err))
	}
	defer func() { _ = closeCorpus() }()

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	// Queries are not paced; the limiter only guards bulk indexing.
	emb := app.BuildEmbedder(cfg.Embedding, cfg.Cache, cache, nil, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	searchSvc := searchuc.New(
		searchrepo.New(store, cfg.Elasticsearch.Index, nil),
		emb.Chain,
		searchuc.Config{
			DefaultTopK:   cfg.Search.DefaultTopK,
			MaxTopK:       cfg.Search.MaxTopK,
			MaxTextLength: cfg.Search.MaxTextLength,
			MaxImageBytes: cfg.Search.MaxImageMB << 20,
			Dimensions:    cfg.Embedding.Dimensions,
		},
	)

	// Pass a nil interface, not a typed nil pointer, when the cache is off.
	var cachePinger healthuc.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	healthSvc := healthuc.New(store, emb.Base, cachePinger)

	server := chiTransport.NewServer(searchSvc, healthSvc, corpusStore, logger,
		chiTransport.WithMaxUploadBytes(int64(cfg.HTTP.MaxUploadMB)<<20),
	)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys: cfg.Auth.APIKeys,
		Logger:  logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

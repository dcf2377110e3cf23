package indexing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/imgdex/internal/domain"
	domdoc "github.com/kailas-cloud/imgdex/internal/domain/document"
	"github.com/kailas-cloud/imgdex/internal/metrics"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultWorkers       = 4
	DefaultMaxImageBytes = 20 << 20
)

// Config tunes an indexing run.
type Config struct {
	Workers       int
	MaxImageBytes int64
	Manifest      Manifest
}

// Report summarizes an indexing run.
type Report struct {
	Indexed      int64
	Skipped      int64
	Failed       int64
	IndexCreated bool
	Duration     time.Duration
}

// Service builds the search index from the corpus.
type Service struct {
	corpus Corpus
	embed  Embedder
	repo   Repository
	cfg    Config
	logger *zap.Logger
}

// New creates an indexing service.
func New(c Corpus, embed Embedder, repo Repository, cfg Config, logger *zap.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.Manifest == nil {
		cfg.Manifest = Manifest{}
	}
	return &Service{corpus: c, embed: embed, repo: repo, cfg: cfg, logger: logger}
}

// ImageID returns the stable document ID for a corpus path, so
// re-indexing the same corpus overwrites rather than duplicates.
func ImageID(rel string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rel)).String()
}

// Run embeds every corpus image and bulk-indexes it. A single image that
// cannot be read, embedded or written is counted as failed and never
// aborts the run; only corpus listing, index setup and cancellation do.
func (s *Service) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var rep Report

	created, err := s.repo.EnsureIndex(ctx)
	if err != nil {
		return rep, fmt.Errorf("ensure index: %w", err)
	}
	rep.IndexCreated = created

	var indexed, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	walkErr := s.corpus.Walk(gctx, func(rel string) error {
		g.Go(func() error {
			switch err := s.indexOne(gctx, rel, &indexed, &failed); {
			case errors.Is(err, errSkip):
				skipped.Add(1)
				metrics.IndexerDocumentsTotal.WithLabelValues("skipped").Inc()
			case err != nil:
				failed.Add(1)
				metrics.IndexerDocumentsTotal.WithLabelValues("failed").Inc()
				s.logger.Warn("Image not indexed", zap.String("relative_path", rel), zap.Error(err))
			}
			return gctx.Err()
		})
		return nil
	})
	waitErr := g.Wait()

	// Drain whatever was queued, even after cancellation.
	stats, flushErr := s.repo.Flush(context.WithoutCancel(ctx))
	rep.Indexed = indexed.Load()
	rep.Skipped = skipped.Load()
	rep.Failed = failed.Load()
	rep.Duration = time.Since(start)

	s.logger.Info("Indexing finished",
		zap.Int64("indexed", rep.Indexed),
		zap.Int64("skipped", rep.Skipped),
		zap.Int64("failed", rep.Failed),
		zap.Uint64("bulk_indexed", stats.Indexed),
		zap.Uint64("bulk_failed", stats.Failed),
		zap.Duration("duration", rep.Duration),
	)

	switch {
	case walkErr != nil:
		return rep, fmt.Errorf("walk corpus: %w", walkErr)
	case waitErr != nil:
		return rep, fmt.Errorf("index corpus: %w", waitErr)
	case flushErr != nil:
		return rep, fmt.Errorf("flush: %w", flushErr)
	}
	return rep, nil
}

var errSkip = errors.New("skipped")

// indexOne reads, embeds and queues one image. The bulk outcome is
// reported asynchronously through the indexed/failed counters.
func (s *Service) indexOne(ctx context.Context, rel string, indexed, failed *atomic.Int64) error {
	data, contentType, err := s.read(ctx, rel)
	if err != nil {
		return err
	}

	res, err := s.embed.Embed(ctx, domain.Image{Data: data, ContentType: contentType})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	doc, err := domdoc.New(ImageID(rel), rel, s.cfg.Manifest.TagsFor(rel), res.Embedding)
	if err != nil {
		return fmt.Errorf("build document: %w", err)
	}

	err = s.repo.Put(ctx, &doc, func(err error) {
		if err != nil {
			failed.Add(1)
			metrics.IndexerDocumentsTotal.WithLabelValues("failed").Inc()
			s.logger.Warn("Bulk write failed", zap.String("relative_path", rel), zap.Error(err))
			return
		}
		indexed.Add(1)
		metrics.IndexerDocumentsTotal.WithLabelValues("indexed").Inc()
	})
	if err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	return nil
}

func (s *Service) read(ctx context.Context, rel string) ([]byte, string, error) {
	rc, info, err := s.corpus.Open(ctx, rel)
	if err != nil {
		return nil, "", fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	if info.Size == 0 || info.Size > s.cfg.MaxImageBytes {
		s.logger.Debug("Skipping image", zap.String("relative_path", rel), zap.Int64("size", info.Size))
		return nil, "", errSkip
	}

	data, err := io.ReadAll(io.LimitReader(rc, s.cfg.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxImageBytes {
		return nil, "", errSkip
	}
	return data, info.ContentType, nil
}

package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/imgdex/internal/domain"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
)

// Limiter paces oracle calls. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter returns a limiter allowing perSecond calls with a burst of one.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64) Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// InstrumentedEmbedder wraps an Embedder with pacing and logging. Log lines
// go to the request logger in ctx when there is one.
// Transport metrics (requests, duration, errors) are recorded in transport/openai.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	limiter  Limiter
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder. limiter may be nil.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	limiter Limiter, logger *zap.Logger,
) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		limiter:  limiter,
		logger:   logger,
	}
}

// Embed waits for the limiter, then delegates to the inner embedder.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, img domain.Image,
) (domain.EmbeddingResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()

	result, err := p.inner.Embed(ctx, img)

	duration := time.Since(start)
	log := logpkg.FromContextOr(ctx, p.logger)

	if err != nil {
		log.Error("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("image_bytes", len(img.Data)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	log.Debug("Embedding request completed",
		zap.String("provider", p.provider),
		zap.String("model", p.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Bool("cached", result.Cached),
	)

	return result, nil
}

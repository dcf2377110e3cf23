package imgdex

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/imgdex/internal/domain"
)

// Embedder maps an image to its feature vector. Vectors are L2-normalized
// by the client, so implementations may return raw model output.
type Embedder interface {
	Embed(ctx context.Context, image []byte, contentType string) ([]float32, error)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, img domain.Image) (domain.EmbeddingResult, error) {
	v, err := a.inner.Embed(ctx, img.Data, img.ContentType)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	if len(v) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: empty vector", domain.ErrEmbeddingProviderError)
	}
	return domain.EmbeddingResult{Embedding: domain.Normalize(v)}, nil
}

// noopEmbedder fails every call, so image queries degrade to text.
type noopEmbedder struct{}

func (noopEmbedder) Embed(context.Context, domain.Image) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError,
		errors.New("imgdex: embedder not configured (use WithEmbedder for image queries)"))
}

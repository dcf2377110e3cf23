package search

import (
	"context"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
)

// Repository executes ranked retrieval against the search backend.
type Repository interface {
	Search(ctx context.Context, embedding domain.Embedding, text string, topK int) ([]result.Result, error)
}

// Embedder is the image embedding oracle.
type Embedder interface {
	Embed(ctx context.Context, img domain.Image) (domain.EmbeddingResult, error)
}

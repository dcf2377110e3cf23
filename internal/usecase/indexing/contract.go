package indexing

import (
	"context"
	"io"

	"github.com/kailas-cloud/imgdex/internal/corpus"
	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain"
	domdoc "github.com/kailas-cloud/imgdex/internal/domain/document"
)

// Corpus enumerates and reads corpus images.
type Corpus interface {
	Open(ctx context.Context, relPath string) (io.ReadCloser, corpus.Info, error)
	Walk(ctx context.Context, fn corpus.WalkFunc) error
}

// Embedder is the image embedding oracle.
type Embedder interface {
	Embed(ctx context.Context, img domain.Image) (domain.EmbeddingResult, error)
}

// Repository writes documents into the search index.
type Repository interface {
	EnsureIndex(ctx context.Context) (created bool, err error)
	Put(ctx context.Context, doc *domdoc.Document, onDone func(err error)) error
	Flush(ctx context.Context) (db.BulkStats, error)
}

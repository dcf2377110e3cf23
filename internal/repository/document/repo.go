package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain"
	domdoc "github.com/kailas-cloud/imgdex/internal/domain/document"
)

// store is the consumer interface for index lifecycle (ISP).
type store interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, definition []byte) error
}

// writer is the consumer interface for batched document writes (ISP).
type writer interface {
	Index(ctx context.Context, id string, body []byte, onDone func(err error)) error
	Close(ctx context.Context) (db.BulkStats, error)
}

// Config describes the target index.
type Config struct {
	Index      string
	Dimensions int
	Shards     int
	// Replicas < 0 leaves the cluster default.
	Replicas int
}

// Repo writes corpus documents into the search index.
type Repo struct {
	store  store
	writer writer
	cfg    Config
}

// New creates a document repository.
func New(s store, w writer, cfg Config) *Repo {
	return &Repo{store: s, writer: w, cfg: cfg}
}

// EnsureIndex creates the index with the corpus mapping unless it already
// exists. Returns true if the index was created.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	if r.cfg.Dimensions <= 0 {
		return false, fmt.Errorf("index dimensions must be positive: %w", domain.ErrInvalidInput)
	}

	exists, err := r.store.IndexExists(ctx, r.cfg.Index)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", r.cfg.Index, err)
	}
	if exists {
		return false, nil
	}

	def, err := json.Marshal(mapping(r.cfg.Dimensions, r.cfg.Shards, r.cfg.Replicas))
	if err != nil {
		return false, fmt.Errorf("marshal index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, r.cfg.Index, def); err != nil {
		// Lost a creation race with another indexer.
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create index %s: %w", r.cfg.Index, err)
	}
	return true, nil
}

// Put queues a document for indexing. The embedding dimension must
// match the index. onDone reports the per-document outcome.
func (r *Repo) Put(ctx context.Context, doc *domdoc.Document, onDone func(err error)) error {
	if got := doc.Embedding().Dim(); got != r.cfg.Dimensions {
		return domain.NewDimensionError(got, r.cfg.Dimensions)
	}

	data, err := json.Marshal(toJSON(doc))
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ImageID(), err)
	}

	if err := r.writer.Index(ctx, doc.ImageID(), data, onDone); err != nil {
		return fmt.Errorf("queue document %s: %w", doc.ImageID(), err)
	}
	return nil
}

// Flush drains queued documents and returns the bulk statistics.
func (r *Repo) Flush(ctx context.Context) (db.BulkStats, error) {
	stats, err := r.writer.Close(ctx)
	if err != nil {
		return stats, fmt.Errorf("flush %s: %w", r.cfg.Index, err)
	}
	return stats, nil
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/query"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	"github.com/kailas-cloud/imgdex/internal/metrics"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	Search(ctx context.Context, index string, body []byte) (*db.SearchResult, error)
}

// Repo implements usecase/search.Repository on top of the search backend.
type Repo struct {
	store   store
	index   string
	builder *query.Builder
}

// New creates a search repository bound to a single index.
func New(s store, index string, builder *query.Builder) *Repo {
	if builder == nil {
		builder = query.NewBuilder()
	}
	return &Repo{store: s, index: index, builder: builder}
}

// Search builds the ranked-retrieval request for (embedding, text, topK),
// executes it and assembles at most topK results in backend order.
// Build errors are returned unwrapped; any backend failure wraps
// domain.ErrBackendUnavailable.
func (r *Repo) Search(ctx context.Context, embedding domain.Embedding, text string, topK int) ([]result.Result, error) {
	req, err := r.builder.Build(embedding, text, topK)
	if err != nil {
		return nil, err //nolint:wrapcheck // domain validation error
	}

	typed, err := toSearchRequest(req)
	if err != nil {
		return nil, fmt.Errorf("render search request: %w", err)
	}
	body, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	start := time.Now()
	sr, err := r.store.Search(ctx, r.index, body)
	metrics.SearchBackendDuration.WithLabelValues(string(req.Mode())).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search %s: %w: %w", r.index, domain.ErrBackendUnavailable, err)
	}

	hits, err := parseHits(sr)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w: %w", r.index, domain.ErrBackendUnavailable, err)
	}

	return result.Assemble(hits, topK), nil
}

// parseHits decodes the projected _source of every hit.
func parseHits(sr *db.SearchResult) ([]result.Hit, error) {
	if sr == nil || len(sr.Hits) == 0 {
		return nil, nil
	}

	hits := make([]result.Hit, 0, len(sr.Hits))
	for _, h := range sr.Hits {
		var src hitSource
		if len(h.Source) > 0 {
			if err := json.Unmarshal(h.Source, &src); err != nil {
				return nil, fmt.Errorf("decode hit %s: %w", h.ID, err)
			}
		}
		hits = append(hits, src.toHit(h.ID, h.Score))
	}
	return hits, nil
}

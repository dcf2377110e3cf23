package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchFn func(ctx context.Context, index string, body []byte) (*db.SearchResult, error)
	calls    int
}

func (m *mockStore) Search(ctx context.Context, index string, body []byte) (*db.SearchResult, error) {
	m.calls++
	if m.searchFn != nil {
		return m.searchFn(ctx, index, body)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "images", nil), ms
}

func hit(t *testing.T, id string, score float64, src map[string]any) db.SearchHit {
	t.Helper()
	raw, err := json.Marshal(src)
	if err != nil {
		t.Fatalf("marshal source: %v", err)
	}
	return db.SearchHit{ID: id, Score: score, Source: raw}
}

package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/imgdex/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	existsFn func(ctx context.Context, name string) (bool, error)
	createFn func(ctx context.Context, name string, def []byte) error
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, name string, def []byte) error {
	if m.createFn != nil {
		return m.createFn(ctx, name, def)
	}
	return nil
}

type queued struct {
	id   string
	body []byte
}

// mockWriter records queued documents and acknowledges them on Close.
type mockWriter struct {
	items   []queued
	dones   []func(error)
	indexFn func(id string) error
	closed  bool
}

func (m *mockWriter) Index(_ context.Context, id string, body []byte, onDone func(error)) error {
	if m.indexFn != nil {
		if err := m.indexFn(id); err != nil {
			return err
		}
	}
	m.items = append(m.items, queued{id: id, body: body})
	m.dones = append(m.dones, onDone)
	return nil
}

func (m *mockWriter) Close(context.Context) (db.BulkStats, error) {
	m.closed = true
	for _, done := range m.dones {
		if done != nil {
			done(nil)
		}
	}
	return db.BulkStats{Indexed: uint64(len(m.items))}, nil
}

func newTestRepo(t *testing.T, dims int) (*Repo, *mockStore, *mockWriter) {
	t.Helper()
	ms := &mockStore{}
	mw := &mockWriter{}
	return New(ms, mw, Config{Index: "images", Dimensions: dims, Replicas: -1}), ms, mw
}

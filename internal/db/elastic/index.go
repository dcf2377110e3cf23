package elastic

import (
	"bytes"
	"context"
	"net/http"

	"github.com/kailas-cloud/imgdex/internal/db"
)

// IndexExists reports whether the index exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := s.client.Indices.Exists(
		[]string{name},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, &db.Error{Op: db.OpIndexExists, Err: err}
	}
	defer closeBody(res)

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, responseError(db.OpIndexExists, res)
	}
}

// CreateIndex creates an index from a settings+mappings definition.
// Returns db.ErrIndexExists (wrapped) if it is already there.
func (s *Store) CreateIndex(ctx context.Context, name string, definition []byte) error {
	res, err := s.client.Indices.Create(
		name,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(bytes.NewReader(definition)),
	)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return responseError(db.OpCreateIndex, res)
	}
	return nil
}

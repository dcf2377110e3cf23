package elastic

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/kailas-cloud/imgdex/internal/db"
)

// BulkConfig tunes the bulk writer.
type BulkConfig struct {
	Index         string
	Workers       int
	FlushBytes    int
	FlushInterval time.Duration
}

// BulkWriter streams documents into an index in batches.
type BulkWriter struct {
	bi esutil.BulkIndexer
}

// NewBulkWriter creates a bulk writer bound to a single index.
func (s *Store) NewBulkWriter(cfg BulkConfig) (*BulkWriter, error) {
	if cfg.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        s.client,
		Index:         cfg.Index,
		NumWorkers:    cfg.Workers,
		FlushBytes:    cfg.FlushBytes,
		FlushInterval: cfg.FlushInterval,
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}
	return &BulkWriter{bi: bi}, nil
}

// Index queues a document for indexing under id. onDone is called once the
// item is acknowledged, with a nil error on success.
func (w *BulkWriter) Index(ctx context.Context, id string, body []byte, onDone func(err error)) error {
	item := esutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: id,
		Body:       bytes.NewReader(body),
		OnSuccess: func(_ context.Context, _ esutil.BulkIndexerItem, _ esutil.BulkIndexerResponseItem) {
			if onDone != nil {
				onDone(nil)
			}
		},
		OnFailure: func(_ context.Context, _ esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			if onDone == nil {
				return
			}
			if err == nil {
				err = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
			}
			onDone(&db.Error{Op: db.OpBulk, Err: err})
		},
	}
	if err := w.bi.Add(ctx, item); err != nil {
		return &db.Error{Op: db.OpBulk, Err: err}
	}
	return nil
}

// Close flushes pending items and returns the run statistics.
func (w *BulkWriter) Close(ctx context.Context) (db.BulkStats, error) {
	err := w.bi.Close(ctx)
	st := w.bi.Stats()
	stats := db.BulkStats{Indexed: st.NumIndexed, Failed: st.NumFailed}
	if err != nil {
		return stats, &db.Error{Op: db.OpBulk, Err: err}
	}
	return stats, nil
}

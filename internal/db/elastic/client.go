package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kailas-cloud/imgdex/internal/db"
)

// Compile-time check: Store implements db.SearchStore.
var _ db.SearchStore = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addrs          []string
	Username       string
	Password       string
	RequestTimeout time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Store is the search backend over the Elasticsearch REST API.
type Store struct {
	client *elasticsearch.Client
}

// NewStore creates an Elasticsearch store. Retries are disabled: a failed
// request surfaces to the caller immediately.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.RequestTimeout > 0 {
			t.ResponseHeaderTimeout = cfg.RequestTimeout
		}
		transport = t
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Transport:    transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return &db.Error{Op: db.OpPing, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	return nil
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	if err := db.PollReady(ctx, s, timeout, 250*time.Millisecond); err != nil {
		return fmt.Errorf("elasticsearch: %w", err)
	}
	return nil
}

// errorResponse is the Elasticsearch error envelope.
type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// responseError converts a non-2xx response into an error, mapping
// index_not_found_exception to db.ErrIndexNotFound.
func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))

	var parsed errorResponse
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Type != "" {
		switch parsed.Error.Type {
		case "index_not_found_exception":
			return &db.Error{Op: op, Err: fmt.Errorf("%w: %s", db.ErrIndexNotFound, parsed.Error.Reason)}
		case "resource_already_exists_exception":
			return &db.Error{Op: op, Err: fmt.Errorf("%w: %s", db.ErrIndexExists, parsed.Error.Reason)}
		}
		return &db.Error{Op: op, Err: fmt.Errorf("status %d: %s: %s", res.StatusCode, parsed.Error.Type, parsed.Error.Reason)}
	}
	return &db.Error{Op: op, Err: fmt.Errorf("status %d: %s", res.StatusCode, string(body))}
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}

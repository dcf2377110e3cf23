package imgdex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/mode"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imgdex/internal/usecase/search"
)

type mockEmbedder struct {
	fn func(ctx context.Context, image []byte, contentType string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, image []byte, contentType string) ([]float32, error) {
	return m.fn(ctx, image, contentType)
}

type mockSearchUC struct {
	searchFn func(ctx context.Context, in searchuc.Input) (searchuc.Outcome, error)
}

func (m *mockSearchUC) Search(ctx context.Context, in searchuc.Input) (searchuc.Outcome, error) {
	return m.searchFn(ctx, in)
}

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

type mockPinger struct{ err error }

func (m *mockPinger) Ping(context.Context) error { return m.err }

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestNoopEmbedder(t *testing.T) {
	_, err := noopEmbedder{}.Embed(context.Background(), domain.Image{Data: []byte("x")})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEmbedderAdapter_Normalizes(t *testing.T) {
	var gotType string
	adapter := &embedderAdapter{inner: &mockEmbedder{
		fn: func(_ context.Context, image []byte, contentType string) ([]float32, error) {
			gotType = contentType
			return []float32{3, 4}, nil
		},
	}}

	res, err := adapter.Embed(context.Background(), domain.Image{Data: []byte("img"), ContentType: "image/png"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotType != "image/png" {
		t.Errorf("content type = %q, want image/png", gotType)
	}
	if math.Abs(float64(res.Embedding[0])-0.6) > 1e-6 || math.Abs(float64(res.Embedding[1])-0.8) > 1e-6 {
		t.Errorf("embedding = %v, want [0.6 0.8]", res.Embedding)
	}
}

func TestEmbedderAdapter_Errors(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		err  error
	}{
		{"provider error", nil, errors.New("provider down")},
		{"empty vector", []float32{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &embedderAdapter{inner: &mockEmbedder{
				fn: func(context.Context, []byte, string) ([]float32, error) { return tt.vec, tt.err },
			}}
			_, err := adapter.Embed(context.Background(), domain.Image{Data: []byte("img")})
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Fatalf("expected provider error, got %v", err)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithElasticsearch("http://es1:9200", "http://es2:9200").apply(cfg)
	if len(cfg.addrs) != 2 || cfg.addrs[1] != "http://es2:9200" {
		t.Errorf("addrs = %v", cfg.addrs)
	}

	WithBasicAuth("elastic", "secret").apply(cfg)
	if cfg.username != "elastic" || cfg.password != "secret" {
		t.Errorf("auth = (%q, %q)", cfg.username, cfg.password)
	}

	WithIndex("photos").apply(cfg)
	if cfg.index != "photos" {
		t.Errorf("index = %q, want photos", cfg.index)
	}

	WithRequestTimeout(3 * time.Second).apply(cfg)
	if cfg.requestTimeout != 3*time.Second {
		t.Errorf("requestTimeout = %v", cfg.requestTimeout)
	}

	WithDimensions(512).apply(cfg)
	if cfg.dimensions != 512 {
		t.Errorf("dimensions = %d, want 512", cfg.dimensions)
	}

	WithTopK(10, 100).apply(cfg)
	if cfg.defaultTopK != 10 || cfg.maxTopK != 100 {
		t.Errorf("topK = (%d, %d), want (10, 100)", cfg.defaultTopK, cfg.maxTopK)
	}

	logger := slog.Default()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}

	WithEmbedder(&mockEmbedder{}).apply(cfg)
	if cfg.embedder == nil {
		t.Error("expected non-nil embedder")
	}
}

func TestClient_Search(t *testing.T) {
	var got searchuc.Input
	c := &Client{
		searchSvc: &mockSearchUC{searchFn: func(_ context.Context, in searchuc.Input) (searchuc.Outcome, error) {
			got = in
			return searchuc.Outcome{
				Mode:            mode.Text,
				EmbeddingFailed: true,
				Results: []result.Result{
					result.New(2.5, "id-1", "a.jpg", "beach/a.jpg", []string{"beach"}),
					result.New(1.5, "id-2", "b.jpg", "beach/b.jpg", nil),
				},
			}, nil
		}},
	}

	res, err := c.Search(context.Background(), Query{Image: []byte("img"), ContentType: "image/jpeg", Text: "beach", TopK: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got.Text != "beach" || got.TopK != 2 || string(got.Image) != "img" || got.ContentType != "image/jpeg" {
		t.Errorf("input = %+v", got)
	}
	if res.Mode != ModeText || !res.EmbeddingFailed {
		t.Errorf("result = %+v", res)
	}
	if len(res.Hits) != 2 || res.Hits[0].RelativePath != "beach/a.jpg" || res.Hits[0].Score != 2.5 {
		t.Fatalf("hits = %+v", res.Hits)
	}
	if res.Hits[1].Tags == nil {
		t.Error("tags must never be nil")
	}
}

func TestClient_SearchError(t *testing.T) {
	c := &Client{
		searchSvc: &mockSearchUC{searchFn: func(context.Context, searchuc.Input) (searchuc.Outcome, error) {
			return searchuc.Outcome{}, domain.ErrEmptyQuery
		}},
	}

	_, err := c.Search(context.Background(), Query{})
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestClient_PingAndHealth(t *testing.T) {
	c := &Client{
		store: &mockPinger{err: errors.New("down")},
		healthSvc: &mockHealthUC{report: healthuc.Report{
			Status: healthuc.Unhealthy,
			Checks: map[string]healthuc.CheckResult{healthuc.ComponentBackend: healthuc.CheckError},
		}},
	}

	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	h := c.Health(context.Background())
	if h.Status != "error" || h.Checks["search_backend"] != "error" {
		t.Errorf("health = %+v", h)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, statusOK},
		{fmt.Errorf("search: %w", domain.ErrEmptyQuery), statusInvalid},
		{domain.ErrInvalidTopK, statusInvalid},
		{domain.ErrVectorDimMismatch, statusInvalid},
		{fmt.Errorf("x: %w", domain.ErrBackendUnavailable), statusUnavailable},
		{context.DeadlineExceeded, statusUnavailable},
		{errors.New("boom"), statusError},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("search", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("search", time.Now(), domain.ErrEmptyQuery)
	obs.observe("search", time.Now(), errors.New("fail"))
	obs.embeddingFallback()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	statuses := map[string]bool{}
	var fallbacks float64
	for _, f := range families {
		switch f.GetName() {
		case "imgdex_sdk_operations_total":
			for _, m := range f.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "status" {
						statuses[l.GetValue()] = true
					}
				}
			}
		case "imgdex_sdk_embedding_fallbacks_total":
			fallbacks = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	for _, s := range []string{statusOK, statusInvalid, statusError} {
		if !statuses[s] {
			t.Errorf("missing status %q in %v", s, statuses)
		}
	}
	if fallbacks != 1 {
		t.Errorf("fallbacks = %v, want 1", fallbacks)
	}
}

func TestClient_SearchCountsFallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	c := &Client{
		obs: obs,
		searchSvc: &mockSearchUC{searchFn: func(context.Context, searchuc.Input) (searchuc.Outcome, error) {
			return searchuc.Outcome{Mode: mode.Text, EmbeddingFailed: true}, nil
		}},
	}
	if _, err := c.Search(context.Background(), Query{Image: []byte("x"), Text: "cat"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := testutil.ToFloat64(obs.metrics.fallbacks); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
}

func TestHealthStatus_Helpers(t *testing.T) {
	h := HealthStatus{Status: "degraded", Checks: map[string]string{
		"search_backend": "ok",
		"embedding":      "error",
	}}
	if !h.Healthy() {
		t.Error("degraded must still be healthy")
	}
	if got := h.Failed(); len(got) != 1 || got[0] != "embedding" {
		t.Errorf("Failed() = %v", got)
	}
	if (HealthStatus{Status: "error"}).Healthy() {
		t.Error("error status must not be healthy")
	}
}

func TestObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver must reuse collectors: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"))
}

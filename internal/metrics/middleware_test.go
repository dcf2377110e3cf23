package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/images/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, p := range []string{"/images/cats/a.jpg", "/images/dogs/b.png"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, http.NoBody))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status %d", p, rr.Code)
		}
	}

	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/images/*", "200"))
	if got < 2 {
		t.Errorf("expected both image requests under one label, got %f", got)
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected duration observations")
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/search", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("case") {
		case "bad":
			w.WriteHeader(http.StatusBadRequest)
		case "down":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	})

	tests := []struct {
		query  string
		status string
	}{
		{"", "200"},
		{"bad", "400"},
		{"down", "503"},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/search", tc.status))
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/search?case="+tc.query, http.NoBody))
			after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/search", tc.status))
			if after-before != 1 {
				t.Errorf("status %s: delta = %f, want 1", tc.status, after-before)
			}
		})
	}
}

func TestMiddleware_SkipPaths(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware("/metrics"))
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# scrape"))
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/metrics", "200"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Fatalf("skipped route must still be served, got %d", rr.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/metrics", "200"))
	if after != before {
		t.Errorf("skipped path was recorded: %f -> %f", before, after)
	}
}

func TestMiddleware_InFlightReturnsToZero(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		if v := testutil.ToFloat64(httpInFlight); v < 1 {
			t.Errorf("in-flight during request = %f", v)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", http.NoBody))
	if v := testutil.ToFloat64(httpInFlight); v != 0 {
		t.Errorf("in-flight after request = %f", v)
	}
}

func TestMiddleware_WithoutRouter(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/raw", http.NoBody))

	if v := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unknown", "418")); v < 1 {
		t.Errorf("expected unknown path label, got %f", v)
	}
}

func TestRouteLabel(t *testing.T) {
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/x", http.NoBody)); got != "unknown" {
		t.Errorf("routeLabel without router = %q, want unknown", got)
	}

	var got string
	r := chi.NewRouter()
	r.Get("/search", func(_ http.ResponseWriter, r *http.Request) { got = routeLabel(r) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/search?text=cat", http.NoBody))
	if got != "/search" {
		t.Errorf("routeLabel = %q, want /search", got)
	}
}

func TestMiddleware_ResponseBytes(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/blob", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blob", http.NoBody))

	if n := testutil.CollectAndCount(httpResponseBytes); n == 0 {
		t.Error("expected response size observations")
	}
}

func TestRegisterMetrics_Idempotent(t *testing.T) {
	RegisterEmbeddingMetrics()
	RegisterEmbeddingMetrics()
	RegisterSearchMetrics()
	RegisterSearchMetrics()

	SearchRequestsTotal.WithLabelValues("hybrid", OutcomeOK).Inc()
	if v := testutil.ToFloat64(SearchRequestsTotal.WithLabelValues("hybrid", OutcomeOK)); v < 1 {
		t.Errorf("search counter = %f", v)
	}
	EmbeddingCacheTotal.WithLabelValues("hit").Inc()
	if v := testutil.ToFloat64(EmbeddingCacheTotal.WithLabelValues("hit")); v < 1 {
		t.Errorf("cache counter = %f", v)
	}
}

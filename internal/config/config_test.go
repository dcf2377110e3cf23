package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:          HTTPConfig{Port: 8080},
		Elasticsearch: ElasticsearchConfig{Addrs: []string{"http://localhost:9200"}},
		Embedding:     EmbeddingConfig{BaseURL: "http://localhost:8000/v1", Model: "vgg16-fc1"},
		Corpus:        CorpusConfig{Root: "./data/images"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"missing es addrs", func(c *Config) { c.Elasticsearch.Addrs = nil }, "elasticsearch.addrs"},
		{"negative replicas", func(c *Config) { r := -1; c.Elasticsearch.Replicas = &r }, "elasticsearch.replicas"},
		{"missing base url", func(c *Config) { c.Embedding.BaseURL = "" }, "embedding.base_url"},
		{"missing model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"cache without addrs", func(c *Config) { c.Cache.Enabled = true }, "cache.addrs"},
		{"negative ttl", func(c *Config) { c.Cache.TTLHours = -1 }, "cache.ttl_hours"},
		{"local without root", func(c *Config) { c.Corpus.Root = "" }, "corpus.root"},
		{"minio without bucket", func(c *Config) {
			c.Corpus.Backend = CorpusMinio
			c.Corpus.Minio.Endpoint = "localhost:9000"
		}, "corpus.minio"},
		{"unknown backend", func(c *Config) { c.Corpus.Backend = "ftp" }, "corpus.backend"},
		{"default above max", func(c *Config) { c.Search.DefaultTopK = 60 }, "search.default_top_k"},
		{"negative rate", func(c *Config) { c.Indexer.RatePerSec = -1 }, "indexer.rate_per_sec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_MinioBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Corpus = CorpusConfig{
		Backend: CorpusMinio,
		Minio:   MinioConfig{Endpoint: "localhost:9000", Bucket: "images"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("ReadTimeoutSec = %d, want 10", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.MaxUploadMB != 11 {
		t.Errorf("MaxUploadMB = %d, want 11", cfg.HTTP.MaxUploadMB)
	}
	if cfg.Elasticsearch.Index != "images" {
		t.Errorf("Index = %q, want images", cfg.Elasticsearch.Index)
	}
	if cfg.Elasticsearch.ReadinessTimeoutSec != 30 {
		t.Errorf("ReadinessTimeoutSec = %d, want 30", cfg.Elasticsearch.ReadinessTimeoutSec)
	}
	if cfg.Embedding.Dimensions != 4096 {
		t.Errorf("Dimensions = %d, want 4096", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Embedding.Provider)
	}
	if cfg.Corpus.Backend != CorpusLocal {
		t.Errorf("Backend = %q, want local", cfg.Corpus.Backend)
	}
	if cfg.Search.DefaultTopK != 5 || cfg.Search.MaxTopK != 50 {
		t.Errorf("top_k defaults = %d/%d, want 5/50", cfg.Search.DefaultTopK, cfg.Search.MaxTopK)
	}
	if cfg.Search.MaxTextLength != 256 {
		t.Errorf("MaxTextLength = %d, want 256", cfg.Search.MaxTextLength)
	}
	if cfg.Indexer.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Indexer.Workers)
	}
	if got := cfg.Elasticsearch.ReplicasOrDefault(); got != -1 {
		t.Errorf("ReplicasOrDefault = %d, want -1", got)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	replicas := 0
	cfg := Config{
		HTTP:          HTTPConfig{ReadTimeoutSec: 3},
		Elasticsearch: ElasticsearchConfig{Index: "photos", Replicas: &replicas},
		Embedding:     EmbeddingConfig{Dimensions: 512},
		Search:        SearchConfig{DefaultTopK: 10, MaxTopK: 20},
		Indexer:       IndexerConfig{Workers: 16},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 3 {
		t.Errorf("ReadTimeoutSec = %d, want 3", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Elasticsearch.Index != "photos" {
		t.Errorf("Index = %q, want photos", cfg.Elasticsearch.Index)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("Dimensions = %d, want 512", cfg.Embedding.Dimensions)
	}
	if cfg.Search.DefaultTopK != 10 || cfg.Search.MaxTopK != 20 {
		t.Errorf("top_k = %d/%d, want 10/20", cfg.Search.DefaultTopK, cfg.Search.MaxTopK)
	}
	if cfg.Indexer.Workers != 16 {
		t.Errorf("Workers = %d, want 16", cfg.Indexer.Workers)
	}
	if got := cfg.Elasticsearch.ReplicasOrDefault(); got != 0 {
		t.Errorf("ReplicasOrDefault = %d, want 0", got)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("IMGDEX_TEST_ES", "http://es:9200")
	t.Setenv("IMGDEX_TEST_KEY", "")

	cfg, err := Parse([]byte(`
http:
  port: 8080
elasticsearch:
  addrs: ["${IMGDEX_TEST_ES}"]
embedding:
  base_url: ${IMGDEX_TEST_EMB:-http://oracle:8000/v1}
  api_key: ${IMGDEX_TEST_KEY:-none}
  model: vgg16
corpus:
  root: /data
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Elasticsearch.Addrs[0] != "http://es:9200" {
		t.Errorf("addrs = %v", cfg.Elasticsearch.Addrs)
	}
	if cfg.Embedding.BaseURL != "http://oracle:8000/v1" {
		t.Errorf("base_url = %q", cfg.Embedding.BaseURL)
	}
	if cfg.Embedding.APIKey != "none" {
		t.Errorf("api_key = %q, want default for empty var", cfg.Embedding.APIKey)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("IMGDEX_DOTENV_A=from-file\nIMGDEX_DOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMGDEX_DOTENV_B", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("IMGDEX_DOTENV_A") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("IMGDEX_DOTENV_A"); got != "from-file" {
		t.Errorf("A = %q, want from-file", got)
	}
	if got := os.Getenv("IMGDEX_DOTENV_B"); got != "from-env" {
		t.Errorf("B = %q, existing env must win", got)
	}
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file must be ignored, got %v", err)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("GetEnv() = %q, want local", got)
	}
	t.Setenv("ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("GetEnv() = %q, want prod", got)
	}
}

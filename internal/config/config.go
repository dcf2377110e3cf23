package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Corpus backends.
const (
	CorpusLocal = "local"
	CorpusMinio = "minio"
)

// Config holds the imgdex configuration shared by the API server and the indexer.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Cache         CacheConfig         `yaml:"cache"`
	Corpus        CorpusConfig        `yaml:"corpus"`
	Search        SearchConfig        `yaml:"search"`
	Indexer       IndexerConfig       `yaml:"indexer"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// ElasticsearchConfig holds search backend settings.
type ElasticsearchConfig struct {
	Addrs               []string `yaml:"addrs"`
	Username            string   `yaml:"username"`
	Password            string   `yaml:"password"`
	Index               string   `yaml:"index"`
	RequestTimeoutSec   int      `yaml:"request_timeout_sec"`
	ReadinessTimeoutSec int      `yaml:"readiness_timeout_sec"`
	Shards              int      `yaml:"shards"`   // 0 = cluster default
	Replicas            *int     `yaml:"replicas"` // nil = cluster default
}

// EmbeddingConfig holds embedding oracle settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Addrs      []string `yaml:"addrs"`
	Password   string   `yaml:"password"`
	Standalone bool     `yaml:"standalone"` // single node, no cluster discovery
	TTLHours   int      `yaml:"ttl_hours"`  // 0 = no expiry
}

// CorpusConfig locates the image corpus.
type CorpusConfig struct {
	Backend string      `yaml:"backend"` // local, minio (default: local)
	Root    string      `yaml:"root"`
	Minio   MinioConfig `yaml:"minio"`
}

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// SearchConfig holds query limits.
type SearchConfig struct {
	DefaultTopK   int `yaml:"default_top_k"`
	MaxTopK       int `yaml:"max_top_k"`
	MaxTextLength int `yaml:"max_text_length"`
	MaxImageMB    int `yaml:"max_image_mb"`
}

// IndexerConfig holds corpus indexer settings.
type IndexerConfig struct {
	Workers     int     `yaml:"workers"`
	RatePerSec  float64 `yaml:"rate_per_sec"` // 0 = unlimited
	TagManifest string  `yaml:"tag_manifest"`
	FlushBytes  int     `yaml:"flush_bytes"`
	MaxImageMB  int     `yaml:"max_image_mb"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 11
	}
	if c.Elasticsearch.Index == "" {
		c.Elasticsearch.Index = "images"
	}
	if c.Elasticsearch.RequestTimeoutSec <= 0 {
		c.Elasticsearch.RequestTimeoutSec = 10
	}
	if c.Elasticsearch.ReadinessTimeoutSec <= 0 {
		c.Elasticsearch.ReadinessTimeoutSec = 30
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 4096
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Corpus.Backend == "" {
		c.Corpus.Backend = CorpusLocal
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 5
	}
	if c.Search.MaxTopK <= 0 {
		c.Search.MaxTopK = 50
	}
	if c.Search.MaxTextLength <= 0 {
		c.Search.MaxTextLength = 256
	}
	if c.Search.MaxImageMB <= 0 {
		c.Search.MaxImageMB = 10
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = 4
	}
	if c.Indexer.FlushBytes <= 0 {
		c.Indexer.FlushBytes = 5 << 20
	}
	if c.Indexer.MaxImageMB <= 0 {
		c.Indexer.MaxImageMB = 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Elasticsearch.Addrs) == 0 {
		return errors.New("elasticsearch.addrs is required")
	}
	if c.Elasticsearch.Replicas != nil && *c.Elasticsearch.Replicas < 0 {
		return fmt.Errorf("elasticsearch.replicas must be >= 0, got %d", *c.Elasticsearch.Replicas)
	}
	if c.Embedding.BaseURL == "" {
		return errors.New("embedding.base_url is required")
	}
	if c.Embedding.Model == "" {
		return errors.New("embedding.model is required")
	}
	if c.Cache.Enabled && len(c.Cache.Addrs) == 0 {
		return errors.New("cache.addrs is required when cache.enabled is true")
	}
	if c.Cache.TTLHours < 0 {
		return fmt.Errorf("cache.ttl_hours must be >= 0, got %d", c.Cache.TTLHours)
	}
	switch c.Corpus.Backend {
	case CorpusLocal:
		if c.Corpus.Root == "" {
			return errors.New("corpus.root is required for the local backend")
		}
	case CorpusMinio:
		if c.Corpus.Minio.Endpoint == "" || c.Corpus.Minio.Bucket == "" {
			return errors.New("corpus.minio.endpoint and corpus.minio.bucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("corpus.backend must be %q or %q, got %q", CorpusLocal, CorpusMinio, c.Corpus.Backend)
	}
	if c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k (%d) exceeds search.max_top_k (%d)",
			c.Search.DefaultTopK, c.Search.MaxTopK)
	}
	if c.Indexer.RatePerSec < 0 {
		return fmt.Errorf("indexer.rate_per_sec must be >= 0, got %g", c.Indexer.RatePerSec)
	}
	return nil
}

// ReplicasOrDefault returns the configured replica count, or -1 to keep the cluster default.
func (c *ElasticsearchConfig) ReplicasOrDefault() int {
	if c.Replicas == nil {
		return -1
	}
	return *c.Replicas
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

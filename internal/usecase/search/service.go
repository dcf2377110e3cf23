package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/mode"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	"github.com/kailas-cloud/imgdex/internal/logger"
	"github.com/kailas-cloud/imgdex/internal/metrics"
)

// Limits applied when Config leaves a field zero.
const (
	DefaultTopK          = 5
	DefaultMaxTopK       = 50
	DefaultMaxTextLength = 256
	DefaultMaxImageBytes = 10 << 20
)

// Config tunes request validation.
type Config struct {
	DefaultTopK   int
	MaxTopK       int
	MaxTextLength int
	MaxImageBytes int
	// Dimensions is the index vector width; 0 disables the check.
	Dimensions int
}

func (c *Config) applyDefaults() {
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = DefaultTopK
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = DefaultMaxTopK
	}
	if c.DefaultTopK > c.MaxTopK {
		c.DefaultTopK = c.MaxTopK
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = DefaultMaxTextLength
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = DefaultMaxImageBytes
	}
}

// Input is a caller query. Either Image or Text (or both) must be set.
type Input struct {
	Image       []byte
	ContentType string
	Text        string
	// TopK of 0 selects the configured default.
	TopK int
}

// Outcome is a completed search.
type Outcome struct {
	Results []result.Result
	Mode    mode.Mode
	// EmbeddingFailed is set when an image was supplied but the oracle
	// could not embed it; the search then ran on text alone.
	EmbeddingFailed bool
	EmbeddingCached bool
}

// Service answers image and tag queries.
type Service struct {
	repo  Repository
	embed Embedder
	cfg   Config
}

// New creates a search service. embed may be nil, in which case
// image queries always degrade to text.
func New(repo Repository, embed Embedder, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{repo: repo, embed: embed, cfg: cfg}
}

// Search embeds the optional image, then runs the ranked retrieval.
//
// An oracle failure never fails the search: the embedding is treated as
// absent and Outcome.EmbeddingFailed is set. If nothing remains to search
// on, domain.ErrEmptyQuery is returned without calling the backend.
// Backend failures wrap domain.ErrBackendUnavailable; an empty result with
// a nil error is a real zero-hit answer.
func (s *Service) Search(ctx context.Context, in Input) (Outcome, error) {
	log := logger.FromContext(ctx)

	topK, err := s.resolveTopK(in.TopK)
	if err != nil {
		return s.reject(Outcome{}, err)
	}

	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) > s.cfg.MaxTextLength {
		return s.reject(Outcome{}, fmt.Errorf("%w: text longer than %d characters",
			domain.ErrInvalidInput, s.cfg.MaxTextLength))
	}
	if len(in.Image) > s.cfg.MaxImageBytes {
		return s.reject(Outcome{}, fmt.Errorf("%w: image larger than %d bytes",
			domain.ErrInvalidInput, s.cfg.MaxImageBytes))
	}

	var out Outcome
	var embedding domain.Embedding
	if len(in.Image) > 0 {
		embedding, out.EmbeddingCached, err = s.embedImage(ctx, in)
		if err != nil {
			if errors.Is(err, domain.ErrVectorDimMismatch) && !errors.Is(err, domain.ErrEmbeddingProviderError) {
				return s.reject(out, err)
			}
			out.EmbeddingFailed = true
			metrics.SearchOracleFallbacksTotal.Inc()
			log.Warn("Image embedding failed, continuing without it", zap.Error(err))
		}
	}

	m, ok := mode.Of(!embedding.IsEmpty(), text != "")
	if !ok {
		return s.reject(out, domain.ErrEmptyQuery)
	}
	out.Mode = m

	results, err := s.repo.Search(ctx, embedding, text, topK)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(string(m), metrics.OutcomeBackendDown).Inc()
		return out, fmt.Errorf("search: %w", err)
	}

	outcome := metrics.OutcomeOK
	if len(results) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(m), outcome).Inc()
	metrics.SearchResultsReturned.Observe(float64(len(results)))

	log.Debug("Search completed",
		zap.String("mode", string(m)),
		zap.Int("top_k", topK),
		zap.Int("results", len(results)),
		zap.Bool("embedding_failed", out.EmbeddingFailed),
		zap.Bool("embedding_cached", out.EmbeddingCached),
	)

	out.Results = results
	return out, nil
}

func (s *Service) resolveTopK(k int) (int, error) {
	switch {
	case k == 0:
		return s.cfg.DefaultTopK, nil
	case k < 0:
		return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, k)
	case k > s.cfg.MaxTopK:
		return s.cfg.MaxTopK, nil
	default:
		return k, nil
	}
}

func (s *Service) embedImage(ctx context.Context, in Input) (domain.Embedding, bool, error) {
	if s.embed == nil {
		return nil, false, fmt.Errorf("no embedding oracle configured: %w", domain.ErrEmbeddingProviderError)
	}
	res, err := s.embed.Embed(ctx, domain.Image{Data: in.Image, ContentType: in.ContentType})
	if err != nil {
		return nil, false, fmt.Errorf("embed query image: %w", err)
	}
	if res.Embedding.IsEmpty() {
		return nil, false, fmt.Errorf("empty query embedding: %w", domain.ErrEmbeddingProviderError)
	}
	if s.cfg.Dimensions > 0 && res.Embedding.Dim() != s.cfg.Dimensions {
		return nil, false, domain.NewDimensionError(res.Embedding.Dim(), s.cfg.Dimensions)
	}
	return res.Embedding, res.Cached, nil
}

func (s *Service) reject(out Outcome, err error) (Outcome, error) {
	m := out.Mode
	if m == "" {
		m = "none"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(m), metrics.OutcomeRejected).Inc()
	return out, err
}

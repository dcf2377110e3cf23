package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/imgdex/internal/corpus"
	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/imgdex/internal/logger"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/imgdex/internal/usecase/search"
)

// Error codes returned in errorResponse.Code.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeEmptyQuery         = "empty_query"
	codeValidationFailed   = "validation_failed"
	codeVectorDimMismatch  = "vector_dim_mismatch"
	codeNotFound           = "not_found"
	codePayloadTooLarge    = "payload_too_large"
	codeEmbeddingError     = "embedding_provider_error"
	codeBackendUnavailable = "backend_unavailable"
	codeInternalError      = "internal_error"
)

// DefaultMaxUploadBytes caps a multipart search request body.
const DefaultMaxUploadBytes = 11 << 20

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// imagePrefix roots corpus image URLs.
const imagePrefix = "/images"

// Searcher runs image and tag queries.
type Searcher interface {
	Search(ctx context.Context, in searchuc.Input) (searchuc.Outcome, error)
}

// HealthReporter aggregates component health.
type HealthReporter interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the search API and corpus images.
type Server struct {
	search         Searcher
	health         HealthReporter
	corpus         corpus.Store
	logger         *zap.Logger
	maxUploadBytes int64
	errorHandlers  []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes caps the multipart request body of POST /search.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewServer creates an HTTP API server. corpus can be nil, in which case
// image_url is omitted and GET /images is not routed.
func NewServer(
	search Searcher,
	health HealthReporter,
	store corpus.Store,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		search:         search,
		health:         health,
		corpus:         store,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	s.errorHandlers = []errorHandler{
		payloadTooLargeHandler,
		sentinelHandler(domain.ErrEmptyQuery, http.StatusBadRequest, codeEmptyQuery),
		sentinelHandler(domain.ErrInvalidTopK, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, codeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, codeBackendUnavailable),
		sentinelHandler(corpus.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(corpus.ErrInvalidPath, http.StatusBadRequest, codeBadRequest),
		sentinelHandler(corpus.ErrUnsupportedType, http.StatusBadRequest, codeBadRequest),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/search", s.SearchText)
	r.Post("/search", s.SearchUpload)
	if s.corpus != nil {
		r.Get(imagePrefix+"/*", s.Image)
	}
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type searchItem struct {
	Score        float64  `json:"score"`
	ImageID      string   `json:"image_id"`
	ImageName    string   `json:"image_name"`
	RelativePath string   `json:"relative_path"`
	Tags         []string `json:"tags"`
	ImageURL     string   `json:"image_url,omitempty"`
}

type searchResponse struct {
	Mode            string       `json:"mode"`
	EmbeddingFailed bool         `json:"embedding_failed"`
	Total           int          `json:"total"`
	Items           []searchItem `json:"items"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchText handles GET /search?text=&top_k=.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	in, err := bindSearchParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	s.runSearch(w, r, in)
}

// SearchUpload handles POST /search with a multipart body: an optional
// "image" file part plus "text" and "top_k" fields.
func (s *Server) SearchUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, codeBadRequest, "expected multipart/form-data body")
		case errors.As(err, &tooLarge):
			s.handleDomainError(w, fmt.Errorf("parse multipart: %w", err))
		default:
			writeError(w, http.StatusBadRequest, codeBadRequest, "malformed multipart body")
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in, err := bindSearchParams(url.Values(r.MultipartForm.Value))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}

	data, contentType, err := readImagePart(r.MultipartForm)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	in.Image = data
	in.ContentType = contentType

	s.runSearch(w, r, in)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, in searchuc.Input) {
	ctx := logpkg.WithFields(r.Context(),
		zap.Bool("has_image", len(in.Image) > 0),
		zap.Int("top_k", in.TopK),
	)
	out, err := s.search.Search(ctx, in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]searchItem, 0, len(out.Results))
	for i := range out.Results {
		items = append(items, s.resultToItem(&out.Results[i]))
	}
	if out.EmbeddingCached {
		w.Header().Set("X-Embedding-Cache", "hit")
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Mode:            string(out.Mode),
		EmbeddingFailed: out.EmbeddingFailed,
		Total:           len(items),
		Items:           items,
	})
}

func (s *Server) resultToItem(r *result.Result) searchItem {
	item := searchItem{
		Score:        r.Score(),
		ImageID:      r.ImageID(),
		ImageName:    r.ImageName(),
		RelativePath: r.RelativePath(),
		Tags:         r.Tags(),
	}
	if s.corpus != nil && r.RelativePath() != "" {
		u := url.URL{Path: path.Join(imagePrefix, r.RelativePath())}
		item.ImageURL = u.EscapedPath()
	}
	return item
}

// Image handles GET /images/*, streaming a corpus file by relative path.
func (s *Server) Image(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	rc, info, err := s.corpus.Open(r.Context(), rel)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(rel), info.ModTime, rs)
		return
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream corpus image", zap.String("path", rel), zap.Error(err))
	}
}

// HealthCheck handles GET /health. Only an unhealthy report returns 503;
// a degraded one still serves text searches.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// bindSearchParams reads text and top_k from form or query values.
func bindSearchParams(values url.Values) (searchuc.Input, error) {
	var in searchuc.Input
	if err := runtime.BindQueryParameter("form", true, false, "text", values, &in.Text); err != nil {
		return in, errors.New("invalid text parameter")
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", values, &in.TopK); err != nil {
		return in, errors.New("top_k must be an integer")
	}
	return in, nil
}

// readImagePart returns the "image" file part, or nil data when absent.
func readImagePart(form *multipart.Form) ([]byte, string, error) {
	files := form.File["image"]
	if len(files) == 0 {
		return nil, "", nil
	}
	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open image part: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("read image part: %w", err)
	}
	return data, fh.Header.Get("Content-Type"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrEmptyQuery,
		domain.ErrInvalidTopK,
		domain.ErrInvalidInput,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrBackendUnavailable,
		corpus.ErrNotFound,
		corpus.ErrInvalidPath,
		corpus.ErrUnsupportedType,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// payloadTooLargeHandler handles request bodies cut off by MaxBytesReader.
func payloadTooLargeHandler(w http.ResponseWriter, err error, _ string) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
		fmt.Sprintf("request body exceeds %d bytes", mbe.Limit))
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

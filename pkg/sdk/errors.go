package imgdex

import "github.com/kailas-cloud/imgdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrEmptyQuery             = domain.ErrEmptyQuery
	ErrInvalidTopK            = domain.ErrInvalidTopK
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
)

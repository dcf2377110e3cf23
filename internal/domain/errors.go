package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuery signals a search with neither an image embedding nor a text filter.
	ErrEmptyQuery = errors.New("empty query: an image or a text filter is required")
	// ErrInvalidTopK signals a non-positive result count.
	ErrInvalidTopK = errors.New("top_k must be at least 1")
	// ErrInvalidInput signals a malformed search input (text too long, bad image).
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDimMismatch signals a vector dimension mismatch with the index.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrEmbeddingProviderError signals an embedding oracle failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrBackendUnavailable signals that the search backend could not be reached
	// or failed to execute a request. It separates "no answer" from "zero hits".
	ErrBackendUnavailable = errors.New("search backend unavailable")
)

// DimensionError wraps ErrVectorDimMismatch with both dimensions.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrVectorDimMismatch.Error(), e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrVectorDimMismatch }

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(got, want int) error {
	return &DimensionError{Got: got, Want: want}
}

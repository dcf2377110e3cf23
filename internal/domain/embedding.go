package domain

import (
	"context"
	"math"
)

// Embedding is a fixed-length image feature vector.
type Embedding []float32

// IsEmpty reports whether the embedding carries no components.
// An empty embedding means "no image supplied".
func (e Embedding) IsEmpty() bool { return len(e) == 0 }

// Dim returns the dimensionality.
func (e Embedding) Dim() int { return len(e) }

// Magnitude returns the L2 norm, accumulated in float64.
func (e Embedding) Magnitude() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize returns e scaled to unit length.
// A zero-magnitude vector is returned verbatim.
func Normalize(e Embedding) Embedding {
	norm := e.Magnitude()
	if norm == 0 {
		return e
	}
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// Image is the raw query or corpus image handed to the embedding oracle.
type Image struct {
	Data        []byte
	ContentType string
}

// Embedder maps an image to a normalized feature vector.
type Embedder interface {
	Embed(ctx context.Context, img Image) (EmbeddingResult, error)
}

// EmbeddingResult carries the vector and whether it was served from cache.
type EmbeddingResult struct {
	Embedding Embedding
	Cached    bool
}

// DefaultDimensions matches the VGG16 fc1 layer.
const DefaultDimensions = 4096

// KeyPrefix namespaces every key imgdex writes into the key-value cache.
const KeyPrefix = "imgdex:"

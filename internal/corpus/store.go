// Package corpus gives read access to the fixed image corpus that the
// search index was built from. Paths are slash-separated and relative to
// the corpus root, exactly as stored in the relative_path field.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	domdoc "github.com/kailas-cloud/imgdex/internal/domain/document"
)

var (
	// ErrInvalidPath signals a relative path outside the corpus root.
	ErrInvalidPath = errors.New("invalid corpus path")
	// ErrNotFound signals a missing corpus image.
	ErrNotFound = errors.New("corpus image not found")
	// ErrUnsupportedType signals a file that is not an indexable image.
	ErrUnsupportedType = errors.New("unsupported image type")
)

// Info describes a corpus image.
type Info struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// WalkFunc is called once per image, in lexical path order.
// Returning an error stops the walk.
type WalkFunc func(relPath string) error

// Store reads images from a corpus.
type Store interface {
	Open(ctx context.Context, relPath string) (io.ReadCloser, Info, error)
	Walk(ctx context.Context, fn WalkFunc) error
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// IsImage reports whether relPath has an indexable image extension.
func IsImage(relPath string) bool {
	_, ok := imageTypes[strings.ToLower(path.Ext(relPath))]
	return ok
}

// ContentType returns the MIME type for an image path, or "" if unsupported.
func ContentType(relPath string) string {
	return imageTypes[strings.ToLower(path.Ext(relPath))]
}

// cleanPath validates relPath and checks the extension.
func cleanPath(relPath string) (string, error) {
	clean, err := domdoc.CleanRelativePath(relPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if !IsImage(clean) {
		return "", fmt.Errorf("%q: %w", clean, ErrUnsupportedType)
	}
	return clean, nil
}

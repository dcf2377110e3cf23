package document

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/kailas-cloud/imgdex/internal/domain"
)

// MaxTags is the maximum number of tags on a single image.
const MaxTags = 64

// Document is an indexed corpus image (immutable value object).
type Document struct {
	imageID      string
	imageName    string
	relativePath string
	tags         []string
	embedding    domain.Embedding
}

// New validates and creates a Document.
// relativePath must be a clean, slash-separated path inside the corpus root.
// Tags are trimmed, lower-cased and de-duplicated; the result is never nil.
func New(imageID, relativePath string, tags []string, embedding domain.Embedding) (Document, error) {
	if imageID == "" {
		return Document{}, fmt.Errorf("image ID is required")
	}
	rel, err := CleanRelativePath(relativePath)
	if err != nil {
		return Document{}, err
	}
	normalized := NormalizeTags(tags)
	if len(normalized) > MaxTags {
		return Document{}, fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	if embedding.IsEmpty() {
		return Document{}, fmt.Errorf("image embedding is required")
	}

	return Document{
		imageID:      imageID,
		imageName:    path.Base(rel),
		relativePath: rel,
		tags:         normalized,
		embedding:    slices.Clone(embedding),
	}, nil
}

// ImageID returns the unique image identifier.
func (d *Document) ImageID() string { return d.imageID }

// ImageName returns the file name of the image.
func (d *Document) ImageName() string { return d.imageName }

// RelativePath returns the location under the corpus root.
func (d *Document) RelativePath() string { return d.relativePath }

// Tags returns the image tags.
func (d *Document) Tags() []string { return d.tags }

// Embedding returns the image feature vector.
func (d *Document) Embedding() domain.Embedding { return d.embedding }

// CleanRelativePath validates p as a path under the corpus root and returns it cleaned.
func CleanRelativePath(p string) (string, error) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	if p == "" {
		return "", fmt.Errorf("relative path is required")
	}
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("relative path %q must not be absolute", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("relative path %q escapes the corpus root", p)
	}
	return clean, nil
}

// NormalizeTags trims, lower-cases and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Indexed field names.
const (
	FieldImageID      = "image_id"
	FieldImageName    = "image_name"
	FieldRelativePath = "relative_path"
	FieldTags         = "tags"
	FieldEmbedding    = "image_embedding"
)

// ProjectedFields are the fields returned with every search hit.
// The embedding is never projected.
func ProjectedFields() []string {
	return []string{FieldImageID, FieldImageName, FieldRelativePath, FieldTags}
}

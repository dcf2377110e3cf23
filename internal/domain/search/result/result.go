package result

import "slices"

// Result is a single ranked search hit.
type Result struct {
	score        float64
	imageID      string
	imageName    string
	relativePath string
	tags         []string
}

// New creates a search result. A nil tags slice becomes an empty one.
func New(score float64, imageID, imageName, relativePath string, tags []string) Result {
	if tags == nil {
		tags = []string{}
	}
	return Result{
		score:        score,
		imageID:      imageID,
		imageName:    imageName,
		relativePath: relativePath,
		tags:         tags,
	}
}

// Score returns the backend-assigned relevance score.
func (r *Result) Score() float64 { return r.score }

// ImageID returns the document identifier.
func (r *Result) ImageID() string { return r.imageID }

// ImageName returns the image file name.
func (r *Result) ImageName() string { return r.imageName }

// RelativePath returns the image location under the corpus root.
func (r *Result) RelativePath() string { return r.relativePath }

// Tags returns the image tags, never nil.
func (r *Result) Tags() []string { return r.tags }

// Hit is a raw backend hit before assembly. Tags is nil when the
// backend omitted the field.
type Hit struct {
	Score        float64
	ImageID      string
	ImageName    string
	RelativePath string
	Tags         []string
}

// Assemble converts backend hits into results, keeping backend order and
// returning at most topK entries. A non-positive topK yields no results.
func Assemble(hits []Hit, topK int) []Result {
	if topK <= 0 {
		return []Result{}
	}
	n := min(len(hits), topK)
	out := make([]Result, n)
	for i := range n {
		h := &hits[i]
		out[i] = New(h.Score, h.ImageID, h.ImageName, h.RelativePath, slices.Clone(h.Tags))
	}
	return out
}

package query

import (
	"fmt"

	"github.com/kailas-cloud/imgdex/internal/domain"
	"github.com/kailas-cloud/imgdex/internal/domain/document"
	"github.com/kailas-cloud/imgdex/internal/domain/search/mode"
)

// Defaults for tag filtering and similarity scoring.
const (
	DefaultTagBoost     = 2
	DefaultFuzziness    = "AUTO"
	DefaultCosineOffset = 1.0
	minimumShouldMatch  = 1
)

// Request is a fully formed ranked-retrieval request.
// The index name is configuration and is not part of the request.
type Request struct {
	Size   int      `json:"size"`
	Source []string `json:"_source"`
	Query  Clause   `json:"query"`

	mode mode.Mode
}

// Mode returns the query variant this request was built for.
func (r Request) Mode() mode.Mode { return r.mode }

// Builder translates (embedding, text, topK) into a Request.
type Builder struct {
	tagField  string
	tagBoost  float64
	fuzziness string
	score     ScoreFunction
}

// NewBuilder creates a builder with the corpus field layout:
// tags are matched on "tags" and vectors scored on "image_embedding" with cosine + 1.0.
func NewBuilder() *Builder {
	return &Builder{
		tagField:  document.FieldTags,
		tagBoost:  DefaultTagBoost,
		fuzziness: DefaultFuzziness,
		score:     CosineSimilarity{Field: document.FieldEmbedding, Offset: DefaultCosineOffset},
	}
}

// WithScore replaces the similarity scoring function.
func (b *Builder) WithScore(fn ScoreFunction) *Builder {
	b.score = fn
	return b
}

// WithTagField sets the field the text filter matches against.
func (b *Builder) WithTagField(field string) *Builder {
	b.tagField = field
	return b
}

// Build constructs the request. Text, when non-empty, is a pre-filter on the
// candidate set and is matched exactly as given; the embedding, when
// present, supplies the ranking score. With neither, Build returns
// domain.ErrEmptyQuery.
func (b *Builder) Build(embedding domain.Embedding, text string, topK int) (Request, error) {
	if topK < 1 {
		return Request{}, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, topK)
	}

	m, ok := mode.Of(!embedding.IsEmpty(), text != "")
	if !ok {
		return Request{}, domain.ErrEmptyQuery
	}

	var filter Clause
	if text != "" {
		filter = b.TagFilter(text)
	}

	var root Clause
	if m.UsesVector() {
		source, err := b.score.Source()
		if err != nil {
			return Request{}, fmt.Errorf("render score function: %w", err)
		}
		candidates := filter
		if candidates == nil {
			candidates = MatchAll{}
		}
		root = ScriptScore{
			Query: candidates,
			Script: Script{
				Source: source,
				Params: ScriptParams{QueryVector: []float32(embedding)},
			},
		}
	} else {
		root = filter
	}

	return Request{
		Size:   topK,
		Source: document.ProjectedFields(),
		Query:  root,
		mode:   m,
	}, nil
}

// TagFilter matches documents whose tags satisfy a boosted tokenized match
// or a fuzzy match against text; at least one must match.
func (b *Builder) TagFilter(text string) Bool {
	return Bool{
		Should: []Clause{
			Match{Field: b.tagField, Query: text, Boost: b.tagBoost},
			Fuzzy{Field: b.tagField, Value: text, Fuzziness: b.fuzziness},
		},
		MinimumShouldMatch: minimumShouldMatch,
	}
}

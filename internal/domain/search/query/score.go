package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var fieldRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ScoreFunction computes a per-document relevance score from the query vector.
type ScoreFunction interface {
	// Source renders the backend script for this function.
	Source() (string, error)
}

// CosineSimilarity scores by cosine similarity between the query vector and
// the stored vector in Field, shifted by Offset. Offset must be at least 1 so
// that the score stays non-negative over the full [-1, 1] cosine range.
type CosineSimilarity struct {
	Field  string
	Offset float64
}

// Source implements ScoreFunction.
func (c CosineSimilarity) Source() (string, error) {
	if !fieldRegex.MatchString(c.Field) {
		return "", fmt.Errorf("invalid vector field name %q", c.Field)
	}
	if math.IsNaN(c.Offset) || math.IsInf(c.Offset, 0) || c.Offset < 1 {
		return "", fmt.Errorf("cosine offset must be a finite value >= 1, got %v", c.Offset)
	}
	return fmt.Sprintf("cosineSimilarity(params.query_vector, '%s') + %s", c.Field, formatOffset(c.Offset)), nil
}

// formatOffset always keeps a decimal point so the script does float arithmetic.
func formatOffset(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

package imgdex

// SearchMode reports which inputs ranked the results.
type SearchMode string

// Search mode constants.
const (
	ModeVector SearchMode = "vector"
	ModeText   SearchMode = "text"
	ModeHybrid SearchMode = "hybrid"
)

// Query is a search request. Image, Text or both must be set.
type Query struct {
	Image       []byte
	ContentType string
	Text        string
	// TopK of 0 selects the client default.
	TopK int
}

// Hit is a single ranked image.
type Hit struct {
	Score        float64
	ImageID      string
	ImageName    string
	RelativePath string
	Tags         []string
}

// SearchResult holds ranked hits, best first.
type SearchResult struct {
	Mode            SearchMode
	EmbeddingFailed bool
	Hits            []Hit
}

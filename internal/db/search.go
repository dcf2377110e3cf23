package db

import "encoding/json"

// SearchResult is the output of a search operation, in backend rank order.
type SearchResult struct {
	Total int
	Hits  []SearchHit
}

// SearchHit is a single document hit. Source holds the projected fields verbatim.
type SearchHit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// BulkStats summarizes a bulk write run.
type BulkStats struct {
	Indexed uint64
	Failed  uint64
}

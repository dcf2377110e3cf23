package search

import (
	"encoding/json"

	"github.com/kailas-cloud/imgdex/internal/domain/search/result"
)

// hitSource is the projected _source of a corpus document.
type hitSource struct {
	ImageID      string   `json:"image_id"`
	ImageName    string   `json:"image_name"`
	RelativePath string   `json:"relative_path"`
	Tags         tagsList `json:"tags"`
}

func (s *hitSource) toHit(id string, score float64) result.Hit {
	imageID := s.ImageID
	if imageID == "" {
		imageID = id
	}
	return result.Hit{
		Score:        score,
		ImageID:      imageID,
		ImageName:    s.ImageName,
		RelativePath: s.RelativePath,
		Tags:         []string(s.Tags),
	}
}

// tagsList accepts both a JSON array and a single string, since
// the backend stores a one-element text field either way.
type tagsList []string

func (t *tagsList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err //nolint:wrapcheck // json decoder context
		}
		*t = tagsList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err //nolint:wrapcheck // json decoder context
	}
	*t = list
	return nil
}

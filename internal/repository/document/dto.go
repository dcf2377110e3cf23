package document

import (
	domdoc "github.com/kailas-cloud/imgdex/internal/domain/document"
)

// docJSON is the stored representation of a corpus image.
type docJSON struct {
	ImageID        string    `json:"image_id"`
	ImageName      string    `json:"image_name"`
	RelativePath   string    `json:"relative_path"`
	Tags           []string  `json:"tags"`
	ImageEmbedding []float32 `json:"image_embedding"`
}

func toJSON(d *domdoc.Document) docJSON {
	return docJSON{
		ImageID:        d.ImageID(),
		ImageName:      d.ImageName(),
		RelativePath:   d.RelativePath(),
		Tags:           d.Tags(),
		ImageEmbedding: d.Embedding(),
	}
}

type keywordProp struct {
	Type string `json:"type"`
}

type vectorProp struct {
	Type       string `json:"type"`
	Dims       int    `json:"dims"`
	Index      bool   `json:"index"`
	Similarity string `json:"similarity"`
}

type indexMappings struct {
	Dynamic    string         `json:"dynamic"`
	Properties map[string]any `json:"properties"`
}

type indexDefinition struct {
	Settings map[string]any `json:"settings,omitempty"`
	Mappings indexMappings  `json:"mappings"`
}

// mapping returns the index definition for a corpus with dims-wide embeddings.
func mapping(dims, shards, replicas int) indexDefinition {
	def := indexDefinition{
		Mappings: indexMappings{
			Dynamic: "strict",
			Properties: map[string]any{
				domdoc.FieldImageID:      keywordProp{Type: "keyword"},
				domdoc.FieldImageName:    keywordProp{Type: "keyword"},
				domdoc.FieldRelativePath: keywordProp{Type: "keyword"},
				domdoc.FieldTags:         keywordProp{Type: "text"},
				domdoc.FieldEmbedding: vectorProp{
					Type:       "dense_vector",
					Dims:       dims,
					Index:      true,
					Similarity: "cosine",
				},
			},
		},
	}
	if shards > 0 || replicas >= 0 {
		settings := map[string]any{}
		if shards > 0 {
			settings["number_of_shards"] = shards
		}
		if replicas >= 0 {
			settings["number_of_replicas"] = replicas
		}
		def.Settings = settings
	}
	return def
}

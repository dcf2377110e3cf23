package indexing

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	domdoc "github.com/kailas-cloud/imgdex/internal/domain/document"
)

// Manifest maps a corpus relative path to extra tags.
//
//	cats/a.jpg: [tabby, indoor]
//	dogs/b.png: [puppy]
type Manifest map[string][]string

// LoadManifest reads a YAML tag manifest. An empty path yields an empty manifest.
func LoadManifest(p string) (Manifest, error) {
	if p == "" {
		return Manifest{}, nil
	}
	data, err := os.ReadFile(p) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read tag manifest %s: %w", p, err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest YAML, cleaning every key.
func ParseManifest(data []byte) (Manifest, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse tag manifest: %w", err)
	}
	m := make(Manifest, len(raw))
	for k, tags := range raw {
		rel, err := domdoc.CleanRelativePath(k)
		if err != nil {
			return nil, fmt.Errorf("tag manifest key %q: %w", k, err)
		}
		m[rel] = append(m[rel], tags...)
	}
	return m, nil
}

// TagsFor returns the directory tags of rel followed by its manifest tags.
func (m Manifest) TagsFor(rel string) []string {
	tags := DirectoryTags(rel)
	tags = append(tags, m[rel]...)
	return domdoc.NormalizeTags(tags)
}

// DirectoryTags derives tags from the directory segments of rel:
// "animals/big_cats/lion.jpg" yields [animals, big cats].
func DirectoryTags(rel string) []string {
	dir := path.Dir(rel)
	if dir == "." || dir == "/" {
		return nil
	}
	segs := strings.Split(dir, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

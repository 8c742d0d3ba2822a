package model

import "time"

// IndexEntry is the canonical metadata record for a published template:
// one row per (kind, name), with Files[0] always the root file's storage
// path.
type IndexEntry struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UUID        string    `json:"uuid"`
	Etag        string    `json:"etag"`
	Files       []string  `json:"files"`
	Tags        []string  `json:"tags"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Type        Kind      `json:"type"`
	DateCreated time.Time `json:"date_created"`
}

// Manifest is an IndexEntry minus its embedding vector, the shape persisted
// as the `.manifest.json` sidecar next to a template's root file.
type Manifest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UUID        string    `json:"uuid"`
	Etag        string    `json:"etag"`
	Files       []string  `json:"files"`
	Tags        []string  `json:"tags"`
	Type        Kind      `json:"type"`
	DateCreated time.Time `json:"date_created"`
}

// ToManifest strips the embedding, producing the sidecar-serializable shape.
func (e *IndexEntry) ToManifest() Manifest {
	return Manifest{
		Name:        e.Name,
		Description: e.Description,
		UUID:        e.UUID,
		Etag:        e.Etag,
		Files:       append([]string(nil), e.Files...),
		Tags:        append([]string(nil), e.Tags...),
		Type:        e.Type,
		DateCreated: e.DateCreated,
	}
}

// FromManifest rehydrates an IndexEntry from a manifest, leaving Embedding
// nil; the caller is responsible for re-embedding if needed.
func FromManifest(m Manifest) IndexEntry {
	return IndexEntry{
		Name:        m.Name,
		Description: m.Description,
		UUID:        m.UUID,
		Etag:        m.Etag,
		Files:       append([]string(nil), m.Files...),
		Tags:        append([]string(nil), m.Tags...),
		Type:        m.Type,
		DateCreated: m.DateCreated,
	}
}

// DedupTags removes duplicate tag values, preserving first-seen order.
func DedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

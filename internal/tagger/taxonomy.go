// Package tagger implements facet-constrained nearest-neighbor tag
// extraction over a fixed keyword taxonomy: cross-join candidate texts
// against taxonomy rows by facet, keep the top-k within each facet's
// similarity threshold, and emit per-id ranked tag lists.
//
// The taxonomy is small enough that ranking is a plain in-memory sort; the
// SQL-backed vector index is reserved for the large per-kind entry tables.
package tagger

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mvp-joe/persona-registry/internal/embed"
)

//go:embed seed.jsonl
var seedTaxonomy []byte

// SeedRow is one line of the taxonomy seed file. A deployment with a
// larger downloaded keyword corpus can load it through LoadRows; fetching
// and caching that asset is an external concern, the same way the embedding
// model weights are.
type SeedRow struct {
	Name    string `json:"name"`
	Facet   string `json:"facet"`
	Context string `json:"context"`
}

// TaxonomyRow is one embedded taxonomy entry, ready for similarity search.
type TaxonomyRow struct {
	Name      string
	Facet     string
	Embedding []float32
}

// Taxonomy is the embedded, read-only keyword table, loaded once per
// process and shared by every Extract call.
type Taxonomy struct {
	rows []TaxonomyRow
}

// Load embeds the seed taxonomy's context phrases with provider and
// returns the resulting Taxonomy. Call once per process; the result is
// safe for concurrent read-only use.
func Load(ctx context.Context, provider embed.Provider) (*Taxonomy, error) {
	var rows []SeedRow
	for _, line := range strings.Split(strings.TrimSpace(string(seedTaxonomy)), "\n") {
		if line == "" {
			continue
		}
		var r SeedRow
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("tagger: parse taxonomy seed row: %w", err)
		}
		rows = append(rows, r)
	}
	return LoadRows(ctx, provider, rows)
}

// taxonomyEmbedBatch bounds one embedding call while loading the taxonomy;
// a downloaded corpus can run to thousands of rows.
const taxonomyEmbedBatch = 64

// LoadRows embeds the given seed rows' context phrases with provider and
// returns the resulting Taxonomy.
func LoadRows(ctx context.Context, provider embed.Provider, rows []SeedRow) (*Taxonomy, error) {
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Context
	}

	embeddings, err := embed.EmbedWithProgress(ctx, provider, texts, embed.EmbedModePassage, taxonomyEmbedBatch, nil)
	if err != nil {
		return nil, fmt.Errorf("tagger: embed taxonomy seed: %w", err)
	}

	out := make([]TaxonomyRow, len(rows))
	for i, r := range rows {
		out[i] = TaxonomyRow{Name: r.Name, Facet: r.Facet, Embedding: embeddings[i]}
	}
	return &Taxonomy{rows: out}, nil
}

package tagger

import (
	"context"
	"fmt"
	"sort"

	"github.com/mvp-joe/persona-registry/internal/embed"
)

// facetRule fixes the top-k and minimum-similarity retrieval rule for one
// facet.
type facetRule struct {
	facet         string
	topK          int
	minSimilarity float64
}

var facetRules = []facetRule{
	{facet: "Seniority", topK: 1, minSimilarity: 0.40},
	{facet: "Soft Skill", topK: 2, minSimilarity: 0.40},
	{facet: "Hard Skill", topK: 2, minSimilarity: 0.35},
	{facet: "Methodology", topK: 2, minSimilarity: 0.40},
	{facet: "Role", topK: 1, minSimilarity: 0.40},
	{facet: "Domain", topK: 2, minSimilarity: 0.40},
	{facet: "Technology", topK: 3, minSimilarity: 0.70},
}

// Tagger extracts tags for candidate texts against a loaded Taxonomy.
type Tagger struct {
	taxonomy *Taxonomy
	provider embed.Provider
	byFacet  map[string][]TaxonomyRow
}

// New builds a Tagger over taxonomy, partitioning its rows by facet once so
// Extract never re-groups them.
func New(taxonomy *Taxonomy, provider embed.Provider) *Tagger {
	byFacet := make(map[string][]TaxonomyRow)
	for _, row := range taxonomy.rows {
		byFacet[row.Facet] = append(byFacet[row.Facet], row)
	}
	return &Tagger{taxonomy: taxonomy, provider: provider, byFacet: byFacet}
}

type scoredTag struct {
	name  string
	score float64
}

// Extract embeds texts in one batch call and returns, per id, the
// deduplicated tag names ordered by descending best score. Ids with no
// passing tags map to an empty (non-nil) slice.
func (t *Tagger) Extract(ctx context.Context, ids []string, texts []string) (map[string][]string, error) {
	if len(ids) != len(texts) {
		return nil, fmt.Errorf("tagger: ids and texts must be equal length, got %d and %d", len(ids), len(texts))
	}

	embeddings, err := t.provider.Embed(ctx, texts, embed.EmbedModePassage)
	if err != nil {
		return nil, fmt.Errorf("tagger: embed texts: %w", err)
	}

	result := make(map[string][]string, len(ids))
	for i, id := range ids {
		result[id] = t.extractOne(embeddings[i])
	}
	return result, nil
}

func (t *Tagger) extractOne(vec []float32) []string {
	best := make(map[string]float64)

	for _, rule := range facetRules {
		rows := t.byFacet[rule.facet]
		if len(rows) == 0 {
			continue
		}

		scored := make([]scoredTag, len(rows))
		for i, row := range rows {
			scored[i] = scoredTag{name: row.Name, score: cosineSimilarity(vec, row.Embedding)}
		}
		sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

		k := rule.topK
		if k > len(scored) {
			k = len(scored)
		}
		for _, s := range scored[:k] {
			if s.score < rule.minSimilarity {
				continue
			}
			if existing, ok := best[s.name]; !ok || s.score > existing {
				best[s.name] = s.score
			}
		}
	}

	names := make([]string, 0, len(best))
	for name := range best {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if best[names[i]] != best[names[j]] {
			return best[names[i]] > best[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// cosineSimilarity assumes both vectors are already L2-normalized, so it
// reduces to the dot product.
func cosineSimilarity(a, b []float32) float64 {
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

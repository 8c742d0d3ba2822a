package tagger

import (
	"context"
	"testing"

	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTaxonomy(t *testing.T) (*Taxonomy, embed.Provider) {
	t.Helper()
	provider, err := embed.NewProvider(embed.Config{Provider: "mock"})
	require.NoError(t, err)

	taxonomy, err := Load(context.Background(), provider)
	require.NoError(t, err)
	return taxonomy, provider
}

func TestExtract_RequiresEqualLengthInputs(t *testing.T) {
	t.Parallel()
	taxonomy, provider := testTaxonomy(t)
	tg := New(taxonomy, provider)

	_, err := tg.Extract(context.Background(), []string{"a", "b"}, []string{"only one"})
	require.Error(t, err)
}

func TestExtract_EmptyResultIsNonNilSlice(t *testing.T) {
	t.Parallel()
	taxonomy, provider := testTaxonomy(t)
	tg := New(taxonomy, provider)

	out, err := tg.Extract(context.Background(), []string{"x"}, []string{"completely unrelated gibberish text zzzz"})
	require.NoError(t, err)
	assert.Contains(t, out, "x")
	assert.NotNil(t, out["x"])
}

func TestExtract_MatchesExactTaxonomyRowName(t *testing.T) {
	t.Parallel()
	taxonomy, provider := testTaxonomy(t)
	tg := New(taxonomy, provider)

	// Embedding the exact context phrase of a known row should score 1.0
	// against itself under the mock provider's deterministic hash.
	var target TaxonomyRow
	for _, row := range taxonomy.rows {
		if row.Facet == "Hard Skill" {
			target = row
			break
		}
	}
	require.NotEmpty(t, target.Name)

	out, err := tg.Extract(context.Background(), []string{"id1"}, []string{"writes idiomatic go, goroutines, channels"})
	require.NoError(t, err)
	assert.Contains(t, out["id1"], target.Name)
}

func TestFacetRules_CoverAllSevenFacets(t *testing.T) {
	t.Parallel()
	assert.Len(t, facetRules, 7)
}

// Package embed defines the embedding interface the registry indexes and
// searches with, plus the shipped deterministic local provider and a mock
// for tests. Vectors are 384-dimensional, L2-normalized float32.
package embed

import "context"

// EmbedMode distinguishes the two sides of asymmetric retrieval.
type EmbedMode string

const (
	// EmbedModeQuery is for search queries: the natural-language text a
	// caller wants matching templates for.
	EmbedModeQuery EmbedMode = "query"

	// EmbedModePassage is for indexed content: template descriptions and
	// taxonomy context phrases.
	EmbedModePassage EmbedMode = "passage"
)

// Provider encodes batches of text into vectors. Implementations must be
// deterministic: the same text always yields the same vector.
type Provider interface {
	// Embed converts texts into unit vectors, one per input, in input
	// order. No implicit chunking happens beyond the caller's batch.
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	// Dimensions returns the vector width this provider produces.
	Dimensions() int

	// Close releases any resources held by the provider.
	Close() error
}

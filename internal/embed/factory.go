package embed

import "fmt"

// Config contains configuration for creating an embedding provider.
type Config struct {
	// Provider selects the implementation: "local" (the shipped deterministic
	// encoder) or "mock" (for tests).
	Provider string

	// Model names the embedding model the provider nominally implements.
	// NewProvider does not read it; the local provider does not load model
	// weights.
	Model string

	// Dimensions is the embedding vector width. Defaults to 384 (the width
	// every MetadataStore vector column is fixed to) when zero.
	Dimensions int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(config Config) (Provider, error) {
	dims := config.Dimensions
	if dims == 0 {
		dims = 384
	}

	switch config.Provider {
	case "local", "":
		return newLocalProvider(dims)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: local, mock)", config.Provider)
	}
}

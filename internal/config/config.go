// Package config implements the registry's layered configuration surface:
// defaults → config file → environment → explicit overrides, merged in a
// single pass and validated before use.
package config

// Config is the complete persona-registry configuration.
type Config struct {
	// Root is the base path used as the default for both store roots when
	// they don't set their own.
	Root string `yaml:"root" mapstructure:"root"`

	FileStore FileStoreConfig `yaml:"file_store" mapstructure:"file_store"`
	MetaStore MetaStoreConfig `yaml:"meta_store" mapstructure:"meta_store"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
}

// FileStoreConfig configures the blob storage backend.
type FileStoreConfig struct {
	// Type selects the backend; only "local" is implemented.
	Type string `yaml:"type" mapstructure:"type"`

	// Root is the store's root prefix. Empty inherits Config.Root.
	Root string `yaml:"root" mapstructure:"root"`
}

// SimilaritySearchConfig fixes the defaults search_templates falls back to
// when a caller doesn't pass explicit limit/threshold values.
type SimilaritySearchConfig struct {
	MaxResults        int     `yaml:"max_results" mapstructure:"max_results"`
	MaxCosineDistance float64 `yaml:"max_cosine_distance" mapstructure:"max_cosine_distance"`
}

// MetaStoreConfig configures the tabular + vector index backend.
type MetaStoreConfig struct {
	// Type selects the backend; only "sqlite" is implemented.
	Type string `yaml:"type" mapstructure:"type"`

	// Root is the store's root prefix. Empty inherits Config.Root.
	Root string `yaml:"root" mapstructure:"root"`

	// IndexFolder is the subdirectory under Root holding the per-kind
	// SQLite databases.
	IndexFolder string `yaml:"index_folder" mapstructure:"index_folder"`

	SimilaritySearch SimilaritySearchConfig `yaml:"similarity_search" mapstructure:"similarity_search"`
}

// EmbeddingConfig names the nominal embedding model and its vector width.
// The local provider doesn't load model weights (see internal/embed), but
// Validate requires the name to be set and facade.Open passes it on in the
// embedding provider config.
type EmbeddingConfig struct {
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
}

// Default returns the built-in configuration values.
func Default() *Config {
	return &Config{
		Root: ".persona",
		FileStore: FileStoreConfig{
			Type: "local",
		},
		MetaStore: MetaStoreConfig{
			Type:        "sqlite",
			IndexFolder: "index",
			SimilaritySearch: SimilaritySearchConfig{
				MaxResults:        3,
				MaxCosineDistance: 0.8,
			},
		},
		Embedding: EmbeddingConfig{
			Model:      "BAAI/bge-small-en-v1.5",
			Dimensions: 384,
		},
	}
}

// ResolvedFileStoreRoot returns FileStore.Root, inheriting Root when unset.
func (c *Config) ResolvedFileStoreRoot() string {
	if c.FileStore.Root != "" {
		return c.FileStore.Root
	}
	return c.Root
}

// ResolvedMetaStoreRoot returns MetaStore.Root, inheriting Root when unset.
func (c *Config) ResolvedMetaStoreRoot() string {
	if c.MetaStore.Root != "" {
		return c.MetaStore.Root
	}
	return c.Root
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Overrides holds explicit, highest-precedence values a caller supplies
// programmatically (e.g. CLI flags in a collaborator out of this module's
// scope). Zero-value fields are left unapplied, since distinguishing
// "caller set it to empty" from "caller didn't set it" needs a richer type
// than viper's own layers give us for a final struct-merge pass.
type Overrides struct {
	Root              string
	FileStoreRoot     string
	MetaStoreRoot     string
	MaxResults        int
	MaxCosineDistance float64
}

// Loader loads and validates Config from defaults, an optional config file,
// and the environment, in that increasing order of precedence.
type Loader interface {
	// Load loads configuration with the given overrides applied last.
	Load(overrides Overrides) (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a Loader that looks for .persona/config.yml (or .yaml)
// under rootDir.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load merges the four configuration layers in increasing precedence:
// defaults, config file, environment (PERSONA_ prefix, "__" nested
// delimiter), then explicit overrides. Overrides are applied as a final
// struct-merge pass since viper has no "after env" layer primitive of its
// own.
func (l *loader) Load(overrides Overrides) (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".persona")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("PERSONA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyOverrides(cfg, overrides)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("root")
	_ = v.BindEnv("file_store.type")
	_ = v.BindEnv("file_store.root")
	_ = v.BindEnv("meta_store.type")
	_ = v.BindEnv("meta_store.root")
	_ = v.BindEnv("meta_store.index_folder")
	_ = v.BindEnv("meta_store.similarity_search.max_results")
	_ = v.BindEnv("meta_store.similarity_search.max_cosine_distance")
	_ = v.BindEnv("embedding.model")
	_ = v.BindEnv("embedding.dimensions")
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("root", d.Root)
	v.SetDefault("file_store.type", d.FileStore.Type)
	v.SetDefault("file_store.root", d.FileStore.Root)
	v.SetDefault("meta_store.type", d.MetaStore.Type)
	v.SetDefault("meta_store.root", d.MetaStore.Root)
	v.SetDefault("meta_store.index_folder", d.MetaStore.IndexFolder)
	v.SetDefault("meta_store.similarity_search.max_results", d.MetaStore.SimilaritySearch.MaxResults)
	v.SetDefault("meta_store.similarity_search.max_cosine_distance", d.MetaStore.SimilaritySearch.MaxCosineDistance)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.Root != "" {
		cfg.Root = o.Root
	}
	if o.FileStoreRoot != "" {
		cfg.FileStore.Root = o.FileStoreRoot
	}
	if o.MetaStoreRoot != "" {
		cfg.MetaStore.Root = o.MetaStoreRoot
	}
	if o.MaxResults != 0 {
		cfg.MetaStore.SimilaritySearch.MaxResults = o.MaxResults
	}
	if o.MaxCosineDistance != 0 {
		cfg.MetaStore.SimilaritySearch.MaxCosineDistance = o.MaxCosineDistance
	}
}

// Load is a convenience function using the current working directory as
// the search root and no overrides.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return NewLoader(wd).Load(Overrides{})
}

// LoadFromDir loads configuration rooted at rootDir with overrides applied.
func LoadFromDir(rootDir string, overrides Overrides) (*Config, error) {
	return NewLoader(rootDir).Load(overrides)
}

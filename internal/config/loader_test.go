package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFileOrEnv(t *testing.T) {
	cfg, err := NewLoader(t.TempDir()).Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, ".persona", cfg.Root)
	assert.Equal(t, "local", cfg.FileStore.Type)
	assert.Equal(t, "sqlite", cfg.MetaStore.Type)
	assert.Equal(t, "index", cfg.MetaStore.IndexFolder)
	assert.Equal(t, 3, cfg.MetaStore.SimilaritySearch.MaxResults)
	assert.InDelta(t, 0.8, cfg.MetaStore.SimilaritySearch.MaxCosineDistance, 1e-9)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
}

func TestLoad_ConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ".persona")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(`
root: /data/registry
meta_store:
  similarity_search:
    max_results: 10
`), 0o644))

	cfg, err := NewLoader(dir).Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "/data/registry", cfg.Root)
	assert.Equal(t, 10, cfg.MetaStore.SimilaritySearch.MaxResults)
	// Untouched keys keep their defaults.
	assert.Equal(t, "index", cfg.MetaStore.IndexFolder)
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, ".persona")
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"),
		[]byte("root: /from/file\n"), 0o644))

	t.Setenv("PERSONA_ROOT", "/from/env")
	t.Setenv("PERSONA_META_STORE__SIMILARITY_SEARCH__MAX_RESULTS", "7")

	cfg, err := NewLoader(dir).Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Root)
	assert.Equal(t, 7, cfg.MetaStore.SimilaritySearch.MaxResults)
}

func TestLoad_ExplicitOverridesWinOverEnv(t *testing.T) {
	t.Setenv("PERSONA_ROOT", "/from/env")

	cfg, err := NewLoader(t.TempDir()).Load(Overrides{Root: "/from/override", MaxResults: 5})
	require.NoError(t, err)

	assert.Equal(t, "/from/override", cfg.Root)
	assert.Equal(t, 5, cfg.MetaStore.SimilaritySearch.MaxResults)
}

func TestLoad_InvalidConfigFails(t *testing.T) {
	t.Setenv("PERSONA_META_STORE__TYPE", "duckdb")

	_, err := NewLoader(t.TempDir()).Load(Overrides{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMetaStoreType)
}

func TestResolvedRoots_InheritTopLevelRoot(t *testing.T) {
	cfg := Default()
	cfg.Root = "/base"

	assert.Equal(t, "/base", cfg.ResolvedFileStoreRoot())
	assert.Equal(t, "/base", cfg.ResolvedMetaStoreRoot())

	cfg.FileStore.Root = "/blobs"
	cfg.MetaStore.Root = "/meta"
	assert.Equal(t, "/blobs", cfg.ResolvedFileStoreRoot())
	assert.Equal(t, "/meta", cfg.ResolvedMetaStoreRoot())
}

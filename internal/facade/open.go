package facade

import (
	"fmt"
	"path/filepath"

	"github.com/mvp-joe/persona-registry/internal/config"
	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/library"
	"github.com/mvp-joe/persona-registry/internal/metastore"
)

// Registry is a fully wired Facade plus the resources it owns, for callers
// that start from configuration rather than pre-opened stores.
type Registry struct {
	*Facade
	meta     *metastore.Engine
	embedder embed.Provider
}

// Open builds the file store, metadata store, embedding provider, and
// built-in skill catalog from cfg and returns a ready Facade. Close
// releases everything Open acquired.
func Open(cfg *config.Config) (*Registry, error) {
	files, err := filestore.NewLocal(cfg.ResolvedFileStoreRoot())
	if err != nil {
		return nil, fmt.Errorf("facade: open file store: %w", err)
	}

	indexDir := filepath.Join(cfg.ResolvedMetaStoreRoot(), cfg.MetaStore.IndexFolder)
	meta, err := metastore.Open(indexDir)
	if err != nil {
		return nil, fmt.Errorf("facade: open metadata store: %w", err)
	}

	provider, err := embed.NewProvider(embed.Config{
		Provider:   "local",
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		meta.Close()
		return nil, fmt.Errorf("facade: create embedding provider: %w", err)
	}

	catalog, err := library.Load()
	if err != nil {
		provider.Close()
		meta.Close()
		return nil, fmt.Errorf("facade: load built-in skills: %w", err)
	}

	return &Registry{
		Facade:   New(files, meta, provider, catalog, cfg),
		meta:     meta,
		embedder: provider,
	}, nil
}

// Close releases the metadata store and the embedding provider.
func (r *Registry) Close() error {
	embErr := r.embedder.Close()
	if err := r.meta.Close(); err != nil {
		return err
	}
	return embErr
}

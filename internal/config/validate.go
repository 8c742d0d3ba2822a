package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFileStoreType indicates an unsupported file_store.type.
	ErrInvalidFileStoreType = errors.New("invalid file store type")

	// ErrInvalidMetaStoreType indicates an unsupported meta_store.type.
	ErrInvalidMetaStoreType = errors.New("invalid meta store type")

	// ErrEmptyIndexFolder indicates a blank meta_store.index_folder.
	ErrEmptyIndexFolder = errors.New("empty index folder")

	// ErrInvalidSimilaritySearch indicates an out-of-range search default.
	ErrInvalidSimilaritySearch = errors.New("invalid similarity search config")

	// ErrInvalidDimensions indicates a non-positive embedding.dimensions.
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrEmptyModel indicates a blank embedding.model.
	ErrEmptyModel = errors.New("empty embedding model")
)

// Validate checks that cfg is complete and internally consistent.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateFileStore(&cfg.FileStore); err != nil {
		errs = append(errs, err)
	}
	if err := validateMetaStore(&cfg.MetaStore); err != nil {
		errs = append(errs, err)
	}
	if err := validateEmbedding(&cfg.Embedding); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateFileStore(cfg *FileStoreConfig) error {
	if strings.ToLower(cfg.Type) != "local" {
		return fmt.Errorf("%w: only 'local' is supported, got %q", ErrInvalidFileStoreType, cfg.Type)
	}
	return nil
}

func validateMetaStore(cfg *MetaStoreConfig) error {
	var errs []error

	if strings.ToLower(cfg.Type) != "sqlite" {
		errs = append(errs, fmt.Errorf("%w: only 'sqlite' is supported, got %q", ErrInvalidMetaStoreType, cfg.Type))
	}
	if strings.TrimSpace(cfg.IndexFolder) == "" {
		errs = append(errs, fmt.Errorf("%w: index_folder is required", ErrEmptyIndexFolder))
	}
	if cfg.SimilaritySearch.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_results must be positive, got %d", ErrInvalidSimilaritySearch, cfg.SimilaritySearch.MaxResults))
	}
	if cfg.SimilaritySearch.MaxCosineDistance <= 0 || cfg.SimilaritySearch.MaxCosineDistance > 2 {
		errs = append(errs, fmt.Errorf("%w: max_cosine_distance must be in (0, 2], got %f", ErrInvalidSimilaritySearch, cfg.SimilaritySearch.MaxCosineDistance))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateEmbedding(cfg *EmbeddingConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.Model) == "" {
		errs = append(errs, fmt.Errorf("%w: model is required", ErrEmptyModel))
	}
	if cfg.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidDimensions, cfg.Dimensions))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

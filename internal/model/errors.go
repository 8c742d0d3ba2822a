// Package model defines the core data types shared across the registry
// engine: template kinds, index entries, and manifests.
package model

import "errors"

// Sentinel errors forming the taxonomy surfaced by the facade. Layers wrap
// these with fmt.Errorf("...: %w", err) so callers can still recover the
// kind with errors.Is.
var (
	// ErrNotFound is returned when a template, blob, or row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingMetadata is returned when frontmatter lacks name or description.
	ErrMissingMetadata = errors.New("missing metadata")

	// ErrInvalidInput is returned for malformed caller input: a relative path
	// where an absolute one is required, a multi-kind transaction, an empty
	// query, and similar caller mistakes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchemaMismatch is returned when a persisted columnar file is
	// incompatible with the current schema. Fatal; requires a reindex.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrTransactionAborted is returned when a file or metadata mutation
	// fails mid-commit. File changes have already been rolled back.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrIO wraps unrecoverable storage errors.
	ErrIO = errors.New("io error")
)

// Package filestore implements an ownership-free byte blob store over a
// root prefix, with read/write/delete/glob and a transaction-logging hook.
package filestore

import (
	"fmt"

	"github.com/mvp-joe/persona-registry/internal/model"
)

// Recorder receives inverse-operation and content-hash notifications from a
// Store as it mutates bytes, so a coordinating transaction can roll back or
// compute a content-addressed id. A nil Recorder means "no transaction
// attached" — operations behave as plain, non-participating writes.
type Recorder interface {
	// RecordRestore notes that key existed with prior bytes before this
	// operation overwrote or removed it; rollback should write prior back.
	RecordRestore(key string, prior []byte)

	// RecordDelete notes that key did not exist before this operation
	// created it; rollback should delete it.
	RecordDelete(key string)

	// RecordHash notes the content hash of bytes written for key, used to
	// derive the transaction id.
	RecordHash(key string, content []byte)
}

// Store is a flat, content-addressable-by-path byte store over a root.
type Store interface {
	// Save writes bytes atomically (create or overwrite), creating parent
	// directories as needed. If rec is non-nil, records the inverse
	// operation and the new content's hash.
	Save(key string, data []byte, rec Recorder) error

	// Load reads bytes for key. Returns an error wrapping model.ErrNotFound
	// if key does not exist.
	Load(key string) ([]byte, error)

	// Delete removes a file (recursive=false) or a directory subtree
	// (recursive=true). If rec is non-nil and key is a single file,
	// records the inverse operation and the removed content's hash.
	Delete(key string, recursive bool, rec Recorder) error

	// Exists reports whether key is present, file or directory.
	Exists(key string) bool

	// IsDir reports whether key refers to a directory.
	IsDir(key string) bool

	// Glob returns keys matching pattern ("**" and "*" supported),
	// normalized to forward-slash paths relative to the store root.
	Glob(pattern string) ([]string, error)

	// ModTime returns the last-modified time of key, for manifest
	// freshness comparisons.
	ModTime(key string) (int64, error)
}

// wrapNotFound wraps err with model.ErrNotFound context for a given key.
func wrapNotFound(key string, err error) error {
	return fmt.Errorf("filestore: key %q: %w: %v", key, model.ErrNotFound, err)
}

// wrapIO wraps an unrecoverable storage error with model.ErrIO so callers
// can distinguish it from NotFound.
func wrapIO(op, key string, err error) error {
	return fmt.Errorf("filestore: %s %q: %w: %v", op, key, model.ErrIO, err)
}

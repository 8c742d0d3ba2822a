// Package metastore implements the metadata store engine: a tabular and
// vector index over IndexEntry rows, one SQLite database per template kind,
// combining a relational table with a sqlite-vec vec0 virtual table so a
// single engine answers both point lookups and similarity search.
package metastore

import (
	"database/sql"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// Dimensions is the fixed embedding width every vector in the store uses.
const Dimensions = 384

// SchemaVersion is bumped whenever the table layout changes incompatibly.
const SchemaVersion = "1"

func init() {
	sqlite_vec.Auto()
}

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS entries (
	name         TEXT PRIMARY KEY,
	date_created TEXT NOT NULL,
	description  TEXT NOT NULL,
	tags         TEXT NOT NULL, -- JSON array of strings
	uuid         TEXT NOT NULL,
	etag         TEXT NOT NULL,
	files        TEXT NOT NULL  -- JSON array of storage paths
)
`

const createRegistryMetadataTable = `
CREATE TABLE IF NOT EXISTS registry_metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)
`

// createSchema creates the entries table, the registry_metadata table, and
// the entries_vec vector index, bootstrapping the schema version on a fresh
// database. The vec0 virtual table is created outside the transaction;
// virtual-table DDL participates badly in explicit transactions.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("metastore: begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(createEntriesTable); err != nil {
		return fmt.Errorf("metastore: create entries table: %w", err)
	}
	if _, err := tx.Exec(createRegistryMetadataTable); err != nil {
		return fmt.Errorf("metastore: create registry_metadata table: %w", err)
	}

	var version string
	err = tx.QueryRow(`SELECT value FROM registry_metadata WHERE key = 'schema_version'`).Scan(&version)
	switch err {
	case sql.ErrNoRows:
		now := time.Now().UTC().Format(time.RFC3339)
		if _, err := tx.Exec(
			`INSERT INTO registry_metadata (key, value) VALUES ('schema_version', ?), ('bootstrapped_at', ?)`,
			SchemaVersion, now,
		); err != nil {
			return fmt.Errorf("metastore: bootstrap registry_metadata: %w", err)
		}
	case nil:
		if version != SchemaVersion {
			return fmt.Errorf("metastore: on-disk schema version %q, expected %q: %w", version, SchemaVersion, errSchemaMismatch)
		}
	default:
		return fmt.Errorf("metastore: read schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("metastore: commit schema transaction: %w", err)
	}

	createVecSQL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS entries_vec USING vec0(name TEXT PRIMARY KEY, embedding float[%d])`,
		Dimensions,
	)
	if _, err := db.Exec(createVecSQL); err != nil {
		return fmt.Errorf("metastore: create vector index: %w", err)
	}

	return nil
}

package metastore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mvp-joe/persona-registry/internal/model"
)

var errSchemaMismatch = model.ErrSchemaMismatch

// Engine is the process-wide MetadataStore: one SQLite database per template
// kind, each combining a relational entries table with a sqlite-vec vec0
// index. It permits many concurrent read sessions but only one write
// session at a time, per the single-writer invariant.
type Engine struct {
	dbs     map[model.Kind]*sql.DB
	writeMu sync.Mutex
}

// Open connects to (creating if absent) the per-kind databases rooted at
// indexDir, bootstrapping schema for each. indexDir is created if missing.
func Open(indexDir string) (*Engine, error) {
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, fmt.Errorf("metastore: create index dir: %w", err)
	}

	dbs := make(map[model.Kind]*sql.DB, 2)
	for _, kind := range []model.Kind{model.KindRole, model.KindSkill} {
		path := filepath.Join(indexDir, kind.Table()+".db")
		db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
		if err != nil {
			closeAll(dbs)
			return nil, fmt.Errorf("metastore: open %s database: %w", kind, err)
		}
		db.SetMaxOpenConns(1) // vec0 + single-writer invariant: serialize per kind db
		if err := createSchema(db); err != nil {
			closeAll(dbs)
			db.Close()
			if errors.Is(err, model.ErrSchemaMismatch) {
				return nil, err
			}
			return nil, fmt.Errorf("metastore: bootstrap %s schema: %w", kind, err)
		}
		dbs[kind] = db
	}

	return &Engine{dbs: dbs}, nil
}

func closeAll(dbs map[model.Kind]*sql.DB) {
	for _, db := range dbs {
		db.Close()
	}
}

// Close releases all per-kind database handles.
func (e *Engine) Close() error {
	var firstErr error
	for kind, db := range e.dbs {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("metastore: close %s database: %w", kind, err)
		}
	}
	return firstErr
}

// ReadSession returns a read-only session safe for concurrent use alongside
// other read sessions and a write session.
func (e *Engine) ReadSession() *Session {
	return &Session{engine: e, queriers: e.dbQueriers()}
}

func (e *Engine) dbQueriers() map[model.Kind]querier {
	m := make(map[model.Kind]querier, len(e.dbs))
	for kind, db := range e.dbs {
		m[kind] = db
	}
	return m
}

// Session begins a write-capable session, blocking until any other write
// session has released the engine. Callers must call Commit or Rollback
// exactly once.
func (e *Engine) Session() (*Session, error) {
	e.writeMu.Lock()

	txs := make(map[model.Kind]*sql.Tx, len(e.dbs))
	queriers := make(map[model.Kind]querier, len(e.dbs))
	for kind, db := range e.dbs {
		tx, err := db.Begin()
		if err != nil {
			for _, t := range txs {
				t.Rollback()
			}
			e.writeMu.Unlock()
			return nil, fmt.Errorf("metastore: begin %s write transaction: %w", kind, err)
		}
		txs[kind] = tx
		queriers[kind] = tx
	}

	return &Session{engine: e, queriers: queriers, txs: txs, writable: true}, nil
}

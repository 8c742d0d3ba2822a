// Package txn implements the Transaction Coordinator: an all-or-nothing
// commit across FileStore writes and MetadataStore mutations, with a
// deterministic content-addressed transaction id.
//
// The coordinator attaches to FileStore operations via the explicit
// filestore.Recorder parameter rather than a back-reference the store holds
// on itself, so filestore stays free of any import on this package.
package txn

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
)

type opKind int

const (
	opRestore opKind = iota
	opDelete
)

// inverseOp is one entry of the rollback log: the operation to apply, in
// reverse order, to undo a FileStore mutation.
type inverseOp struct {
	kind  opKind
	key   string
	prior []byte
}

type stagedKind int

const (
	stagedUpsert stagedKind = iota
	stagedDelete
)

type stagedOp struct {
	kind  stagedKind
	entry model.IndexEntry
}

// Coordinator binds a FileStore and a MetadataStore Engine for the lifetime
// of one transaction scope. It is not safe for concurrent use and must
// never outlive the scope that created it.
type Coordinator struct {
	files filestore.Store
	meta  *metastore.Engine

	log     []inverseOp
	hashes  map[string]string // storage path -> md5 hex of written content
	staged  []stagedOp
	kind    model.Kind
	kindSet bool
}

// New creates a Coordinator over files and meta. Callers should prefer Run,
// which handles commit/rollback bracketing automatically.
func New(files filestore.Store, meta *metastore.Engine) *Coordinator {
	return &Coordinator{
		files:  files,
		meta:   meta,
		hashes: make(map[string]string),
	}
}

// RecordRestore implements filestore.Recorder.
func (c *Coordinator) RecordRestore(key string, prior []byte) {
	c.log = append(c.log, inverseOp{kind: opRestore, key: key, prior: prior})
}

// RecordDelete implements filestore.Recorder.
func (c *Coordinator) RecordDelete(key string) {
	c.log = append(c.log, inverseOp{kind: opDelete, key: key})
}

// RecordHash implements filestore.Recorder.
func (c *Coordinator) RecordHash(key string, content []byte) {
	c.hashes[key] = filestore.HashContent(content)
}

// Index stages an upsert of entry, to be applied at commit.
func (c *Coordinator) Index(entry model.IndexEntry) error {
	if err := c.checkKind(entry.Type); err != nil {
		return err
	}
	c.staged = append(c.staged, stagedOp{kind: stagedUpsert, entry: entry})
	return nil
}

// Deindex stages a delete of entry, to be applied at commit.
func (c *Coordinator) Deindex(entry model.IndexEntry) error {
	if err := c.checkKind(entry.Type); err != nil {
		return err
	}
	c.staged = append(c.staged, stagedOp{kind: stagedDelete, entry: entry})
	return nil
}

func (c *Coordinator) checkKind(k model.Kind) error {
	if !c.kindSet {
		c.kind = k
		c.kindSet = true
		return nil
	}
	if c.kind != k {
		return fmt.Errorf("txn: transaction already staged for kind %q, got %q: %w", c.kind, k, model.ErrInvalidInput)
	}
	return nil
}

// Run opens a transaction scope, invokes fn with the coordinator, and
// brackets it per the commit protocol: fn's error rolls back FileStore
// writes and discards staging; otherwise staged metadata is committed and
// manifests are written. The transaction id is returned on success.
func Run(files filestore.Store, meta *metastore.Engine, fn func(*Coordinator) error) (string, error) {
	c := New(files, meta)

	if err := fn(c); err != nil {
		c.rollbackFiles()
		c.clear()
		return "", err
	}

	id, err := c.commit()
	if err != nil {
		c.rollbackFiles()
		c.clear()
		return "", fmt.Errorf("%w: %v", model.ErrTransactionAborted, err)
	}
	c.clear()
	return id, nil
}

// commit derives the transaction id, writes manifests, and applies staged
// metadata mutations in one write session.
func (c *Coordinator) commit() (string, error) {
	if len(c.staged) == 0 {
		return c.transactionID(), nil
	}

	id := c.transactionID()

	var upserts []model.IndexEntry
	var deleteNames []string
	for i := range c.staged {
		op := c.staged[i]
		switch op.kind {
		case stagedUpsert:
			if op.entry.UUID == "" {
				op.entry.UUID = id
			}
			upserts = append(upserts, op.entry)
		case stagedDelete:
			deleteNames = append(deleteNames, op.entry.Name)
		}
	}

	for _, entry := range upserts {
		manifest := entry.ToManifest()
		data, err := json.Marshal(manifest)
		if err != nil {
			return "", fmt.Errorf("txn: marshal manifest for %q: %w", entry.Name, err)
		}
		path := fmt.Sprintf("%s/%s/.manifest.json", entry.Type.Table(), entry.Name)
		if err := c.files.Save(path, data, c); err != nil {
			return "", fmt.Errorf("txn: write manifest for %q: %w", entry.Name, err)
		}
	}

	sess, err := c.meta.Session()
	if err != nil {
		return "", fmt.Errorf("txn: open write session: %w", err)
	}

	if len(upserts) > 0 {
		if err := sess.Upsert(c.kind, upserts); err != nil {
			sess.Rollback()
			return "", fmt.Errorf("txn: upsert: %w", err)
		}
	}
	if len(deleteNames) > 0 {
		if err := sess.Remove(c.kind, deleteNames); err != nil {
			sess.Rollback()
			return "", fmt.Errorf("txn: remove: %w", err)
		}
	}

	if err := sess.Commit(); err != nil {
		return "", fmt.Errorf("txn: commit metadata session: %w", err)
	}

	return id, nil
}

// transactionID derives a deterministic content-addressed id from the
// sorted-key JSON encoding of the hash map: md5(sorted_json(hashes)).
func (c *Coordinator) transactionID() string {
	keys := make([]string, 0, len(c.hashes))
	for k := range c.hashes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]struct {
		Path string `json:"path"`
		Hash string `json:"hash"`
	}, len(keys))
	for i, k := range keys {
		ordered[i].Path = k
		ordered[i].Hash = c.hashes[k]
	}

	data, _ := json.Marshal(ordered)
	sum := md5.Sum(data)
	return fmt.Sprintf("%x", sum)
}

// rollbackFiles applies the inverse-operation log in reverse order.
func (c *Coordinator) rollbackFiles() {
	for i := len(c.log) - 1; i >= 0; i-- {
		op := c.log[i]
		switch op.kind {
		case opRestore:
			_ = c.files.Save(op.key, op.prior, nil)
		case opDelete:
			_ = c.files.Delete(op.key, false, nil)
		}
	}
}

// clear unconditionally resets the log, hash map, and staging, per the
// scope-exit contract.
func (c *Coordinator) clear() {
	c.log = nil
	c.hashes = make(map[string]string)
	c.staged = nil
	c.kindSet = false
}

package metastore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mvp-joe/persona-registry/internal/model"
)

// querier is the common surface of *sql.DB and *sql.Tx that Session needs,
// letting read and write sessions share query logic regardless of whether
// they run inside a transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

// Session is a MetadataStore session. A read session (from Engine.ReadSession)
// exposes only the read methods meaningfully; calling Upsert/Remove/
// TruncateTables/Commit on a non-writable session is a programming error
// and returns model.ErrInvalidInput, while Rollback on it is a no-op.
type Session struct {
	engine   *Engine
	queriers map[model.Kind]querier
	txs      map[model.Kind]*sql.Tx
	writable bool
	done     bool
}

// SearchRow is an IndexEntry annotated with its cosine-distance score.
type SearchRow struct {
	model.IndexEntry
	Score float64
}

func (s *Session) requireWritable() error {
	if !s.writable {
		return fmt.Errorf("metastore: session is read-only: %w", model.ErrInvalidInput)
	}
	if s.done {
		return fmt.Errorf("metastore: session already closed: %w", model.ErrInvalidInput)
	}
	return nil
}

// Commit commits all per-kind transactions and releases the write lock.
func (s *Session) Commit() error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	s.done = true
	defer s.engine.writeMu.Unlock()

	for kind, tx := range s.txs {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("metastore: commit %s transaction: %w", kind, err)
		}
	}
	return nil
}

// Rollback aborts all per-kind transactions and releases the write lock.
func (s *Session) Rollback() error {
	if !s.writable || s.done {
		return nil
	}
	s.done = true
	defer s.engine.writeMu.Unlock()

	var firstErr error
	for kind, tx := range s.txs {
		if err := tx.Rollback(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("metastore: rollback %s transaction: %w", kind, err)
		}
	}
	return firstErr
}

// Upsert inserts or replaces rows by name, in both the relational table and
// the vector index. The vector side is delete-then-insert since vec0 has no
// INSERT OR REPLACE.
func (s *Session) Upsert(kind model.Kind, rows []model.IndexEntry) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	q := s.queriers[kind]

	for _, row := range rows {
		tagsJSON, err := json.Marshal(row.Tags)
		if err != nil {
			return fmt.Errorf("metastore: marshal tags for %q: %w", row.Name, err)
		}
		filesJSON, err := json.Marshal(row.Files)
		if err != nil {
			return fmt.Errorf("metastore: marshal files for %q: %w", row.Name, err)
		}

		_, err = q.Exec(`
			INSERT INTO entries (name, date_created, description, tags, uuid, etag, files)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				date_created = excluded.date_created,
				description  = excluded.description,
				tags         = excluded.tags,
				uuid         = excluded.uuid,
				etag         = excluded.etag,
				files        = excluded.files
		`, row.Name, row.DateCreated.UTC().Format(time.RFC3339), row.Description, string(tagsJSON), row.UUID, row.Etag, string(filesJSON))
		if err != nil {
			return fmt.Errorf("metastore: upsert %s %q: %w", kind, row.Name, err)
		}

		if _, err := q.Exec(`DELETE FROM entries_vec WHERE name = ?`, row.Name); err != nil {
			return fmt.Errorf("metastore: clear vector for %q: %w", row.Name, err)
		}
		if len(row.Embedding) > 0 {
			embBytes, err := sqlite_vec.SerializeFloat32(row.Embedding)
			if err != nil {
				return fmt.Errorf("metastore: serialize embedding for %q: %w", row.Name, err)
			}
			if _, err := q.Exec(`INSERT INTO entries_vec (name, embedding) VALUES (?, ?)`, row.Name, embBytes); err != nil {
				return fmt.Errorf("metastore: insert vector for %q: %w", row.Name, err)
			}
		}
	}
	return nil
}

// Remove deletes rows whose name is in names, from both tables.
func (s *Session) Remove(kind model.Kind, names []string) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	q := s.queriers[kind]
	for _, name := range names {
		if _, err := q.Exec(`DELETE FROM entries WHERE name = ?`, name); err != nil {
			return fmt.Errorf("metastore: remove %s %q: %w", kind, name, err)
		}
		if _, err := q.Exec(`DELETE FROM entries_vec WHERE name = ?`, name); err != nil {
			return fmt.Errorf("metastore: remove vector %s %q: %w", kind, name, err)
		}
	}
	return nil
}

// TruncateTables clears every kind's tables, used by the reindex pipeline
// before a full re-upsert.
func (s *Session) TruncateTables() error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	for kind, q := range s.queriers {
		if _, err := q.Exec(`DELETE FROM entries`); err != nil {
			return fmt.Errorf("metastore: truncate %s entries: %w", kind, err)
		}
		if _, err := q.Exec(`DELETE FROM entries_vec`); err != nil {
			return fmt.Errorf("metastore: truncate %s entries_vec: %w", kind, err)
		}
	}
	return nil
}

// Exists reports whether a row named name is present for kind.
func (s *Session) Exists(kind model.Kind, name string) (bool, error) {
	var count int
	err := s.queriers[kind].QueryRow(`SELECT COUNT(*) FROM entries WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("metastore: exists %s %q: %w", kind, name, err)
	}
	return count > 0, nil
}

// GetOne returns a single row by name, or model.ErrNotFound.
func (s *Session) GetOne(kind model.Kind, name string) (model.IndexEntry, error) {
	rows, err := s.GetMany(kind, []string{name})
	if err != nil {
		return model.IndexEntry{}, err
	}
	if len(rows) == 0 {
		return model.IndexEntry{}, fmt.Errorf("metastore: %s %q: %w", kind, name, model.ErrNotFound)
	}
	return rows[0], nil
}

// GetMany returns rows for the given names, or all rows if names is empty,
// ordered by name ascending.
func (s *Session) GetMany(kind model.Kind, names []string) ([]model.IndexEntry, error) {
	q := s.queriers[kind]

	var rows *sql.Rows
	var err error
	if len(names) == 0 {
		rows, err = q.Query(`SELECT name, date_created, description, tags, uuid, etag, files FROM entries ORDER BY name ASC`)
	} else {
		placeholders := make([]string, len(names))
		args := make([]any, len(names))
		for i, n := range names {
			placeholders[i] = "?"
			args[i] = n
		}
		query := fmt.Sprintf(
			`SELECT name, date_created, description, tags, uuid, etag, files FROM entries WHERE name IN (%s) ORDER BY name ASC`,
			joinPlaceholders(placeholders),
		)
		rows, err = q.Query(query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("metastore: get %s rows: %w", kind, err)
	}
	defer rows.Close()

	var out []model.IndexEntry
	for rows.Next() {
		entry, err := scanEntry(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metastore: iterate %s rows: %w", kind, err)
	}
	return out, nil
}

// Search performs cosine-distance KNN over the vector index, returning rows
// ordered by ascending distance (descending similarity) then name, with
// score rounded to 3 decimals and filtered to score <= maxCosineDistance.
func (s *Session) Search(kind model.Kind, queryVec []float32, limit int, maxCosineDistance float64) ([]SearchRow, error) {
	q := s.queriers[kind]

	queryBytes, err := sqlite_vec.SerializeFloat32(queryVec)
	if err != nil {
		return nil, fmt.Errorf("metastore: serialize query embedding: %w", err)
	}

	rows, err := q.Query(`
		SELECT name, vec_distance_cosine(embedding, ?) AS distance
		FROM entries_vec
		ORDER BY distance ASC
		LIMIT ?
	`, queryBytes, limit)
	if err != nil {
		return nil, fmt.Errorf("metastore: vector search %s: %w", kind, err)
	}

	type candidate struct {
		name  string
		score float64
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.name, &c.score); err != nil {
			rows.Close()
			return nil, fmt.Errorf("metastore: scan search result: %w", err)
		}
		c.score = math.Round(c.score*1000) / 1000
		if c.score <= maxCosineDistance {
			candidates = append(candidates, c)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("metastore: iterate search results: %w", err)
	}
	rows.Close()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})

	names := make([]string, len(candidates))
	scoreByName := make(map[string]float64, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
		scoreByName[c.name] = c.score
	}

	entries, err := s.GetMany(kind, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]model.IndexEntry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	out := make([]SearchRow, 0, len(names))
	for _, name := range names {
		entry, ok := byName[name]
		if !ok {
			continue // row existed in the vector index but not the relational table
		}
		out = append(out, SearchRow{IndexEntry: entry, Score: scoreByName[name]})
	}
	return out, nil
}

func scanEntry(rows *sql.Rows, kind model.Kind) (model.IndexEntry, error) {
	var (
		name, dateCreated, description, tagsJSON, uuid, etag, filesJSON string
	)
	if err := rows.Scan(&name, &dateCreated, &description, &tagsJSON, &uuid, &etag, &filesJSON); err != nil {
		return model.IndexEntry{}, fmt.Errorf("metastore: scan %s row: %w", kind, err)
	}

	var tags, files []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return model.IndexEntry{}, fmt.Errorf("metastore: unmarshal tags for %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &files); err != nil {
		return model.IndexEntry{}, fmt.Errorf("metastore: unmarshal files for %q: %w", name, err)
	}

	created, err := time.Parse(time.RFC3339, dateCreated)
	if err != nil {
		return model.IndexEntry{}, fmt.Errorf("metastore: parse date_created for %q: %w", name, err)
	}

	return model.IndexEntry{
		Name:        name,
		Description: description,
		UUID:        uuid,
		Etag:        etag,
		Files:       files,
		Tags:        tags,
		Type:        kind,
		DateCreated: created,
	}, nil
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}

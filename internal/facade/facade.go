// Package facade implements the registry's operation surface: the narrow
// set of calls an RPC/CLI/TUI collaborator consumes. It is a plain Go
// package with no transport awareness, binding together the file store,
// metadata store engine, embedder, and built-in skill catalog built by the
// lower packages.
package facade

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mvp-joe/persona-registry/internal/config"
	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/frontmatter"
	"github.com/mvp-joe/persona-registry/internal/library"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
	"github.com/mvp-joe/persona-registry/internal/processor"
	"github.com/mvp-joe/persona-registry/internal/txn"
)

// extWhitelist limits which files GetSkillFiles bundles for a
// registry-published skill: everything but the root file must carry a
// recognized text/code extension, so a stray binary blob swept into a skill
// directory isn't served to an LLM. Built-in library skills are returned
// unfiltered. GetDefinition and ListTemplates are unaffected; they don't
// bundle arbitrary sibling files.
var extWhitelist = map[string]bool{
	".md": true, ".txt": true, ".py": true, ".sh": true, ".js": true,
	".ts": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
	".cfg": true, ".ini": true, ".csv": true, ".html": true, ".css": true,
}

// Row is a projected, column-filtered view of an IndexEntry, the facade's
// plain-value return shape for list/search.
type Row map[string]any

// Facade binds the lower-level components into the operation surface
// consumed by external collaborators.
type Facade struct {
	files    filestore.Store
	meta     *metastore.Engine
	embedder embed.Provider
	cfg      *config.Config
	catalog  *library.Catalog
}

// New constructs a Facade over already-opened stores.
func New(files filestore.Store, meta *metastore.Engine, embedder embed.Provider, catalog *library.Catalog, cfg *config.Config) *Facade {
	return &Facade{files: files, meta: meta, embedder: embedder, cfg: cfg, catalog: catalog}
}

func entryToRow(e model.IndexEntry, columns []string) Row {
	full := Row{
		"name":         e.Name,
		"description":  e.Description,
		"uuid":         e.UUID,
		"etag":         e.Etag,
		"files":        e.Files,
		"tags":         e.Tags,
		"type":         string(e.Type),
		"date_created": e.DateCreated,
	}
	if len(columns) == 0 {
		return full
	}
	out := make(Row, len(columns))
	for _, c := range columns {
		if v, ok := full[c]; ok {
			out[c] = v
		}
	}
	return out
}

// ListTemplates lists every row of kind's table, projected to columns (all
// columns if empty).
func (f *Facade) ListTemplates(kind model.Kind, columns []string) ([]Row, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("facade: invalid kind %q: %w", kind, model.ErrInvalidInput)
	}
	entries, err := f.meta.ReadSession().GetMany(kind, nil)
	if err != nil {
		return nil, fmt.Errorf("facade: list %s: %w", kind, err)
	}
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = entryToRow(e, columns)
	}
	return rows, nil
}

// SearchOptions carries the optional overrides to SearchTemplates; zero
// values fall back to the configured similarity-search defaults.
type SearchOptions struct {
	Limit             int
	MaxCosineDistance float64
}

// SearchTemplates embeds query and returns kind's rows ordered by ascending
// cosine distance, projected to columns.
func (f *Facade) SearchTemplates(ctx context.Context, query string, kind model.Kind, columns []string, opts SearchOptions) ([]Row, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("facade: invalid kind %q: %w", kind, model.ErrInvalidInput)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("facade: empty query: %w", model.ErrInvalidInput)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = f.cfg.MetaStore.SimilaritySearch.MaxResults
	}
	maxDist := opts.MaxCosineDistance
	if maxDist <= 0 {
		maxDist = f.cfg.MetaStore.SimilaritySearch.MaxCosineDistance
	}

	vecs, err := f.embedder.Embed(ctx, []string{query}, embed.EmbedModeQuery)
	if err != nil {
		return nil, fmt.Errorf("facade: embed query: %w", err)
	}

	results, err := f.meta.ReadSession().Search(kind, vecs[0], limit, maxDist)
	if err != nil {
		return nil, fmt.Errorf("facade: search %s: %w", kind, err)
	}

	rows := make([]Row, len(results))
	for i, r := range results {
		row := entryToRow(r.IndexEntry, columns)
		if len(columns) == 0 || contains(columns, "score") {
			row["score"] = r.Score
		}
		rows[i] = row
	}
	return rows, nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// GetDefinition returns the raw bytes of name's root file.
func (f *Facade) GetDefinition(name string, kind model.Kind) ([]byte, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("facade: invalid kind %q: %w", kind, model.ErrInvalidInput)
	}
	exists, err := f.meta.ReadSession().Exists(kind, name)
	if err != nil {
		return nil, fmt.Errorf("facade: check %s %q: %w", kind, name, err)
	}
	if !exists {
		return nil, fmt.Errorf("facade: %s %q: %w", kind, name, model.ErrNotFound)
	}

	path := fmt.Sprintf("%s/%s/%s", kind.Table(), name, kind.RootFile())
	data, err := f.files.Load(path)
	if err != nil {
		return nil, fmt.Errorf("facade: load %q: %w", path, err)
	}
	return data, nil
}

// TemplateDetails decomposes a role's root file into its parsed
// frontmatter description and prompt body, layered on top of
// GetDefinition.
type TemplateDetails struct {
	Name        string
	Description string
	Prompt      string
}

// GetRoleDetails returns a role's description and prompt body, decomposed
// from GetDefinition's raw bytes.
func (f *Facade) GetRoleDetails(name string) (TemplateDetails, error) {
	data, err := f.GetDefinition(name, model.KindRole)
	if err != nil {
		return TemplateDetails{}, err
	}
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return TemplateDetails{}, fmt.Errorf("facade: parse role %q: %w", name, err)
	}
	return TemplateDetails{
		Name:        name,
		Description: frontmatter.StringField(doc.Metadata, "description"),
		Prompt:      strings.TrimSpace(doc.Body),
	}, nil
}

// GetSkillFiles returns a skill's constituent files as {filename -> bytes},
// keyed by storage path ("skills/<name>/<subpath>") so installers can
// preserve the directory layout. Library (built-in) skills short-circuit the
// registry lookup entirely; their embedded files are keyed under the same
// "skills/<name>/" prefix as registry-published ones.
func (f *Facade) GetSkillFiles(name string) (map[string][]byte, error) {
	if f.catalog != nil && f.catalog.Has(name) {
		embedded := f.catalog.Files(name)
		out := make(map[string][]byte, len(embedded))
		for rel, data := range embedded {
			out[model.KindSkill.Table()+"/"+name+"/"+rel] = data
		}
		return out, nil
	}

	exists, err := f.meta.ReadSession().Exists(model.KindSkill, name)
	if err != nil {
		return nil, fmt.Errorf("facade: check skill %q: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("facade: skill %q: %w", name, model.ErrNotFound)
	}

	entry, err := f.meta.ReadSession().GetOne(model.KindSkill, name)
	if err != nil {
		return nil, fmt.Errorf("facade: get skill %q: %w", name, err)
	}

	rootPath := skillRootPath(name)
	out := make(map[string][]byte, len(entry.Files))
	for _, storagePath := range entry.Files {
		if storagePath != rootPath && !extWhitelist[filepath.Ext(storagePath)] {
			continue
		}
		data, err := f.files.Load(storagePath)
		if err != nil {
			return nil, fmt.Errorf("facade: load %q: %w", storagePath, err)
		}
		out[storagePath] = data
	}
	return out, nil
}

func skillRootPath(name string) string {
	return fmt.Sprintf("%s/%s/%s", model.KindSkill.Table(), name, model.KindSkill.RootFile())
}

// InstallSkill writes a skill's files into localDir, injecting
// metadata.version into SKILL.md for registry-published skills (library
// skills carry no content-addressed version). Returns the absolute path
// to the written SKILL.md.
func (f *Facade) InstallSkill(name, localDir string) (string, error) {
	if !filepath.IsAbs(localDir) {
		return "", fmt.Errorf("facade: install dir %q is not absolute: %w", localDir, model.ErrInvalidInput)
	}
	if info, err := os.Stat(localDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("facade: install dir %q does not exist: %w", localDir, model.ErrInvalidInput)
	}

	files, err := f.GetSkillFiles(name)
	if err != nil {
		return "", err
	}

	version := ""
	if f.catalog == nil || !f.catalog.Has(name) {
		entry, err := f.meta.ReadSession().GetOne(model.KindSkill, name)
		if err != nil {
			return "", fmt.Errorf("facade: get skill %q: %w", name, err)
		}
		version = entry.UUID
	}

	rootPath := skillRootPath(name)
	var skillMDPath string
	for storagePath, data := range files {
		content := data
		if storagePath == rootPath && version != "" {
			doc, err := frontmatter.Parse(data)
			if err != nil {
				return "", fmt.Errorf("facade: parse %q for install: %w", storagePath, err)
			}
			rewritten, err := frontmatter.Dump(frontmatter.WithVersion(doc, version))
			if err != nil {
				return "", fmt.Errorf("facade: rewrite %q for install: %w", storagePath, err)
			}
			content = rewritten
		}

		// "skills/web_scraper/SKILL.md" installs to <localDir>/web_scraper/SKILL.md.
		rel := strings.TrimPrefix(storagePath, model.KindSkill.Table()+"/")
		dest := filepath.Join(localDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return "", fmt.Errorf("facade: mkdir for %q: %w", dest, err)
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return "", fmt.Errorf("facade: write %q: %w", dest, err)
		}
		if storagePath == rootPath {
			skillMDPath = dest
		}
	}

	if skillMDPath == "" {
		return "", fmt.Errorf("facade: skill %q has no SKILL.md: %w", name, model.ErrNotFound)
	}
	return skillMDPath, nil
}

// PublishInput is the caller-supplied registration for PublishTemplate.
type PublishInput struct {
	Path        string
	Kind        model.Kind
	Name        string
	Description string
	Tags        []string
}

// PublishTemplate runs the Template Processor inside a Transaction,
// returning the committed IndexEntry (its UUID is the transaction id).
func (f *Facade) PublishTemplate(ctx context.Context, in PublishInput) (model.IndexEntry, error) {
	var entry model.IndexEntry
	id, err := txn.Run(f.files, f.meta, func(c *txn.Coordinator) error {
		var procErr error
		entry, procErr = processor.Process(ctx, c, f.files, f.embedder, processor.Input{
			Path:        in.Path,
			Kind:        in.Kind,
			Name:        in.Name,
			Description: in.Description,
			Tags:        in.Tags,
		})
		return procErr
	})
	if err != nil {
		return model.IndexEntry{}, err
	}
	entry.UUID = id
	return entry, nil
}

// DeleteTemplate removes name's files, manifest, and directory from the
// FileStore and deindexes it from the MetadataStore, all inside one
// Transaction so a mid-failure rolls back cleanly.
func (f *Facade) DeleteTemplate(name string, kind model.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("facade: invalid kind %q: %w", kind, model.ErrInvalidInput)
	}

	entry, err := f.meta.ReadSession().GetOne(kind, name)
	if err != nil {
		return err
	}

	_, err = txn.Run(f.files, f.meta, func(c *txn.Coordinator) error {
		for _, path := range entry.Files {
			if err := f.files.Delete(path, false, c); err != nil {
				return fmt.Errorf("delete %q: %w", path, err)
			}
		}

		manifestPath := fmt.Sprintf("%s/%s/.manifest.json", kind.Table(), name)
		if f.files.Exists(manifestPath) {
			if err := f.files.Delete(manifestPath, false, c); err != nil {
				return fmt.Errorf("delete manifest %q: %w", manifestPath, err)
			}
		}

		// Best-effort cleanup of the (now empty, or stray-file-containing)
		// directory; not transaction-tracked since every byte-bearing entry
		// under it was already deleted (and thus rollback-recorded) above.
		dir := fmt.Sprintf("%s/%s", kind.Table(), name)
		_ = f.files.Delete(dir, true, nil)

		return c.Deindex(entry)
	})
	return err
}

// GetSkillVersion returns a published skill's content-addressed uuid.
// Library skills have no registry row and so are NotFound here, even if a
// same-named skill is also published; a built-in skill's identity stays
// distinct from a user-published one.
func (f *Facade) GetSkillVersion(name string) (string, error) {
	if f.catalog != nil && f.catalog.Has(name) {
		return "", fmt.Errorf("facade: skill %q is a library skill: %w", name, model.ErrNotFound)
	}
	entry, err := f.meta.ReadSession().GetOne(model.KindSkill, name)
	if err != nil {
		return "", err
	}
	return entry.UUID, nil
}

// Package reindex implements the reindex pipeline: a producer/consumer
// scan of the file store that rebuilds IndexEntry records for every
// template on disk, using manifest sidecars to skip reparsing unchanged
// templates.
package reindex

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/frontmatter"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
	"github.com/mvp-joe/persona-registry/internal/tagger"
)

// queueCapacity is the producer->consumer channel's buffer size.
const queueCapacity = 128

// batchSize is the largest group of entries the consumer embeds and tags
// in one call.
const batchSize = 32

const manifestFileName = ".manifest.json"

// producedEntry is one item flowing through the pipeline's channel: an
// assembled (but not yet embedded) IndexEntry, and, for entries that were
// reparsed from source rather than loaded from a fresh manifest, the
// sidecar path the consumer should rewrite once the entry is complete.
type producedEntry struct {
	entry        model.IndexEntry
	manifestPath string // empty if loaded from a fresh manifest
}

// Result is the pipeline's output: every reindexed entry, grouped by kind,
// ready for the caller to truncate+upsert in one writable metadata session.
type Result map[model.Kind][]model.IndexEntry

// Run scans every kind under files for root template files, reparsing or
// reusing fresh manifests, batching embedding and tag extraction, and
// returns the rebuilt entries per kind. It does not touch the metadata
// store; use Apply (or one write session) to truncate and upsert tables
// from the Result.
func Run(ctx context.Context, files filestore.Store, kinds []model.Kind, provider embed.Provider, tags *tagger.Tagger) (Result, error) {
	return RunWithProgress(ctx, files, kinds, provider, tags, NoOpReporter{})
}

// RunWithProgress is Run with a Reporter receiving discovery and per-entry
// progress callbacks, for CLI-facing bulk reindex feedback.
func RunWithProgress(ctx context.Context, files filestore.Store, kinds []model.Kind, provider embed.Provider, tags *tagger.Tagger, reporter Reporter) (Result, error) {
	roots, err := discover(files, kinds)
	if err != nil {
		return nil, err
	}
	reporter.OnScanComplete(len(roots))

	queue := make(chan producedEntry, queueCapacity)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		return produce(gctx, files, roots, queue)
	})

	var result Result
	g.Go(func() error {
		var err error
		result, err = consume(gctx, files, provider, tags, queue, reporter)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, entries := range result {
		total += len(entries)
	}
	reporter.OnComplete(total)
	return result, nil
}

// Apply truncates every kind table and upserts result's entries in one
// writable metadata session, so readers observe either the old full tables
// or the new ones, never a mix.
func Apply(meta *metastore.Engine, result Result) error {
	sess, err := meta.Session()
	if err != nil {
		return fmt.Errorf("reindex: open write session: %w", err)
	}

	if err := sess.TruncateTables(); err != nil {
		sess.Rollback()
		return fmt.Errorf("reindex: truncate tables: %w", err)
	}
	for kind, entries := range result {
		if len(entries) == 0 {
			continue
		}
		if err := sess.Upsert(kind, entries); err != nil {
			sess.Rollback()
			return fmt.Errorf("reindex: upsert %s entries: %w", kind, err)
		}
	}

	if err := sess.Commit(); err != nil {
		return fmt.Errorf("reindex: commit: %w", err)
	}
	return nil
}

// rootFile is one discovered template root, ready for the producer.
type rootFile struct {
	kind model.Kind
	path string
}

func discover(files filestore.Store, kinds []model.Kind) ([]rootFile, error) {
	var roots []rootFile
	for _, kind := range kinds {
		pattern := kind.Table() + "/**/" + kind.RootFile()
		matches, err := files.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("reindex: glob %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			roots = append(roots, rootFile{kind: kind, path: m})
		}
	}
	return roots, nil
}

func produce(ctx context.Context, files filestore.Store, roots []rootFile, queue chan<- producedEntry) error {
	for _, root := range roots {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		produced, err := produceOne(files, root.kind, root.path)
		if err != nil {
			log.Printf("reindex: skipping %s: %v", root.path, err)
			continue
		}

		select {
		case queue <- produced:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func produceOne(files filestore.Store, kind model.Kind, rootPath string) (producedEntry, error) {
	parentDir := path.Dir(rootPath)
	manifestPath := parentDir + "/" + manifestFileName

	rootModTime, err := files.ModTime(rootPath)
	if err != nil {
		return producedEntry{}, fmt.Errorf("stat root file: %w", err)
	}

	if files.Exists(manifestPath) {
		manifestModTime, err := files.ModTime(manifestPath)
		if err == nil && manifestModTime >= rootModTime {
			entry, err := loadManifest(files, manifestPath, kind)
			if err == nil {
				return producedEntry{entry: entry}, nil
			}
			log.Printf("reindex: manifest %s unreadable, reparsing: %v", manifestPath, err)
		}
	}

	return produceFromSource(files, kind, rootPath, parentDir, manifestPath)
}

func loadManifest(files filestore.Store, manifestPath string, kind model.Kind) (model.IndexEntry, error) {
	data, err := files.Load(manifestPath)
	if err != nil {
		return model.IndexEntry{}, err
	}
	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return model.IndexEntry{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	entry := model.FromManifest(m)
	entry.Type = kind
	return entry, nil
}

func produceFromSource(files filestore.Store, kind model.Kind, rootPath, parentDir, manifestPath string) (producedEntry, error) {
	rootBytes, err := files.Load(rootPath)
	if err != nil {
		return producedEntry{}, fmt.Errorf("load root file: %w", err)
	}

	doc, err := frontmatter.Parse(rootBytes)
	if err != nil {
		return producedEntry{}, fmt.Errorf("parse frontmatter: %w", err)
	}

	name := frontmatter.StringField(doc.Metadata, "name")
	description := frontmatter.StringField(doc.Metadata, "description")
	if name == "" || description == "" {
		return producedEntry{}, fmt.Errorf("missing name/description: %w", model.ErrMissingMetadata)
	}
	tags := frontmatter.StringSliceField(doc.Metadata, "tags")

	// "**" rather than "**/*": the latter would demand a separator after the
	// prefix and skip the template directory's direct children.
	siblings, err := files.Glob(parentDir + "/**")
	if err != nil {
		return producedEntry{}, fmt.Errorf("glob siblings: %w", err)
	}
	sort.Strings(siblings)

	filesList := make([]string, 0, len(siblings)+1)
	filesList = append(filesList, rootPath)
	for _, s := range siblings {
		if s == rootPath || s == manifestPath || files.IsDir(s) {
			continue
		}
		if strings.HasSuffix(s, "/"+manifestFileName) {
			continue
		}
		filesList = append(filesList, s)
	}

	sum := md5.Sum(rootBytes)

	entry := model.IndexEntry{
		Name:        name,
		Description: fmt.Sprintf("%s - %s", name, description),
		UUID:        uuid.NewString(),
		Etag:        fmt.Sprintf("%x", sum),
		Files:       filesList,
		Tags:        model.DedupTags(tags),
		Type:        kind,
		DateCreated: time.Now().UTC(),
	}

	return producedEntry{entry: entry, manifestPath: manifestPath}, nil
}

func consume(ctx context.Context, files filestore.Store, provider embed.Provider, tags *tagger.Tagger, queue <-chan producedEntry, reporter Reporter) (Result, error) {
	result := make(Result)

	var batch []producedEntry
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := processBatch(ctx, files, provider, tags, batch, result, reporter); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case produced, ok := <-queue:
			if !ok {
				return result, flush()
			}
			batch = append(batch, produced)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return nil, err
				}
			}
		case <-ctx.Done():
			_ = flush() // best-effort: persist whatever embedded cleanly before cancellation
			return nil, ctx.Err()
		}
	}
}

func processBatch(ctx context.Context, files filestore.Store, provider embed.Provider, tags *tagger.Tagger, batch []producedEntry, result Result, reporter Reporter) error {
	texts := make([]string, len(batch))
	ids := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.entry.Description
		ids[i] = p.entry.Name
	}

	embeddings, err := provider.Embed(ctx, texts, embed.EmbedModePassage)
	if err != nil {
		return fmt.Errorf("reindex: embed batch: %w", err)
	}

	extracted, err := tags.Extract(ctx, ids, texts)
	if err != nil {
		return fmt.Errorf("reindex: extract tags: %w", err)
	}

	for i, p := range batch {
		entry := p.entry
		entry.Embedding = embeddings[i]
		if len(entry.Tags) == 0 {
			entry.Tags = extracted[entry.Name]
		}

		if p.manifestPath != "" {
			manifestData, err := json.Marshal(entry.ToManifest())
			if err != nil {
				return fmt.Errorf("reindex: marshal manifest for %q: %w", entry.Name, err)
			}
			if err := files.Save(p.manifestPath, manifestData, nil); err != nil {
				return fmt.Errorf("reindex: write manifest for %q: %w", entry.Name, err)
			}
		}

		result[entry.Type] = append(result[entry.Type], entry)
		reporter.OnEntryIndexed(entry.Name)
	}
	return nil
}

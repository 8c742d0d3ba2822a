// Package processor implements the template processor: validates a
// candidate template path, extracts and merges frontmatter, enumerates
// constituent files, rewrites the root file's frontmatter with canonical
// name/description, and stages writes plus an IndexEntry into a
// transaction coordinator.
package processor

import (
	"context"
	"crypto/md5"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/frontmatter"
	"github.com/mvp-joe/persona-registry/internal/model"
)

// Coordinator is the subset of txn.Coordinator the processor needs: a
// Save-recording FileStore writer and a stage-for-commit Index call. Kept
// as a narrow interface so tests can exercise the processor without a real
// Transaction Coordinator import cycle.
type Coordinator interface {
	filestore.Recorder
	Index(entry model.IndexEntry) error
}

// Input is the caller-supplied partial template registration.
type Input struct {
	// Path is a filesystem path to the root file or a directory containing
	// one. It is read directly off the local disk — templates are authored
	// there before being published into the registry's FileStore.
	Path string
	Kind model.Kind

	// Name, Description, and Tags override the root file's frontmatter when
	// non-empty/non-nil.
	Name        string
	Description string
	Tags        []string
}

// manifestFileName is excluded from file enumeration; it is written
// separately by the Transaction Coordinator at commit time.
const manifestFileName = ".manifest.json"

// Process runs the template-processing state machine: validate the path,
// merge frontmatter with caller overrides, embed the canonical description,
// enumerate and materialize files through files, and stage the resulting
// entry on coord. Callers must run this inside a transaction scope so a
// failure partway through rolls back cleanly.
func Process(ctx context.Context, coord Coordinator, files filestore.Store, provider embed.Provider, in Input) (model.IndexEntry, error) {
	if !in.Kind.Valid() {
		return model.IndexEntry{}, fmt.Errorf("processor: invalid kind %q: %w", in.Kind, model.ErrInvalidInput)
	}

	rootFile := in.Kind.RootFile()

	info, err := os.Stat(in.Path)
	if err != nil {
		return model.IndexEntry{}, fmt.Errorf("processor: path %q: %w", in.Path, model.ErrNotFound)
	}

	var sourceDir, rootFilePath string
	if info.IsDir() {
		sourceDir = in.Path
		rootFilePath = filepath.Join(sourceDir, rootFile)
		if _, err := os.Stat(rootFilePath); err != nil {
			return model.IndexEntry{}, fmt.Errorf("processor: %q has no %s: %w", in.Path, rootFile, model.ErrNotFound)
		}
	} else {
		if filepath.Base(in.Path) != rootFile {
			return model.IndexEntry{}, fmt.Errorf("processor: file %q is not named %s: %w", in.Path, rootFile, model.ErrInvalidInput)
		}
		sourceDir = filepath.Dir(in.Path)
		rootFilePath = in.Path
	}

	rootBytes, err := os.ReadFile(rootFilePath)
	if err != nil {
		return model.IndexEntry{}, fmt.Errorf("processor: read root file %q: %w", rootFilePath, err)
	}

	doc, err := frontmatter.Parse(rootBytes)
	if err != nil {
		return model.IndexEntry{}, fmt.Errorf("processor: parse frontmatter: %w", err)
	}

	name := firstNonEmpty(in.Name, frontmatter.StringField(doc.Metadata, "name"))
	description := firstNonEmpty(in.Description, frontmatter.StringField(doc.Metadata, "description"))
	tags := in.Tags
	if tags == nil {
		tags = frontmatter.StringSliceField(doc.Metadata, "tags")
	}
	if tags == nil {
		tags = []string{}
	}

	if name == "" || description == "" {
		return model.IndexEntry{}, fmt.Errorf("processor: template at %q has no name/description: %w", in.Path, model.ErrMissingMetadata)
	}

	canonicalDescription := fmt.Sprintf("%s - %s", name, description)

	embeddings, err := provider.Embed(ctx, []string{canonicalDescription}, embed.EmbedModePassage)
	if err != nil {
		return model.IndexEntry{}, fmt.Errorf("processor: embed description: %w", err)
	}

	sourceFiles, err := enumerateFiles(sourceDir, info.IsDir(), rootFilePath)
	if err != nil {
		return model.IndexEntry{}, fmt.Errorf("processor: enumerate files: %w", err)
	}

	entry := model.IndexEntry{
		Name:        name,
		Description: canonicalDescription,
		Tags:        model.DedupTags(tags),
		Embedding:   embeddings[0],
		Type:        in.Kind,
		DateCreated: time.Now().UTC(),
	}

	var etag string
	storagePaths := make([]string, 0, len(sourceFiles))
	for _, src := range sourceFiles {
		storagePath := storagePathFor(in.Kind, name, src.relPath)

		data, err := os.ReadFile(src.absPath)
		if err != nil {
			return model.IndexEntry{}, fmt.Errorf("processor: read %q: %w", src.absPath, err)
		}

		if src.absPath == rootFilePath {
			rewritten, err := frontmatter.Dump(frontmatter.WithCanonicalMetadata(doc, name, canonicalDescription))
			if err != nil {
				return model.IndexEntry{}, fmt.Errorf("processor: rewrite root frontmatter: %w", err)
			}
			data = rewritten
			sum := md5.Sum(data)
			etag = fmt.Sprintf("%x", sum)
		}

		if err := files.Save(storagePath, data, coord); err != nil {
			return model.IndexEntry{}, fmt.Errorf("processor: save %q: %w", storagePath, err)
		}
		storagePaths = append(storagePaths, storagePath)
	}

	entry.Files = storagePaths
	entry.Etag = etag

	if err := coord.Index(entry); err != nil {
		return model.IndexEntry{}, fmt.Errorf("processor: stage index entry: %w", err)
	}

	return entry, nil
}

type sourceFile struct {
	absPath string
	relPath string
}

// enumerateFiles lists the constituent files of a template, root file
// first: just the root file when the input path is a file, or every
// non-directory file under sourceDir (manifests excluded) when it is a
// directory, whatever the template kind.
func enumerateFiles(sourceDir string, isDir bool, rootFilePath string) ([]sourceFile, error) {
	rootRel, err := filepath.Rel(sourceDir, rootFilePath)
	if err != nil {
		return nil, err
	}
	rootRel = filepath.ToSlash(rootRel)

	if !isDir {
		return []sourceFile{{absPath: rootFilePath, relPath: rootRel}}, nil
	}

	var others []sourceFile
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Name() == manifestFileName {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == rootRel {
			return nil // added first, below
		}
		others = append(others, sourceFile{absPath: path, relPath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(others, func(i, j int) bool { return others[i].relPath < others[j].relPath })

	out := make([]sourceFile, 0, len(others)+1)
	out = append(out, sourceFile{absPath: rootFilePath, relPath: rootRel})
	out = append(out, others...)
	return out, nil
}

// storagePathFor builds the storage key for a constituent file, stripping
// any ".persona" path segment so templates authored under a workspace's
// ".persona/" convention directory land at the same storage layout as ones
// authored bare.
func storagePathFor(kind model.Kind, name, relPath string) string {
	segments := strings.Split(relPath, "/")
	kept := segments[:0]
	for _, seg := range segments {
		if seg == ".persona" {
			continue
		}
		kept = append(kept, seg)
	}
	return fmt.Sprintf("%s/%s/%s", kind.Table(), name, strings.Join(kept, "/"))
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

package reindex

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mvp-joe/persona-registry/internal/embed"
	"github.com/mvp-joe/persona-registry/internal/filestore"
	"github.com/mvp-joe/persona-registry/internal/metastore"
	"github.com/mvp-joe/persona-registry/internal/model"
	"github.com/mvp-joe/persona-registry/internal/tagger"
)

// Watch watches rootDir for filesystem changes and invokes onChange once
// per debounced burst of events, so a caller can trigger Run incrementally
// instead of polling. Only rootDir itself is added to the watcher, and
// fsnotify does not recurse: creating, writing, renaming or removing a
// direct child of rootDir fires onChange, but edits inside the kind and
// template subdirectories (such as roles/<name>/ROLE.md) do not. Events
// are not filtered by file extension.
//
// Watch blocks until ctx is canceled or an unrecoverable watcher error
// occurs.
func Watch(ctx context.Context, rootDir string, debounce time.Duration, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("reindex: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(rootDir); err != nil {
		return fmt.Errorf("reindex: watch %q: %w", rootDir, err)
	}

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("reindex: watch error: %v", err)

		case <-fire:
			onChange()
		}
	}
}

// ReindexOnChange watches rootDir and, after each debounced burst of
// filesystem changes that Watch reports, reruns the full pipeline and applies the result to
// meta. A nil reporter gets a terminal progress bar, the watch-mode
// default. Blocks until ctx is canceled or the watcher fails.
func ReindexOnChange(ctx context.Context, files filestore.Store, rootDir string, kinds []model.Kind, provider embed.Provider, tags *tagger.Tagger, meta *metastore.Engine, reporter Reporter, debounce time.Duration) error {
	if reporter == nil {
		reporter = NewBarReporter()
	}

	return Watch(ctx, rootDir, debounce, func() {
		result, err := RunWithProgress(ctx, files, kinds, provider, tags, reporter)
		if err != nil {
			log.Printf("reindex: %v", err)
			return
		}
		if err := Apply(meta, result); err != nil {
			log.Printf("reindex: apply: %v", err)
		}
	})
}

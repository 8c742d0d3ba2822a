package filestore

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Local is a Store backed by the local filesystem, rooted at a directory.
// Keys are POSIX-style relative paths; the store rejects ".." segments and
// normalizes host path separators to forward slashes on read paths.
type Local struct {
	root string
}

// NewLocal creates a Store rooted at root. The root directory is created if
// it does not already exist.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// cleanKey validates and normalizes a storage key to a root-relative path.
func cleanKey(key string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("filestore: empty key")
	}
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, "/../") {
		return "", fmt.Errorf("filestore: key %q escapes store root", key)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

func (l *Local) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// Save writes bytes atomically via a temp-file-then-rename.
func (l *Local) Save(key string, data []byte, rec Recorder) error {
	full, err := l.path(key)
	if err != nil {
		return err
	}

	var priorExists bool
	var prior []byte
	if b, err := os.ReadFile(full); err == nil {
		priorExists = true
		prior = b
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("filestore: stat %q: %w", key, err)
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("filestore: mkdir for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: create temp for %q: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write temp for %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close temp for %q: %w", key, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: rename temp for %q: %w", key, err)
	}

	if rec != nil {
		if priorExists {
			rec.RecordRestore(key, prior)
		} else {
			rec.RecordDelete(key)
		}
		rec.RecordHash(key, data)
	}
	return nil
}

// Load reads bytes for key.
func (l *Local) Load(key string) ([]byte, error) {
	full, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wrapNotFound(key, err)
		}
		return nil, wrapIO("read", key, err)
	}
	return data, nil
}

// Delete removes a file or, when recursive is true, a directory subtree.
func (l *Local) Delete(key string, recursive bool, rec Recorder) error {
	full, err := l.path(key)
	if err != nil {
		return err
	}

	if recursive {
		return os.RemoveAll(full)
	}

	if rec != nil {
		if prior, err := os.ReadFile(full); err == nil {
			rec.RecordRestore(key, prior)
			rec.RecordHash(key, prior)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("filestore: stat before delete %q: %w", key, err)
		}
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: delete %q: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (l *Local) Exists(key string) bool {
	full, err := l.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// IsDir reports whether key is a directory.
func (l *Local) IsDir(key string) bool {
	full, err := l.path(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.IsDir()
}

// ModTime returns the unix-nano modification time of key.
func (l *Local) ModTime(key string) (int64, error) {
	full, err := l.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, wrapNotFound(key, err)
		}
		return 0, wrapIO("stat", key, err)
	}
	return info.ModTime().UnixNano(), nil
}

// Glob returns keys under the root matching pattern, supporting "*" and
// "**", with '/' as the separator.
func (l *Local) Glob(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("filestore: compile pattern %q: %w", pattern, err)
	}

	var matches []string
	err = filepath.Walk(l.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if g.Match(rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filestore: glob %q: %w", pattern, err)
	}
	return matches, nil
}

// hashContent returns the md5 hex digest of content, used by callers that
// need an etag without going through a transaction's Recorder.
func hashContent(content []byte) string {
	sum := md5.Sum(content)
	return fmt.Sprintf("%x", sum)
}

// HashContent exposes the md5 hex digest helper for etag computation.
func HashContent(content []byte) string {
	return hashContent(content)
}

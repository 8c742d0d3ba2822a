// Package library implements the built-in skill catalog: a read-only set
// of skills shipped inside the binary, loaded once and consulted before
// the registry's own metadata store on install so a built-in skill
// short-circuits a lookup that would otherwise need a publish first.
package library

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

//go:embed assets/skills
var assetsFS embed.FS

const assetsRoot = "assets/skills"

// Catalog is the process-wide, immutable map of built-in skill name ->
// {filename -> bytes}. It is loaded once at first use and never mutated;
// built-in skills live entirely outside the metadata store and are never
// indexed into it.
type Catalog struct {
	skills map[string]map[string][]byte
}

var (
	once    sync.Once
	catalog *Catalog
	loadErr error
)

// Load returns the process-wide Catalog, building it from the embedded
// assets on first call.
func Load() (*Catalog, error) {
	once.Do(func() {
		catalog, loadErr = build()
	})
	return catalog, loadErr
}

func build() (*Catalog, error) {
	skills := make(map[string]map[string][]byte)

	err := fs.WalkDir(assetsFS, assetsRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel := strings.TrimPrefix(p, assetsRoot+"/")
		segments := splitFirst(rel)
		skillName, filePath := segments[0], segments[1]

		if skills[skillName] == nil {
			skills[skillName] = make(map[string][]byte)
		}
		data, err := assetsFS.ReadFile(p)
		if err != nil {
			return err
		}
		skills[skillName][filePath] = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Catalog{skills: skills}, nil
}

func splitFirst(rel string) [2]string {
	i := indexByte(rel, '/')
	if i < 0 {
		return [2]string{rel, ""}
	}
	return [2]string{rel[:i], rel[i+1:]}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// Has reports whether name is a built-in skill.
func (c *Catalog) Has(name string) bool {
	_, ok := c.skills[name]
	return ok
}

// Files returns the {filename -> bytes} map for a built-in skill, or nil
// if name isn't one.
func (c *Catalog) Files(name string) map[string][]byte {
	files, ok := c.skills[name]
	if !ok {
		return nil
	}
	out := make(map[string][]byte, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

// Names returns every built-in skill name, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.skills))
	for name := range c.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

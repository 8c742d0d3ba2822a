// Package frontmatter parses and rewrites the YAML frontmatter block of a
// root template file (ROLE.md / SKILL.md): a leading "---\n...\n---\n"
// section followed by the Markdown body.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Document is a parsed root file: its frontmatter metadata and body text.
type Document struct {
	Metadata map[string]any
	Body     string
}

// Parse splits data into frontmatter metadata and body. Files with no
// frontmatter block yield an empty Metadata map and the whole file as Body.
func Parse(data []byte) (Document, error) {
	text := string(data)
	// Normalize CRLF so delimiter matching doesn't trip over it.
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if !strings.HasPrefix(text, delimiter+"\n") && text != delimiter {
		return Document{Metadata: map[string]any{}, Body: text}, nil
	}

	rest := strings.TrimPrefix(text, delimiter+"\n")
	end := strings.Index(rest, "\n"+delimiter)
	if end == -1 {
		return Document{Metadata: map[string]any{}, Body: text}, nil
	}

	yamlBlock := rest[:end]
	body := strings.TrimPrefix(rest[end+len("\n"+delimiter):], "\n")

	meta := map[string]any{}
	if strings.TrimSpace(yamlBlock) != "" {
		if err := yaml.Unmarshal([]byte(yamlBlock), &meta); err != nil {
			return Document{}, fmt.Errorf("frontmatter: parse yaml block: %w", err)
		}
	}
	if meta == nil {
		meta = map[string]any{}
	}

	return Document{Metadata: meta, Body: body}, nil
}

// Dump serializes doc back into a "---\n<yaml>\n---\n<body>" file, the
// inverse of Parse.
func Dump(doc Document) ([]byte, error) {
	var buf bytes.Buffer

	if len(doc.Metadata) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc.Metadata); err != nil {
			return nil, fmt.Errorf("frontmatter: encode yaml block: %w", err)
		}
		enc.Close()

		out := bytes.Buffer{}
		out.WriteString(delimiter + "\n")
		out.Write(buf.Bytes())
		out.WriteString(delimiter + "\n")
		out.WriteString(doc.Body)
		return out.Bytes(), nil
	}

	return []byte(doc.Body), nil
}

// StringField reads a string field from metadata, returning "" if absent
// or not a string.
func StringField(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// StringSliceField reads a []string field from metadata (YAML unmarshals
// sequences as []any), returning nil if absent or malformed.
func StringSliceField(meta map[string]any, key string) []string {
	v, ok := meta[key]
	if !ok {
		return nil
	}
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// WithCanonicalMetadata returns a copy of doc with metadata["name"] and
// metadata["description"] rewritten to name and description, preserving
// every other key.
func WithCanonicalMetadata(doc Document, name, description string) Document {
	meta := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["name"] = name
	meta["description"] = description
	return Document{Metadata: meta, Body: doc.Body}
}

// WithVersion returns a copy of doc with metadata["metadata"]["version"]
// set to version, the shape skill installation injects into SKILL.md so an
// installed copy records which published version it came from.
func WithVersion(doc Document, version string) Document {
	meta := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta["metadata"] = map[string]any{"version": version}
	return Document{Metadata: meta, Body: doc.Body}
}

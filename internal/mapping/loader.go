package mapping

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRevision is used when a table file does not name one
const DefaultRevision = "1"

//go:embed tables/*.yaml
var embedded embed.FS

// Parse parses YAML data into a Table and applies defaults. It does not validate.
func Parse(data []byte) (*Table, error) {
	var t Table

	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
	}

	applyDefaults(&t)

	return &t, nil
}

// applyDefaults fills in default values for optional fields
func applyDefaults(t *Table) {
	t.Form = strings.TrimSpace(t.Form)
	if t.Revision == "" {
		t.Revision = DefaultRevision
	}
	if t.Title == "" {
		t.Title = t.Form
	}

	for i := range t.Fields {
		if t.Fields[i].Transform == "" {
			t.Fields[i].Transform = TransformIdentity
		}
	}
	for i := range t.Lists {
		for j := range t.Lists[i].Fields {
			if t.Lists[i].Fields[j].Transform == "" {
				t.Lists[i].Fields[j].Transform = TransformIdentity
			}
		}
	}
}

// LoadFS registers every *.yaml / *.yml file found directly under dir in fsys
func LoadFS(reg *Registry, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read mapping directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		p := path.Join(dir, name)
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read mapping file %s: %w", p, err)
		}

		t, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}

		if err := reg.Register(t); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	return nil
}

// LoadEmbedded returns a registry holding the tables shipped with the binary
func LoadEmbedded() (*Registry, error) {
	reg := NewRegistry()
	if err := LoadFS(reg, embedded, "tables"); err != nil {
		return nil, err
	}
	return reg, nil
}

// Load returns the embedded tables, overlaid with the tables in dir when dir is set.
// A table in dir replaces an embedded one with the same form and revision.
func Load(dir string) (*Registry, error) {
	reg, err := LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded mapping tables: %w", err)
	}

	if dir == "" {
		return reg, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mapping directory: %w", err)
	}

	if err := LoadFS(reg, os.DirFS(abs), "."); err != nil {
		return nil, err
	}
	return reg, nil
}

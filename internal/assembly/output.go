package assembly

import (
	"fmt"
	"path"
	"strings"

	"github.com/a3tai/casedocs/internal/config"
	"github.com/spf13/afero"
)

// OutputDir returns a filesystem confined to dir on the host, creating it when missing
func OutputDir(dir string) (afero.Fs, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory cannot be empty")
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(dir, config.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return afero.NewBasePathFs(osFs, dir), nil
}

// FileName is the name a document is saved under
func (d *Document) FileName() string {
	return d.Key + ".pdf"
}

// Save writes the document to name on fsys
func (d *Document) Save(fsys afero.Fs, name string) error {
	if name == "" {
		name = d.FileName()
	}
	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := afero.WriteFile(fsys, name, d.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Save writes every document of the batch to fsys and returns the file names
func (b *BatchResult) Save(fsys afero.Fs) ([]string, error) {
	names := make([]string, 0, len(b.Documents))
	for _, doc := range b.Documents {
		name := doc.FileName()
		if err := doc.Save(fsys, name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

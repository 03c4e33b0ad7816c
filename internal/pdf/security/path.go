// Package security confines user supplied file names to configured directories.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file names to a root directory. It guards both the
// bundled template directory and the output directory for filled documents.
type PathValidator struct {
	root string
}

// NewPathValidator creates a validator rooted at root. The directory does not
// have to exist yet.
func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}

	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory
func (v *PathValidator) Root() string {
	return v.root
}

// Resolve maps name onto the root directory. Relative names are joined to the
// root; absolute names are accepted only when they already point inside it.
func (v *PathValidator) Resolve(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(v.root, path)
	}
	path = filepath.Clean(path)

	ok, err := v.Contains(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("path is outside %s: %s", v.root, name)
	}

	return path, nil
}

// Contains reports whether path lies within the root, following symlinks
// on either side when they exist.
func (v *PathValidator) Contains(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	abs = filepath.Clean(abs)

	roots := []string{v.root}
	if real, err := filepath.EvalSymlinks(v.root); err == nil && real != v.root {
		roots = append(roots, real)
	}

	if !within(abs, roots) {
		return false, nil
	}

	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return false, fmt.Errorf("failed to resolve symlink: %w", err)
		}
		return within(real, roots), nil
	}

	return true, nil
}

func within(path string, roots []string) bool {
	for _, root := range roots {
		if path == root {
			return true
		}
		prefix := root
		if !strings.HasSuffix(prefix, string(filepath.Separator)) {
			prefix += string(filepath.Separator)
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Package templates loads the blank PDF forms that mapping tables refer to.
//
// Templates come from a local directory, an HTTP base URL, or a chain of the
// two, optionally behind an in-process LRU cache. Every failure surfaces as a
// template-load DocumentError so callers can report it per document.
package templates

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/a3tai/casedocs/internal/pdf/security"
)

// DefaultMaxSize bounds the size of a single template
const DefaultMaxSize int64 = 100 * 1024 * 1024

// ErrNotFound is returned when a source does not hold the named template
var ErrNotFound = stderrors.New("template not found")

// Source yields the raw bytes of a named template
type Source interface {
	Open(ctx context.Context, name string) ([]byte, error)
}

func loadError(name string, err error) error {
	var de *pdferrors.DocumentError
	if stderrors.As(err, &de) {
		return err
	}
	return pdferrors.Wrap(pdferrors.ErrorTypeTemplateLoad, "failed to load template "+name, err)
}

// DirSource reads templates from a local directory
type DirSource struct {
	paths   *security.PathValidator
	maxSize int64
}

// NewDirSource creates a source rooted at dir
func NewDirSource(dir string, maxSize int64) (*DirSource, error) {
	paths, err := security.NewPathValidator(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid template directory: %w", err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &DirSource{paths: paths, maxSize: maxSize}, nil
}

// Dir returns the absolute template directory
func (s *DirSource) Dir() string {
	return s.paths.Root()
}

// Open implements Source
func (s *DirSource) Open(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, loadError(name, err)
	}

	path, err := s.paths.Resolve(name)
	if err != nil {
		return nil, loadError(name, err)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, loadError(name, fmt.Errorf("%w: %s", ErrNotFound, path))
	}
	if err != nil {
		return nil, loadError(name, err)
	}
	if info.IsDir() {
		return nil, loadError(name, fmt.Errorf("path is a directory: %s", path))
	}
	if info.Size() > s.maxSize {
		return nil, loadError(name, fmt.Errorf("template too large: %d bytes (max: %d bytes)", info.Size(), s.maxSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(name, err)
	}
	return data, nil
}

// String describes the source in logs
func (s *DirSource) String() string {
	return "dir:" + s.paths.Root()
}

// HTTPSource fetches templates with GET {base}/{name}
type HTTPSource struct {
	base    *url.URL
	client  *http.Client
	maxSize int64
}

// NewHTTPSource creates a source for the base URL. A nil client gets a 30s timeout.
func NewHTTPSource(base string, client *http.Client, maxSize int64) (*HTTPSource, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil, fmt.Errorf("invalid template url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid template url: unsupported scheme %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &HTTPSource{base: u, client: client, maxSize: maxSize}, nil
}

// Open implements Source
func (s *HTTPSource) Open(ctx context.Context, name string) ([]byte, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return nil, loadError(name, fmt.Errorf("invalid template name %q", name))
	}

	target := s.base.JoinPath(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, loadError(name, err)
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, loadError(name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, loadError(name, fmt.Errorf("%w: %s", ErrNotFound, target))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, loadError(name, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, loadError(name, fmt.Errorf("failed to read response body: %w", err))
	}
	if int64(len(data)) > s.maxSize {
		return nil, loadError(name, fmt.Errorf("template too large: more than %d bytes", s.maxSize))
	}
	return data, nil
}

// String describes the source in logs
func (s *HTTPSource) String() string {
	return "http:" + s.base.String()
}

// ChainSource tries each source in order and returns the first success
type ChainSource []Source

// Open implements Source
func (c ChainSource) Open(ctx context.Context, name string) ([]byte, error) {
	if len(c) == 0 {
		return nil, loadError(name, stderrors.New("no template sources configured"))
	}

	var errs []error
	for _, src := range c {
		data, err := src.Open(ctx, name)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, pdferrors.Wrap(pdferrors.ErrorTypeTemplateLoad, "no source could load template "+name, stderrors.Join(errs...))
}

// Options describes where templates come from
type Options struct {
	Dir       string
	BaseURL   string
	MaxSize   int64
	CacheSize int
	Client    *http.Client
}

// NewSource builds the template source for opts: the local directory first,
// then the base URL, validated and cached. Either location may be empty but
// not both.
func NewSource(opts Options) (*CachedSource, error) {
	var chain ChainSource

	if opts.Dir != "" {
		dir, err := NewDirSource(opts.Dir, opts.MaxSize)
		if err != nil {
			return nil, err
		}
		chain = append(chain, dir)
	}

	if opts.BaseURL != "" {
		remote, err := NewHTTPSource(opts.BaseURL, opts.Client, opts.MaxSize)
		if err != nil {
			return nil, err
		}
		chain = append(chain, remote)
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("either a template directory or a template url is required")
	}

	var src Source = chain
	if len(chain) == 1 {
		src = chain[0]
	}

	return NewCachedSource(ValidatingSource{Source: src, Validator: NewValidator(opts.MaxSize)}, opts.CacheSize), nil
}

package mapping

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds every loaded table, keyed by form and revision.
// It is written during startup and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]map[string]*Table
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[string]map[string]*Table),
	}
}

// Register validates t and stores it, replacing a table with the same form and revision
func (r *Registry) Register(t *Table) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	revisions, ok := r.tables[t.Form]
	if !ok {
		revisions = make(map[string]*Table)
		r.tables[t.Form] = revisions
	}
	revisions[t.Revision] = t
	return nil
}

// Get returns the newest revision of form. Revisions compare as strings, so
// they are written as dates (2023-05) or zero-padded numbers.
func (r *Registry) Get(form string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	revisions, ok := r.tables[form]
	if !ok || len(revisions) == 0 {
		return nil, false
	}

	var latest *Table
	for rev, t := range revisions {
		if latest == nil || rev > latest.Revision {
			latest = t
		}
	}
	return latest, true
}

// GetRevision returns a specific revision of form
func (r *Registry) GetRevision(form, revision string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tables[form][revision]
	return t, ok
}

// Lookup resolves "form" or "form@revision"
func (r *Registry) Lookup(id string) (*Table, bool) {
	form, revision, pinned := strings.Cut(strings.TrimSpace(id), "@")
	if pinned {
		return r.GetRevision(form, revision)
	}
	return r.Get(form)
}

// MustLookup is Lookup returning an error for unknown ids
func (r *Registry) MustLookup(id string) (*Table, error) {
	t, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("no mapping table for form %q", id)
	}
	return t, nil
}

// Forms returns the registered form identifiers, sorted
func (r *Registry) Forms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	forms := make([]string, 0, len(r.tables))
	for form := range r.tables {
		forms = append(forms, form)
	}
	sort.Strings(forms)
	return forms
}

// Latest returns the newest revision of every form, sorted by form
func (r *Registry) Latest() []*Table {
	forms := r.Forms()
	out := make([]*Table, 0, len(forms))
	for _, form := range forms {
		if t, ok := r.Get(form); ok {
			out = append(out, t)
		}
	}
	return out
}

// Revisions returns the registered revisions of form, sorted oldest first
func (r *Registry) Revisions(form string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	revs := make([]string, 0, len(r.tables[form]))
	for rev := range r.tables[form] {
		revs = append(revs, rev)
	}
	sort.Strings(revs)
	return revs
}

// Len returns the number of tables across all revisions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, revisions := range r.tables {
		n += len(revisions)
	}
	return n
}

package mapping

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Validate checks a table for structural problems and returns all of them joined
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("mapping table is nil")
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if t.Form == "" {
		add("form is required")
	}
	if t.Template == "" {
		add("template is required")
	}
	if t.OutputKey == "" {
		add("output_key is required")
	}
	if len(t.Fields) == 0 && len(t.Lists) == 0 {
		add("no field or list mappings")
	}

	for i := range t.Fields {
		for _, err := range validateField(&t.Fields[i]) {
			add("fields[%d] %s: %v", i, t.Fields[i].Attribute, err)
		}
	}

	for i, l := range t.Lists {
		if l.Attribute == "" {
			add("lists[%d]: attribute is required", i)
		}
		if l.Cap <= 0 {
			add("lists[%d] %s: cap must be positive, got %d", i, l.Attribute, l.Cap)
		}
		if len(l.Fields) == 0 {
			add("lists[%d] %s: no fields", i, l.Attribute)
		}
		for j := range l.Fields {
			f := &l.Fields[j]
			for _, err := range validateField(f) {
				add("lists[%d].fields[%d] %s: %v", i, j, f.Attribute, err)
			}
			for _, c := range f.Candidates {
				if !strings.Contains(c, PlaceholderOneBased) && !strings.Contains(c, PlaceholderZeroBased) {
					add("lists[%d].fields[%d] %s: candidate %q has no {n} or {i} placeholder", i, j, f.Attribute, c)
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid mapping table %s: %w", t.ID(), stderrors.Join(errs...))
	}
	return nil
}

func validateField(f *FieldMapping) []error {
	var errs []error
	if f.Attribute == "" {
		errs = append(errs, fmt.Errorf("attribute is required"))
	}
	if len(f.Candidates) == 0 {
		errs = append(errs, fmt.Errorf("no candidate field names"))
	}
	for k, c := range f.Candidates {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, fmt.Errorf("candidate %d is empty", k))
		}
	}
	if !KnownTransform(f.Transform) {
		errs = append(errs, fmt.Errorf("unknown transform %q", f.Transform))
	}
	if f.Transform == TransformEquals && f.Match == "" {
		errs = append(errs, fmt.Errorf("equals transform needs a match value"))
	}
	return errs
}

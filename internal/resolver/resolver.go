// Package resolver binds case attributes to the fields of a loaded form.
//
// Each mapping entry is transformed, then its candidate names are tried in
// order against the form; the first name that exists receives the value.
// Nothing here aborts: misses, transform failures and type mismatches are
// recorded as skips and filling carries on with the next entry.
package resolver

import (
	"fmt"
	"strings"

	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/logging"
	"github.com/a3tai/casedocs/internal/mapping"
	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/sirupsen/logrus"
)

// FieldSet is the set of fields present on a loaded template
type FieldSet interface {
	Lookup(name string) (form.Field, bool)
}

// Writer sets field values on a loaded template
type Writer interface {
	SetText(name, value string) error
	Check(name string) error
	Select(name, value string) error
}

// Resolver resolves records against one mapping table
type Resolver struct {
	table *mapping.Table
	log   logrus.FieldLogger
}

// New creates a resolver for table
func New(table *mapping.Table, logger logrus.FieldLogger) *Resolver {
	return &Resolver{
		table: table,
		log: logging.OrDiscard(logger).WithFields(logrus.Fields{
			"form":     table.Form,
			"revision": table.Revision,
		}),
	}
}

// Table returns the mapping table the resolver was built with
func (r *Resolver) Table() *mapping.Table {
	return r.table
}

// resolution carries the state of one Resolve call
type resolution struct {
	rec    *caserecord.Record
	fields FieldSet
	set    *FilledFieldSet
	taken  map[string]string
}

// Resolve computes the assignments for rec against fields
func (r *Resolver) Resolve(rec *caserecord.Record, fields FieldSet) *FilledFieldSet {
	res := &resolution{
		rec:    rec,
		fields: fields,
		set: &FilledFieldSet{
			Form:     r.table.Form,
			Revision: r.table.Revision,
		},
		taken: make(map[string]string),
	}

	for i := range r.table.Fields {
		r.resolveEntry(res, rec, &r.table.Fields[i], NoList)
	}

	for _, list := range r.table.Lists {
		r.resolveList(res, list)
	}

	sum := res.set.Summary()
	r.log.WithFields(logrus.Fields{
		"assigned":     sum.Assigned,
		"no_candidate": sum.NoCandidate,
		"mismatched":   sum.TypeMismatch,
		"transform":    sum.TransformErrors,
	}).Debug("Resolved form fields")

	if logging.TraceEnabled(r.log) {
		r.log.WithField("form", r.table.Form).Trace(logging.Dump(res.set))
	}

	return res.set
}

// resolveList expands a list mapping over the record's list elements, up to the cap
func (r *Resolver) resolveList(res *resolution, list mapping.ListMapping) {
	items := res.rec.List(list.Attribute)

	for idx, item := range items {
		if idx >= list.Cap {
			res.set.Skipped = append(res.set.Skipped, Skip{
				Attribute: list.Attribute,
				Reason:    SkipOverCap,
				Detail:    fmt.Sprintf("%d of %d entries fit the form", list.Cap, len(items)),
				ListIndex: idx,
			})
			r.log.WithField("attribute", list.Attribute).
				Debugf("Dropping %d list entries beyond %d slots", len(items)-list.Cap, list.Cap)
			return
		}

		for i := range list.Fields {
			expanded := list.Fields[i].Expand(idx)
			expanded.Attribute = list.Fields[i].Attribute
			r.resolveEntry(res, item, &expanded, idx)
		}
	}
}

// resolveEntry resolves a single mapping entry. A panic anywhere below is
// recorded as a skip for this entry only.
func (r *Resolver) resolveEntry(res *resolution, rec *caserecord.Record, m *mapping.FieldMapping, listIndex int) {
	attribute := m.Attribute
	if listIndex != NoList {
		attribute = fmt.Sprintf("%s[%d]", m.Attribute, listIndex)
	}

	skip := func(reason SkipReason, field, detail string) {
		res.set.Skipped = append(res.set.Skipped, Skip{
			Attribute: attribute,
			Reason:    reason,
			Field:     field,
			Detail:    detail,
			ListIndex: listIndex,
		})
	}

	defer func() {
		if p := recover(); p != nil {
			skip(SkipPanic, "", fmt.Sprint(p))
			r.log.WithField("attribute", attribute).Errorf("Recovered while resolving field: %v", p)
		}
	}()

	value, ok, err := m.Evaluate(rec)
	if err != nil {
		skip(SkipTransformError, "", err.Error())
		r.log.WithError(pdferrors.Wrap(pdferrors.ErrorTypeTransform, "value skipped", err).
			WithForm(r.table.Form).WithAttribute(attribute)).Warn("Transform failed")
		return
	}
	if !ok {
		skip(SkipNoValue, "", "")
		return
	}

	for idx, candidate := range m.Candidates {
		field, found := res.fields.Lookup(candidate)
		if !found {
			continue
		}

		if owner, claimed := res.taken[field.Name]; claimed {
			skip(SkipAlreadyAssigned, field.Name, "claimed by "+owner)
			return
		}

		if field.ReadOnly {
			skip(SkipReadOnly, field.Name, "")
			r.log.WithFields(logrus.Fields{"attribute": attribute, "field": field.Name}).Debug("Field is read-only")
			return
		}

		coerced, ok := coerce(value, field)
		if !ok {
			detail := fmt.Sprintf("%s value for %s field", value.Kind, field.Type)
			skip(SkipTypeMismatch, field.Name, detail)
			r.log.WithError(pdferrors.New(pdferrors.ErrorTypeTypeMismatch, detail).
				WithForm(r.table.Form).WithField(field.Name).WithAttribute(attribute)).Warn("Value skipped")
			return
		}

		res.taken[field.Name] = attribute
		res.set.Assignments = append(res.set.Assignments, Assignment{
			Attribute: attribute,
			Field:     field.Name,
			FieldType: field.Type,
			Value:     coerced,
			Candidate: idx,
			ListIndex: listIndex,
		})
		return
	}

	skip(SkipNoCandidate, "", strings.Join(m.Candidates, " | "))
	r.log.WithError(pdferrors.New(pdferrors.ErrorTypeFieldMissing, "no candidate field on form").
		WithForm(r.table.Form).WithAttribute(attribute)).Debug("Value skipped")
}

// coerce adapts a value to the type of the field it matched
func coerce(v mapping.Value, field form.Field) (mapping.Value, bool) {
	switch v.Kind {
	case mapping.KindCheck:
		return v, field.AcceptsCheck()
	case mapping.KindText:
		switch {
		case field.AcceptsText():
			return v, true
		case field.AcceptsOption():
			return mapping.Value{Kind: mapping.KindOption, Text: v.Text}, true
		}
	case mapping.KindOption:
		switch {
		case field.AcceptsOption():
			return v, true
		case field.Type == form.FieldTypeText:
			return mapping.Value{Kind: mapping.KindText, Text: v.Text}, true
		case field.AcceptsCheck() && strings.EqualFold(v.Text, field.OnState):
			return mapping.Value{Kind: mapping.KindCheck}, true
		}
	}
	return v, false
}

// Apply writes the assignments of set into doc. Each failing field is logged
// and returned; the remaining fields are still written.
func (r *Resolver) Apply(doc Writer, set *FilledFieldSet) []error {
	var errs []error

	for _, a := range set.Assignments {
		if err := r.applyOne(doc, a); err != nil {
			de := pdferrors.Wrap(pdferrors.ErrorTypeFieldWrite, "failed to write field", err).
				WithForm(set.Form).WithField(a.Field).WithAttribute(a.Attribute)
			r.log.WithError(err).WithField("field", a.Field).Warn("Field write failed")
			errs = append(errs, de)
		}
	}

	return errs
}

func (r *Resolver) applyOne(doc Writer, a Assignment) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("recovered: %v", p)
		}
	}()

	switch a.Value.Kind {
	case mapping.KindText:
		return doc.SetText(a.Field, a.Value.Text)
	case mapping.KindCheck:
		return doc.Check(a.Field)
	case mapping.KindOption:
		return doc.Select(a.Field, a.Value.Text)
	default:
		return fmt.Errorf("unsupported value kind %s", a.Value.Kind)
	}
}

// Fill resolves rec against doc and writes the result into it
func (r *Resolver) Fill(rec *caserecord.Record, doc interface {
	FieldSet
	Writer
}) (*FilledFieldSet, []error) {
	set := r.Resolve(rec, doc)
	return set, r.Apply(doc, set)
}

// Package assembly turns a case record into filled PDF documents.
//
// For each requested form it looks up the mapping table, loads the blank
// template, resolves and writes the fields, and serializes the result. A
// failure in one document never aborts its siblings in a batch.
package assembly

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/logging"
	"github.com/a3tai/casedocs/internal/mapping"
	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/a3tai/casedocs/internal/resolver"
	"github.com/a3tai/casedocs/internal/templates"
	"github.com/sirupsen/logrus"
)

// DefaultWorkers bounds how many documents of a batch are filled at once
const DefaultWorkers = 4

// Assembler fills registered forms from case records
type Assembler struct {
	registry *mapping.Registry
	source   templates.Source
	log      logrus.FieldLogger
	workers  int
}

// New creates an assembler over the registered tables and a template source
func New(registry *mapping.Registry, source templates.Source, logger logrus.FieldLogger) *Assembler {
	return &Assembler{
		registry: registry,
		source:   source,
		log:      logging.OrDiscard(logger),
		workers:  DefaultWorkers,
	}
}

// SetWorkers changes the batch concurrency; values below one mean sequential
func (a *Assembler) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	a.workers = n
}

// Registry returns the mapping tables the assembler fills from
func (a *Assembler) Registry() *mapping.Registry {
	return a.registry
}

// TemplateStats returns the template cache statistics when the source is cached
func (a *Assembler) TemplateStats() (templates.CacheStats, bool) {
	if c, ok := a.source.(*templates.CachedSource); ok {
		return c.Stats(), true
	}
	return templates.CacheStats{}, false
}

// Document is one filled form
type Document struct {
	Key         string                   `json:"key"`
	Form        string                   `json:"form"`
	Revision    string                   `json:"revision"`
	Title       string                   `json:"title"`
	Data        []byte                   `json:"-"`
	Size        int                      `json:"size"`
	Fields      *resolver.FilledFieldSet `json:"fields"`
	Summary     resolver.Summary         `json:"summary"`
	FieldErrors []string                 `json:"field_errors,omitempty"`
	Duration    time.Duration            `json:"duration_ns"`
}

// Fill produces the filled document for one form identifier ("form" or "form@revision").
// Returned errors are DocumentErrors whose type tells template, lookup and
// serialization failures apart.
func (a *Assembler) Fill(ctx context.Context, formID string, rec *caserecord.Record) (*Document, error) {
	start := time.Now()

	if rec == nil {
		return nil, pdferrors.New(pdferrors.ErrorTypeInvalidInput, "case record is required").WithForm(formID)
	}

	table, err := a.registry.MustLookup(formID)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeUnknownForm, "cannot fill form", err).WithForm(formID)
	}

	log := a.log.WithFields(logrus.Fields{"form": table.Form, "revision": table.Revision})

	doc, err := a.open(ctx, table)
	if err != nil {
		log.WithError(err).Error("Failed to load template")
		return nil, err
	}

	set, writeErrs := resolver.New(table, log).Fill(rec, doc)

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		log.WithError(err).Error("Failed to serialize document")
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeSerialization, "failed to write filled document", err).WithForm(table.Form)
	}

	out := &Document{
		Key:      table.OutputKey,
		Form:     table.Form,
		Revision: table.Revision,
		Title:    table.Title,
		Data:     buf.Bytes(),
		Size:     buf.Len(),
		Fields:   set,
		Summary:  set.Summary(),
		Duration: time.Since(start),
	}
	for _, err := range writeErrs {
		out.FieldErrors = append(out.FieldErrors, err.Error())
	}

	log.WithFields(logrus.Fields{
		"assigned": out.Summary.Assigned,
		"skipped":  len(set.Skipped),
		"bytes":    out.Size,
		"duration": out.Duration,
	}).Info("Filled document")

	return out, nil
}

// open loads the table's template and parses its form
func (a *Assembler) open(ctx context.Context, table *mapping.Table) (*form.Document, error) {
	data, err := a.source.Open(ctx, table.Template)
	if err != nil {
		if pdferrors.TypeOf(err) == pdferrors.ErrorTypeUnknown {
			err = pdferrors.Wrap(pdferrors.ErrorTypeTemplateLoad, "failed to load template "+table.Template, err)
		}
		return nil, withForm(err, table.Form)
	}

	doc, err := parseTemplate(table, data)
	if err != nil {
		a.forget(table.Template)
		return nil, err
	}
	return doc, nil
}

// forget drops a rejected template from the cache so a replaced file is read again
func (a *Assembler) forget(name string) {
	if c, ok := a.source.(*templates.CachedSource); ok && c.Forget(name) {
		a.log.WithField("template", name).Debug("Dropped rejected template from cache")
	}
}

// parseTemplate checks that data is a form the table can be filled into
func parseTemplate(table *mapping.Table, data []byte) (*form.Document, error) {
	doc, err := form.LoadBytes(data)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeTemplateInvalid, "cannot parse template "+table.Template, err).WithForm(table.Form)
	}
	if !doc.HasForm() {
		return nil, pdferrors.New(pdferrors.ErrorTypeTemplateInvalid, "template "+table.Template+" has no fillable fields").WithForm(table.Form)
	}
	if perms := doc.Permissions(); !perms.CanFillForms() {
		return nil, pdferrors.New(pdferrors.ErrorTypeTemplateInvalid, "template "+table.Template+" does not permit form filling ("+perms.String()+")").WithForm(table.Form)
	}

	return doc, nil
}

// Fields returns the field inventory of a registered form's template
func (a *Assembler) Fields(ctx context.Context, formID string) ([]form.Field, error) {
	table, err := a.registry.MustLookup(formID)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeUnknownForm, "cannot list fields", err).WithForm(formID)
	}

	doc, err := a.open(ctx, table)
	if err != nil {
		return nil, err
	}
	return doc.Fields(), nil
}

// FieldsFromBytes returns the field inventory of an arbitrary PDF
func FieldsFromBytes(data []byte) ([]form.Field, error) {
	doc, err := form.LoadBytes(data)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeTemplateInvalid, "cannot parse PDF", err)
	}
	return doc.Fields(), nil
}

// FormInfo describes a registered form for listings
type FormInfo struct {
	ID          string   `json:"id"`
	Form        string   `json:"form"`
	Revision    string   `json:"revision"`
	Revisions   []string `json:"revisions"`
	Title       string   `json:"title"`
	Template    string   `json:"template"`
	OutputKey   string   `json:"output_key"`
	RequestFlag string   `json:"request_flag,omitempty"`
	Fields      int      `json:"mapped_fields"`
	Lists       int      `json:"mapped_lists"`
}

// Forms lists the latest revision of every registered form
func (a *Assembler) Forms() []FormInfo {
	tables := a.registry.Latest()
	out := make([]FormInfo, 0, len(tables))
	for _, t := range tables {
		out = append(out, FormInfo{
			ID:          t.ID(),
			Form:        t.Form,
			Revision:    t.Revision,
			Revisions:   a.registry.Revisions(t.Form),
			Title:       t.Title,
			Template:    t.Template,
			OutputKey:   t.OutputKey,
			RequestFlag: t.RequestFlag,
			Fields:      len(t.Fields),
			Lists:       len(t.Lists),
		})
	}
	return out
}

func withForm(err error, formID string) error {
	de, ok := err.(*pdferrors.DocumentError)
	if !ok || de.Form != "" {
		return err
	}
	scoped := *de
	scoped.Form = formID
	return &scoped
}

// String describes the assembler in logs
func (a *Assembler) String() string {
	return fmt.Sprintf("assembler(%d tables, %v)", a.registry.Len(), a.source)
}

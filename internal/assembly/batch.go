package assembly

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/a3tai/casedocs/internal/caserecord"
	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Request asks for a batch of documents for one case. When Forms is empty the
// forms are chosen by the request flags carried on the record (generate_pcor,
// generate_502d, ...).
type Request struct {
	Record *caserecord.Record
	Forms  []string
}

// Failure is a document of the batch that could not be produced
type Failure struct {
	Form    string              `json:"form"`
	Key     string              `json:"key,omitempty"`
	Kind    pdferrors.ErrorType `json:"kind"`
	Message string              `json:"message"`
}

// BatchResult is the outcome of Generate. It is partial-success: documents
// that filled are present even when others failed.
type BatchResult struct {
	BatchID     string      `json:"batch_id"`
	CaseNumber  string      `json:"case_number,omitempty"`
	Documents   []*Document `json:"documents"`
	Errors      []Failure   `json:"errors"`
	Warnings    []string    `json:"warnings"`
	GeneratedAt time.Time   `json:"timestamp"`
}

// Success reports whether at least one document was produced
func (b *BatchResult) Success() bool {
	return len(b.Documents) > 0
}

// Encoded returns the documents as base64 keyed by output key
func (b *BatchResult) Encoded() map[string]string {
	out := make(map[string]string, len(b.Documents))
	for _, doc := range b.Documents {
		out[doc.Key] = base64.StdEncoding.EncodeToString(doc.Data)
	}
	return out
}

// Message summarizes the batch in one line
func (b *BatchResult) Message() string {
	noun := "documents"
	if len(b.Documents) == 1 {
		noun = "document"
	}

	switch {
	case len(b.Documents) == 0 && len(b.Errors) == 0:
		return "No documents requested"
	case len(b.Documents) == 0:
		return fmt.Sprintf("No documents were filled (%d failed)", len(b.Errors))
	case len(b.Errors) == 0:
		return fmt.Sprintf("Filled %d %s", len(b.Documents), noun)
	default:
		return fmt.Sprintf("Filled %d %s (%d failed)", len(b.Documents), noun, len(b.Errors))
	}
}

// Select returns the form identifiers a request resolves to, in order and
// without duplicates
func (a *Assembler) Select(req Request) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(req.Forms) > 0 {
		for _, id := range req.Forms {
			add(id)
		}
		return ids
	}

	if req.Record == nil {
		return nil
	}
	for _, t := range a.registry.Latest() {
		if t.RequestFlag != "" && req.Record.Flag(t.RequestFlag) {
			add(t.Form)
		}
	}
	return ids
}

// Generate fills every selected form for the request. Documents are filled
// concurrently and returned in selection order.
func (a *Assembler) Generate(ctx context.Context, req Request) *BatchResult {
	result := &BatchResult{
		BatchID:     uuid.NewString(),
		Documents:   []*Document{},
		Errors:      []Failure{},
		Warnings:    []string{},
		GeneratedAt: time.Now().UTC(),
	}

	rec := req.Record
	if rec == nil {
		rec = caserecord.New(nil)
	}
	rec.Normalize()
	req.Record = rec
	result.CaseNumber = rec.CaseNumber()

	log := a.log.WithFields(logrus.Fields{"batch_id": result.BatchID, "case_number": result.CaseNumber})

	for _, key := range rec.MissingRequired() {
		result.Warnings = append(result.Warnings, "missing required field: "+key)
	}

	ids := a.Select(req)
	if len(ids) == 0 {
		result.Warnings = append(result.Warnings, "no forms requested")
		log.Warn("Batch selected no forms")
		return result
	}

	docs := make([]*Document, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, id := range ids {
		g.Go(func() error {
			docs[i], errs[i] = a.fillSafe(gctx, id, rec)
			return nil
		})
	}
	_ = g.Wait()

	for i, id := range ids {
		if errs[i] != nil {
			result.Errors = append(result.Errors, a.failure(id, errs[i]))
			continue
		}
		result.Documents = append(result.Documents, docs[i])
		for _, msg := range docs[i].FieldErrors {
			result.Warnings = append(result.Warnings, docs[i].Form+": "+msg)
		}
	}

	log.WithFields(logrus.Fields{
		"requested": len(ids),
		"filled":    len(result.Documents),
		"failed":    len(result.Errors),
	}).Info(result.Message())

	return result
}

// fillSafe is Fill with panics converted into serialization errors
func (a *Assembler) fillSafe(ctx context.Context, id string, rec *caserecord.Record) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = pdferrors.New(pdferrors.ErrorTypeSerialization, fmt.Sprintf("recovered while filling: %v", r)).WithForm(id)
		}
	}()
	return a.Fill(ctx, id, rec)
}

func (a *Assembler) failure(id string, err error) Failure {
	f := Failure{
		Form:    id,
		Kind:    pdferrors.TypeOf(err),
		Message: err.Error(),
	}
	if t, ok := a.registry.Lookup(id); ok {
		f.Form = t.Form
		f.Key = t.OutputKey
	}
	return f
}

// BatchResponse is the wire form of a BatchResult
type BatchResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	BatchID    string            `json:"batch_id"`
	CaseNumber string            `json:"case_number,omitempty"`
	Documents  map[string]string `json:"documents"`
	Errors     []Failure         `json:"errors"`
	Warnings   []string          `json:"warnings"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Response returns the wire form of the batch with base64 documents
func (b *BatchResult) Response() BatchResponse {
	return BatchResponse{
		Success:    b.Success(),
		Message:    b.Message(),
		BatchID:    b.BatchID,
		CaseNumber: b.CaseNumber,
		Documents:  b.Encoded(),
		Errors:     b.Errors,
		Warnings:   b.Warnings,
		Timestamp:  b.GeneratedAt,
	}
}

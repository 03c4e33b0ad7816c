// Package httpapi exposes document assembly over a JSON HTTP API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a3tai/casedocs/internal/assembly"
	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/logging"
	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// MaxBodySize bounds request bodies
const MaxBodySize = 10 << 20

// Server routes HTTP requests to the assembler
type Server struct {
	assembler *assembly.Assembler
	log       logrus.FieldLogger
	router    *chi.Mux
	timeout   time.Duration
}

// NewServer creates the API server
func NewServer(assembler *assembly.Assembler, logger logrus.FieldLogger) *Server {
	s := &Server{
		assembler: assembler,
		log:       logging.OrDiscard(logger).WithField("component", "http"),
		timeout:   60 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors)
	r.Use(middleware.Timeout(s.timeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/forms", func(r chi.Router) {
			r.Get("/", s.handleListForms)
			r.Get("/{formID}/fields", s.handleListFields)
			r.Post("/{formID}/fill", s.handleFill)
		})

		r.Post("/documents", s.handleGenerate)
	})

	s.router = r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"forms":  len(s.assembler.Forms()),
	})
}

func (s *Server) handleListForms(w http.ResponseWriter, _ *http.Request) {
	forms := s.assembler.Forms()
	respondJSON(w, http.StatusOK, map[string]any{
		"forms": forms,
		"count": len(forms),
	})
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")

	fields, err := s.assembler.Fields(r.Context(), formID)
	if err != nil {
		respondDocumentError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"form":   formID,
		"total":  len(fields),
		"fields": form.GroupByType(fields),
	})
}

func (s *Server) handleFill(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formID")

	rec, err := readRecord(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	doc, err := s.assembler.Fill(r.Context(), formID, rec.Normalize())
	if err != nil {
		respondDocumentError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName()))
	w.Header().Set("Content-Length", strconv.Itoa(doc.Size))
	w.Header().Set("X-Casedocs-Form", doc.Form+"@"+doc.Revision)
	w.Header().Set("X-Casedocs-Assigned", strconv.Itoa(doc.Summary.Assigned))
	w.Header().Set("X-Casedocs-Skipped", strconv.Itoa(len(doc.Fields.Skipped)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	rec, err := readRecord(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	forms := requestedForms(rec)
	if q := r.URL.Query().Get("forms"); q != "" {
		forms = strings.Split(q, ",")
	}

	result := s.assembler.Generate(r.Context(), assembly.Request{Record: rec, Forms: forms})

	status := http.StatusOK
	if !result.Success() {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("X-Batch-ID", result.BatchID)
	respondJSON(w, status, result.Response())
}

// readRecord decodes the case JSON body
func readRecord(w http.ResponseWriter, r *http.Request) (*caserecord.Record, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return caserecord.Parse(data)
}

// requestedForms reads the optional "forms" list of a batch body
func requestedForms(rec *caserecord.Record) []string {
	v, ok := rec.Lookup("forms")
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		forms := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				forms = append(forms, s)
			}
		}
		return forms
	case string:
		return strings.Split(list, ",")
	default:
		return nil
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

// respondDocumentError maps a DocumentError type onto an HTTP status
func respondDocumentError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := pdferrors.TypeOf(err)
	switch kind {
	case pdferrors.ErrorTypeUnknownForm:
		status = http.StatusNotFound
	case pdferrors.ErrorTypeInvalidInput:
		status = http.StatusBadRequest
	case pdferrors.ErrorTypeTemplateLoad, pdferrors.ErrorTypeTemplateInvalid:
		status = http.StatusBadGateway
	}

	var de *pdferrors.DocumentError
	if errors.As(err, &de) {
		respondJSON(w, status, map[string]any{
			"error":   de.Message,
			"kind":    kind,
			"form":    de.Form,
			"details": err.Error(),
		})
		return
	}
	respondError(w, status, "request failed", err)
}

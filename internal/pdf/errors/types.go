package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// DocumentError describes a failure while producing a single filled document or
// while writing a single field into it.
type DocumentError struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Form      string    `json:"form,omitempty"`
	Field     string    `json:"field,omitempty"`
	Attribute string    `json:"attribute,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// ErrorType represents the categories of document generation errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeTemplateLoad
	ErrorTypeTemplateInvalid
	ErrorTypeUnknownForm
	ErrorTypeSerialization
	ErrorTypeFieldWrite
	ErrorTypeTransform
	ErrorTypeFieldMissing
	ErrorTypeTypeMismatch
	ErrorTypeInvalidInput
)

// Error implements the error interface
func (e *DocumentError) Error() string {
	var scope string
	switch {
	case e.Form != "" && e.Field != "":
		scope = fmt.Sprintf(" %s/%s", e.Form, e.Field)
	case e.Form != "":
		scope = " " + e.Form
	case e.Field != "":
		scope = " " + e.Field
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s]%s: %s: %v", e.Type, scope, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s]%s: %s", e.Type, scope, e.Message)
}

// Unwrap returns the underlying cause
func (e *DocumentError) Unwrap() error {
	return e.Err
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeTemplateLoad:
		return "TEMPLATE_LOAD"
	case ErrorTypeTemplateInvalid:
		return "TEMPLATE_INVALID"
	case ErrorTypeUnknownForm:
		return "UNKNOWN_FORM"
	case ErrorTypeSerialization:
		return "SERIALIZATION"
	case ErrorTypeFieldWrite:
		return "FIELD_WRITE"
	case ErrorTypeTransform:
		return "TRANSFORM"
	case ErrorTypeFieldMissing:
		return "FIELD_MISSING"
	case ErrorTypeTypeMismatch:
		return "TYPE_MISMATCH"
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the type by name in JSON payloads
func (et ErrorType) MarshalText() ([]byte, error) {
	return []byte(et.String()), nil
}

// UnmarshalText parses a type name written by MarshalText
func (et *ErrorType) UnmarshalText(text []byte) error {
	name := string(text)
	for t := ErrorTypeUnknown; t <= ErrorTypeInvalidInput; t++ {
		if t.String() == name {
			*et = t
			return nil
		}
	}
	return fmt.Errorf("unknown error type %q", name)
}

// IsFatal reports whether an error of this type fails the whole document.
// Field level problems are diagnostics: the document is still produced.
func (et ErrorType) IsFatal() bool {
	switch et {
	case ErrorTypeTemplateLoad, ErrorTypeTemplateInvalid, ErrorTypeUnknownForm,
		ErrorTypeSerialization, ErrorTypeInvalidInput:
		return true
	default:
		return false
	}
}

// New creates a new DocumentError
func New(errorType ErrorType, message string) *DocumentError {
	return &DocumentError{
		Type:      errorType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap wraps err as a DocumentError of the given type
func Wrap(errorType ErrorType, message string, err error) *DocumentError {
	return &DocumentError{
		Type:      errorType,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithForm sets the form identifier
func (e *DocumentError) WithForm(form string) *DocumentError {
	e.Form = form
	return e
}

// WithField sets the PDF field name
func (e *DocumentError) WithField(field string) *DocumentError {
	e.Field = field
	return e
}

// WithAttribute sets the case attribute that produced the value
func (e *DocumentError) WithAttribute(attribute string) *DocumentError {
	e.Attribute = attribute
	return e
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err is not a DocumentError
func TypeOf(err error) ErrorType {
	var de *DocumentError
	if stderrors.As(err, &de) {
		return de.Type
	}
	return ErrorTypeUnknown
}

// Is reports whether err is a DocumentError of the given type
func Is(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// ErrorCollection gathers the non-fatal field errors raised while filling a document
type ErrorCollection struct {
	Errors []*DocumentError `json:"errors"`
	Form   string           `json:"form,omitempty"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection(form string) *ErrorCollection {
	return &ErrorCollection{
		Errors: make([]*DocumentError, 0),
		Form:   form,
	}
}

// Add appends an error to the collection
func (ec *ErrorCollection) Add(err *DocumentError) {
	if err == nil {
		return
	}
	if err.Form == "" && ec.Form != "" {
		err.Form = ec.Form
	}
	ec.Errors = append(ec.Errors, err)
}

// Len returns the number of collected errors
func (ec *ErrorCollection) Len() int {
	return len(ec.Errors)
}

// HasFatal returns true if any collected error is fatal
func (ec *ErrorCollection) HasFatal() bool {
	for _, err := range ec.Errors {
		if err.Type.IsFatal() {
			return true
		}
	}
	return false
}

// Messages returns the error strings in insertion order
func (ec *ErrorCollection) Messages() []string {
	out := make([]string, 0, len(ec.Errors))
	for _, err := range ec.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Summary returns a text summary of the collection
func (ec *ErrorCollection) Summary() string {
	if len(ec.Errors) == 0 {
		return "No field errors"
	}
	return fmt.Sprintf("Found %d field error(s)", len(ec.Errors))
}

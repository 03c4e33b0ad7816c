package templates

import (
	"bytes"
	"context"
	"fmt"

	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/ledongthuc/pdf"
)

var pdfHeader = []byte("%PDF-")

// Validator checks that template bytes are a readable PDF before filling
type Validator struct {
	maxSize int64
}

// NewValidator creates a validator with the given size limit
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Validator{maxSize: maxSize}
}

// Validate returns a template-invalid DocumentError when data is not usable
func (v *Validator) Validate(name string, data []byte) error {
	if _, err := v.PageCount(data); err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeTemplateInvalid, "template "+name+" is not a usable PDF", err)
	}
	return nil
}

// PageCount parses data independently of the form writer and returns its page count
func (v *Validator) PageCount(data []byte) (pages int, err error) {
	size := int64(len(data))

	if size == 0 {
		return 0, fmt.Errorf("file is empty")
	}
	if size > v.maxSize {
		return 0, fmt.Errorf("file too large: %d bytes (max: %d bytes)", size, v.maxSize)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\n\r "), pdfHeader) {
		return 0, fmt.Errorf("missing %s header", pdfHeader)
	}

	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), size)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF file: %w", err)
	}

	pages = reader.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("PDF has no pages")
	}
	return pages, nil
}

// ValidatingSource rejects templates that fail validation
type ValidatingSource struct {
	Source    Source
	Validator *Validator
}

// Open implements Source
func (s ValidatingSource) Open(ctx context.Context, name string) ([]byte, error) {
	data, err := s.Source.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.Validator.Validate(name, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Package form reads and fills the AcroForm fields of a PDF document using pdfcpu.
package form

import "errors"

// FieldType represents the type of a form field
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeDropdown  FieldType = "dropdown"
	FieldTypeListbox   FieldType = "listbox"
	FieldTypeButton    FieldType = "button"
	FieldTypeSignature FieldType = "signature"
	FieldTypeUnknown   FieldType = "unknown"
)

// Field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4)
const (
	flagReadOnly    = 1
	flagRequired    = 1 << 1
	flagMultiline   = 1 << 12
	flagRadio       = 1 << 15
	flagPushbutton  = 1 << 16
	flagCombo       = 1 << 17
	flagEdit        = 1 << 18
	offState        = "Off"
	defaultOnState  = "Yes"
	maxFieldDepth   = 32
	fieldNameJoiner = "."
)

var (
	// ErrFieldNotFound is returned when no field has the requested name
	ErrFieldNotFound = errors.New("field not found")
	// ErrReadOnly is returned when writing to a read-only field
	ErrReadOnly = errors.New("field is read-only")
	// ErrTypeMismatch is returned when the operation does not fit the field type
	ErrTypeMismatch = errors.New("operation does not match field type")
	// ErrOptionNotFound is returned when a radio or choice field has no such option
	ErrOptionNotFound = errors.New("option not found")
)

// Field describes one terminal form field
type Field struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	Value     string    `json:"value,omitempty"`
	Options   []string  `json:"options,omitempty"`
	OnState   string    `json:"on_state,omitempty"`
	ReadOnly  bool      `json:"read_only,omitempty"`
	Required  bool      `json:"required,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
	Multiline bool      `json:"multiline,omitempty"`
	Editable  bool      `json:"editable,omitempty"`
	Page      int       `json:"page,omitempty"`
}

// Checked reports whether a checkbox or radio field is in an on state
func (f Field) Checked() bool {
	return f.Value != "" && f.Value != offState
}

// AcceptsText reports whether SetText can write to the field
func (f Field) AcceptsText() bool {
	return f.Type == FieldTypeText || (f.Type == FieldTypeDropdown && f.Editable)
}

// AcceptsCheck reports whether Check can write to the field
func (f Field) AcceptsCheck() bool {
	return f.Type == FieldTypeCheckbox
}

// AcceptsOption reports whether Select can write to the field
func (f Field) AcceptsOption() bool {
	switch f.Type {
	case FieldTypeRadio, FieldTypeDropdown, FieldTypeListbox:
		return true
	default:
		return false
	}
}

// GroupByType groups fields by their type
func GroupByType(fields []Field) map[FieldType][]Field {
	grouped := make(map[FieldType][]Field)
	for _, f := range fields {
		grouped[f.Type] = append(grouped[f.Type], f)
	}
	return grouped
}

// Package mapping defines the per-form tables that tie case attributes to
// candidate PDF field names, and the transforms that format values for them.
package mapping

import (
	"fmt"
	"strings"
)

// Placeholders expanded in list candidate names
const (
	PlaceholderOneBased  = "{n}"
	PlaceholderZeroBased = "{i}"
)

// FieldMapping ties one case attribute to an ordered list of candidate field names
type FieldMapping struct {
	Attribute  string            `yaml:"attribute" json:"attribute"`
	Candidates []string          `yaml:"candidates" json:"candidates"`
	Transform  string            `yaml:"transform,omitempty" json:"transform,omitempty"`
	Match      string            `yaml:"match,omitempty" json:"match,omitempty"`
	Options    map[string]string `yaml:"options,omitempty" json:"options,omitempty"`
	Default    string            `yaml:"default,omitempty" json:"default,omitempty"`
}

// ListMapping expands a list attribute into numbered field slots
type ListMapping struct {
	Attribute string         `yaml:"attribute" json:"attribute"`
	Cap       int            `yaml:"cap" json:"cap"`
	Fields    []FieldMapping `yaml:"fields" json:"fields"`
}

// Table is the mapping for one form revision
type Table struct {
	Form        string         `yaml:"form" json:"form"`
	Revision    string         `yaml:"revision" json:"revision"`
	Title       string         `yaml:"title" json:"title"`
	Template    string         `yaml:"template" json:"template"`
	OutputKey   string         `yaml:"output_key" json:"output_key"`
	RequestFlag string         `yaml:"request_flag,omitempty" json:"request_flag,omitempty"`
	Fields      []FieldMapping `yaml:"fields" json:"fields"`
	Lists       []ListMapping  `yaml:"lists,omitempty" json:"lists,omitempty"`
}

// ID returns the form@revision identifier
func (t *Table) ID() string {
	return t.Form + "@" + t.Revision
}

// Expand returns a copy of the mapping for the list element at index,
// with placeholders replaced in every candidate name.
func (m FieldMapping) Expand(index int) FieldMapping {
	replacer := strings.NewReplacer(
		PlaceholderOneBased, fmt.Sprint(index+1),
		PlaceholderZeroBased, fmt.Sprint(index),
	)

	out := m
	out.Candidates = make([]string, len(m.Candidates))
	for i, c := range m.Candidates {
		out.Candidates[i] = replacer.Replace(c)
	}
	return out
}

// ValueKind says how a resolved value is written into a field
type ValueKind int

const (
	// KindText sets the string value of a text field
	KindText ValueKind = iota
	// KindCheck turns a checkbox on
	KindCheck
	// KindOption selects a radio or choice option
	KindOption
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheck:
		return "check"
	case KindOption:
		return "option"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name
func (k ValueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name
func (k *ValueKind) UnmarshalText(text []byte) error {
	for _, kind := range []ValueKind{KindText, KindCheck, KindOption} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown value kind %q", text)
}

// Value is a transformed attribute, ready to be written
type Value struct {
	Kind ValueKind `json:"kind"`
	Text string    `json:"text,omitempty"`
}

// String formats the value for logs
func (v Value) String() string {
	if v.Kind == KindCheck {
		return "[x]"
	}
	return v.Text
}

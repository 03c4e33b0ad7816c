package resolver

import (
	"github.com/a3tai/casedocs/internal/mapping"
	"github.com/a3tai/casedocs/internal/pdf/form"
)

// SkipReason explains why a mapping entry wrote nothing
type SkipReason string

const (
	// SkipNoValue means the attribute was absent, empty, or its check condition did not hold
	SkipNoValue SkipReason = "no_value"
	// SkipNoCandidate means none of the candidate names exist on the form
	SkipNoCandidate SkipReason = "no_candidate"
	// SkipTypeMismatch means the matched field cannot take the value
	SkipTypeMismatch SkipReason = "type_mismatch"
	// SkipReadOnly means the matched field is read-only
	SkipReadOnly SkipReason = "read_only"
	// SkipTransformError means the value could not be formatted
	SkipTransformError SkipReason = "transform_error"
	// SkipAlreadyAssigned means an earlier entry already claimed the field
	SkipAlreadyAssigned SkipReason = "already_assigned"
	// SkipOverCap means the list element is beyond the form's repeating slots
	SkipOverCap SkipReason = "over_cap"
	// SkipPanic means the entry panicked and was recovered
	SkipPanic SkipReason = "panic"
)

// NoList marks entries that did not come from a list expansion
const NoList = -1

// Assignment is one value bound to one form field
type Assignment struct {
	Attribute string         `json:"attribute"`
	Field     string         `json:"field"`
	FieldType form.FieldType `json:"field_type"`
	Value     mapping.Value  `json:"value"`
	Candidate int            `json:"candidate"`
	ListIndex int            `json:"list_index"`
}

// Skip is a mapping entry that produced no assignment
type Skip struct {
	Attribute string     `json:"attribute"`
	Reason    SkipReason `json:"reason"`
	Field     string     `json:"field,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	ListIndex int        `json:"list_index"`
}

// FilledFieldSet is the outcome of resolving one record against one form
type FilledFieldSet struct {
	Form        string       `json:"form"`
	Revision    string       `json:"revision"`
	Assignments []Assignment `json:"assignments"`
	Skipped     []Skip       `json:"skipped,omitempty"`
}

// Summary counts a FilledFieldSet for logs and responses
type Summary struct {
	Assigned        int `json:"assigned"`
	NoValue         int `json:"no_value"`
	NoCandidate     int `json:"no_candidate"`
	TypeMismatch    int `json:"type_mismatch"`
	TransformErrors int `json:"transform_errors"`
	Other           int `json:"other"`
}

// Summary returns the counts of assignments and skips by reason
func (s *FilledFieldSet) Summary() Summary {
	sum := Summary{Assigned: len(s.Assignments)}
	for _, skip := range s.Skipped {
		switch skip.Reason {
		case SkipNoValue:
			sum.NoValue++
		case SkipNoCandidate:
			sum.NoCandidate++
		case SkipTypeMismatch, SkipReadOnly:
			sum.TypeMismatch++
		case SkipTransformError:
			sum.TransformErrors++
		default:
			sum.Other++
		}
	}
	return sum
}

// Assigned returns the assignment made to field, if any
func (s *FilledFieldSet) Assigned(field string) (Assignment, bool) {
	for _, a := range s.Assignments {
		if a.Field == field {
			return a, true
		}
	}
	return Assignment{}, false
}

// SkippedFor returns the skips recorded for attribute
func (s *FilledFieldSet) SkippedFor(attribute string) []Skip {
	var out []Skip
	for _, skip := range s.Skipped {
		if skip.Attribute == attribute {
			out = append(out, skip)
		}
	}
	return out
}

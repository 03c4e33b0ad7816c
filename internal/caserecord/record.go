// Package caserecord holds the loosely typed case data a document request is built from.
package caserecord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RequiredKeys are expected on every case. Their absence is reported, not enforced.
var RequiredKeys = []string{
	"case_number",
	"decedent_name",
	"death_date",
	"trust_name",
	"trustee_name",
}

// Record is a single case: decedent, trustee, trust, property and beneficiary data
type Record struct {
	values map[string]any
}

// New wraps an existing map. A nil map yields an empty record.
func New(values map[string]any) *Record {
	if values == nil {
		values = make(map[string]any)
	}
	return &Record{values: values}
}

// Parse decodes a JSON object into a Record. Numbers keep their textual form
// so that APNs and ZIP codes sent as numbers are not reformatted.
func Parse(data []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("case data is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("failed to decode case data: %w", err)
	}

	return New(values), nil
}

// FromValue builds a Record from a JSON string, raw JSON bytes or an already
// decoded object, as tool arguments arrive in any of these forms.
func FromValue(v any) (*Record, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("case data is required")
	case string:
		return Parse([]byte(val))
	case []byte:
		return Parse(val)
	case json.RawMessage:
		return Parse(val)
	case map[string]any:
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("failed to encode case data: %w", err)
		}
		return Parse(data)
	default:
		return nil, fmt.Errorf("case data must be a JSON object, got %T", v)
	}
}

// Values returns the underlying map
func (r *Record) Values() map[string]any {
	return r.values
}

// Set stores a top-level value
func (r *Record) Set(key string, value any) {
	r.values[key] = value
}

// Has reports whether path resolves to a non-null value
func (r *Record) Has(path string) bool {
	_, ok := r.Lookup(path)
	return ok
}

// Lookup resolves a flat key, a dotted path ("trust.name") or an indexed path
// ("real_property.0.apn"). Flat keys containing dots win over nested traversal.
func (r *Record) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	if v, ok := r.values[path]; ok {
		return v, v != nil
	}

	if !strings.Contains(path, ".") {
		return nil, false
	}

	var current any = r.values
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, current != nil
}

// String returns the value at path formatted as a trimmed string
func (r *Record) String(path string) string {
	v, ok := r.Lookup(path)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

// List returns the object elements of the list at path. Scalar elements are
// wrapped as {"value": elem} so list mappings can still address them. A null
// element becomes an empty record so later elements keep their slot.
func (r *Record) List(path string) []*Record {
	v, ok := r.Lookup(path)
	if !ok {
		return nil
	}

	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]*Record, 0, len(items))
	for _, item := range items {
		switch elem := item.(type) {
		case nil:
			out = append(out, New(map[string]any{}))
		case map[string]any:
			out = append(out, New(elem))
		default:
			out = append(out, New(map[string]any{"value": elem}))
		}
	}
	return out
}

// CaseNumber returns the case identifier, if any
func (r *Record) CaseNumber() string {
	return r.String("case_number")
}

// MissingRequired returns the required keys the record does not carry
func (r *Record) MissingRequired() []string {
	var missing []string
	for _, key := range RequiredKeys {
		if r.String(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Flag reports whether key holds a true boolean (or a string/number that reads as one)
func (r *Record) Flag(key string) bool {
	v, ok := r.Lookup(key)
	if !ok {
		return false
	}
	b, ok := ParseBool(v)
	return ok && b
}

// ParseBool interprets JSON booleans and the common yes/no spellings.
// The second result is false when v carries no boolean meaning.
func ParseBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case json.Number:
		return b.String() != "0", true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "on", "1", "x", "checked":
			return true, true
		case "false", "no", "n", "off", "0":
			return false, true
		}
	}
	return false, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

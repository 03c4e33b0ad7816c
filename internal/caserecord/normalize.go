package caserecord

import "strings"

// propertyKeys maps real_property[] element keys onto the flat keys the form
// tables use. Earlier entries win when two sources share a destination.
var propertyKeys = []struct{ src, dst string }{
	{"address", "property_address"},
	{"street", "property_address"},
	{"city", "property_city"},
	{"county", "property_county"},
	{"state", "property_state"},
	{"zip", "property_zip"},
	{"apn", "apn"},
	{"legal_description", "legal_description"},
}

// Normalize fills derived keys that callers commonly leave out. Existing values
// are never overwritten.
func (r *Record) Normalize() *Record {
	r.deriveDecedentName()
	r.promoteFirstProperty()
	r.deriveCotrustees()
	return r
}

func (r *Record) setIfAbsent(key string, value any) {
	if r.Has(key) {
		if s, ok := r.values[key].(string); !ok || strings.TrimSpace(s) != "" {
			return
		}
	}
	r.values[key] = value
}

func (r *Record) deriveDecedentName() {
	parts := make([]string, 0, 3)
	for _, key := range []string{"decedent_first_name", "decedent_middle_name", "decedent_last_name"} {
		if s := r.String(key); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		r.setIfAbsent("decedent_full_name", strings.Join(parts, " "))
	}

	if full := r.String("decedent_full_name"); full != "" {
		r.setIfAbsent("decedent_name", full)
	}
}

func (r *Record) promoteFirstProperty() {
	properties := r.List("real_property")
	if len(properties) == 0 {
		return
	}

	first := properties[0]
	for _, key := range propertyKeys {
		if s := first.String(key.src); s != "" {
			r.setIfAbsent(key.dst, s)
		}
	}
}

func (r *Record) deriveCotrustees() {
	cotrustees := r.List("cotrustees")
	if len(cotrustees) == 0 {
		return
	}

	names := make([]any, 0, len(cotrustees))
	for _, c := range cotrustees {
		name := c.String("name")
		if name == "" {
			name = c.String("value")
		}
		if name != "" {
			names = append(names, name)
		}
	}

	if len(names) > 0 {
		r.setIfAbsent("cotrustee_names", names)
		r.setIfAbsent("has_cotrustees", true)
	}
}

package caserecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCase = `{
	"case_number": "TA-202403-0042",
	"decedent_first_name": "Jane",
	"decedent_middle_name": "Q",
	"decedent_last_name": "Doe",
	"death_date": "2024-03-01",
	"trust_name": "The Doe Family Trust",
	"trustee_name": "John Doe",
	"property_zip": 91203,
	"principal_residence": false,
	"notes": null,
	"trust": {"name": "Nested Trust", "date": "2001-05-06"},
	"real_property": [
		{"address": "450 N Brand Blvd", "city": "Glendale", "apn": "5642-001-017", "county": "Los Angeles"},
		{"address": "1 Second St", "apn": "0000-000-000"}
	],
	"beneficiaries": [
		{"name": "Ann Doe", "relationship": "Daughter", "percentage": 50},
		"Bob Doe",
		null
	],
	"cotrustees": [{"name": "Mary Roe"}, {"name": ""}]
}`

func TestParse(t *testing.T) {
	rec, err := Parse([]byte(sampleCase))
	require.NoError(t, err)

	assert.Equal(t, "TA-202403-0042", rec.CaseNumber())
	assert.Equal(t, "91203", rec.String("property_zip"))
	assert.True(t, rec.Has("principal_residence"))
	assert.False(t, rec.Has("notes"))
	assert.False(t, rec.Has("missing"))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("   "))
	assert.Error(t, err)

	_, err = Parse([]byte(`[1,2]`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestRecord_Lookup(t *testing.T) {
	rec, err := Parse([]byte(sampleCase))
	require.NoError(t, err)

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{path: "trust_name", want: "The Doe Family Trust", wantOK: true},
		{path: "trust.name", want: "Nested Trust", wantOK: true},
		{path: "real_property.1.apn", want: "0000-000-000", wantOK: true},
		{path: "real_property.5.apn", wantOK: false},
		{path: "real_property.x.apn", wantOK: false},
		{path: "trust.name.first", wantOK: false},
		{path: "", wantOK: false},
		{path: "notes", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, ok := rec.Lookup(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, rec.String(tt.path))
		})
	}
}

func TestRecord_LookupPrefersFlatKey(t *testing.T) {
	rec := New(map[string]any{
		"trust.name": "flat",
		"trust":      map[string]any{"name": "nested"},
	})
	assert.Equal(t, "flat", rec.String("trust.name"))
}

func TestRecord_List(t *testing.T) {
	rec, err := Parse([]byte(sampleCase))
	require.NoError(t, err)

	beneficiaries := rec.List("beneficiaries")
	require.Len(t, beneficiaries, 3)
	assert.Equal(t, "Ann Doe", beneficiaries[0].String("name"))
	assert.Equal(t, "50", beneficiaries[0].String("percentage"))
	assert.Equal(t, "Bob Doe", beneficiaries[1].String("value"))
	assert.Empty(t, beneficiaries[2].String("value"))

	positional := New(map[string]any{
		"beneficiaries": []any{nil, map[string]any{"name": "B"}},
	}).List("beneficiaries")
	require.Len(t, positional, 2)
	assert.Empty(t, positional[0].String("name"))
	assert.Equal(t, "B", positional[1].String("name"))

	assert.Nil(t, rec.List("trust_name"))
	assert.Nil(t, rec.List("missing"))
}

func TestRecord_MissingRequired(t *testing.T) {
	rec := New(map[string]any{
		"decedent_name": "Jane Doe",
		"death_date":    "2024-03-01",
		"trust_name":    "  ",
	})

	assert.Equal(t, []string{"case_number", "trust_name", "trustee_name"}, rec.MissingRequired())
}

func TestRecord_Normalize(t *testing.T) {
	rec, err := Parse([]byte(sampleCase))
	require.NoError(t, err)
	rec.Normalize()

	assert.Equal(t, "Jane Q Doe", rec.String("decedent_full_name"))
	assert.Equal(t, "Jane Q Doe", rec.String("decedent_name"))
	assert.Equal(t, "450 N Brand Blvd", rec.String("property_address"))
	assert.Equal(t, "Glendale", rec.String("property_city"))
	assert.Equal(t, "5642-001-017", rec.String("apn"))
	assert.Equal(t, "Los Angeles", rec.String("property_county"))
	// existing flat values win over promoted ones
	assert.Equal(t, "91203", rec.String("property_zip"))
	assert.True(t, rec.Flag("has_cotrustees"))
	assert.Equal(t, "Mary Roe", rec.String("cotrustee_names.0"))
	assert.Empty(t, rec.MissingRequired())
}

func TestRecord_NormalizeAddressBeforeStreet(t *testing.T) {
	for i := 0; i < 50; i++ {
		rec := New(map[string]any{
			"real_property": []any{map[string]any{
				"address": "450 N Brand Blvd",
				"street":  "Brand",
			}},
		}).Normalize()
		require.Equal(t, "450 N Brand Blvd", rec.String("property_address"))
	}

	rec := New(map[string]any{
		"real_property": []any{map[string]any{"street": "Brand"}},
	}).Normalize()
	assert.Equal(t, "Brand", rec.String("property_address"))
}

func TestRecord_NormalizeKeepsExplicitName(t *testing.T) {
	rec := New(map[string]any{
		"decedent_name":       "Jane Doe",
		"decedent_first_name": "J",
		"decedent_last_name":  "D",
		"apn":                 "",
		"real_property":       []any{map[string]any{"apn": "1234-567-890"}},
	}).Normalize()

	assert.Equal(t, "Jane Doe", rec.String("decedent_name"))
	assert.Equal(t, "J D", rec.String("decedent_full_name"))
	assert.Equal(t, "1234-567-890", rec.String("apn"))
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in     any
		want   bool
		wantOK bool
	}{
		{in: true, want: true, wantOK: true},
		{in: false, want: false, wantOK: true},
		{in: "Yes", want: true, wantOK: true},
		{in: "no", want: false, wantOK: true},
		{in: "maybe", wantOK: false},
		{in: nil, wantOK: false},
		{in: 1.0, want: true, wantOK: true},
	}

	for _, tt := range tests {
		got, ok := ParseBool(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestRecord_Flag(t *testing.T) {
	rec := New(map[string]any{"generate_pcor": true, "generate_19p": "false", "generate_502d": "yes"})
	assert.True(t, rec.Flag("generate_pcor"))
	assert.False(t, rec.Flag("generate_19p"))
	assert.True(t, rec.Flag("generate_502d"))
	assert.False(t, rec.Flag("generate_trust_deed"))
}

func TestFromValue(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{name: "json string", input: `{"decedent_name":"Jane Doe","apn":1234567890}`},
		{name: "bytes", input: []byte(`{"decedent_name":"Jane Doe","apn":1234567890}`)},
		{name: "object", input: map[string]any{"decedent_name": "Jane Doe", "apn": 1234567890}},
		{name: "nil", input: nil, wantErr: true},
		{name: "array", input: `["Jane Doe"]`, wantErr: true},
		{name: "number", input: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := FromValue(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Jane Doe", rec.String("decedent_name"))
			assert.Equal(t, "1234567890", rec.String("apn"))
		})
	}
}

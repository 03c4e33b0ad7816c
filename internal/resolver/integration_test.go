package resolver

import (
	"testing"

	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/mapping"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/a3tai/casedocs/internal/pdf/pdftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boe502DTemplate mirrors the field layout of the fillable BOE-502-D
func boe502DTemplate() []byte {
	const prefix = "form1[0].#subform[0]."
	b := pdftest.New().Text(
		prefix+"DECEDENT_NAME[0]",
		prefix+"DATE_DEATH[0]",
		prefix+"STREET_ADDRESS[0]",
		prefix+"CITY[0]",
		prefix+"ZIP[0]",
		prefix+"APN[0]",
		prefix+"PRINT_NAME[0]",
		prefix+"DAYTIME_PHONE[0]",
	).Checkbox(
		prefix+"SPOUSE[0]",
		prefix+"CHILD[0]",
		prefix+"TRUST[0]",
	)
	for i := 1; i <= 6; i++ {
		n := string(rune('0' + i))
		b.Text(prefix+"TRANSFEREE_NAME"+n+"[0]", prefix+"RELATIONSHIP"+n+"[0]", prefix+"PERCENT"+n+"[0]")
	}
	return b.Bytes()
}

func loadTable(t *testing.T, id string) *mapping.Table {
	t.Helper()
	reg, err := mapping.LoadEmbedded()
	require.NoError(t, err)
	table, err := reg.MustLookup(id)
	require.NoError(t, err)
	return table
}

func fillAndReload(t *testing.T, table *mapping.Table, template []byte, values map[string]any) (*form.Document, *FilledFieldSet) {
	t.Helper()

	doc, err := form.LoadBytes(template)
	require.NoError(t, err)

	set, errs := New(table, nil).Fill(caserecord.New(values).Normalize(), doc)
	require.Empty(t, errs)

	data, err := doc.Bytes()
	require.NoError(t, err)

	filled, err := form.LoadBytes(data)
	require.NoError(t, err)
	return filled, set
}

func TestDeathOfOwnerEndToEnd(t *testing.T) {
	filled, set := fillAndReload(t, loadTable(t, "boe-502-d"), boe502DTemplate(), map[string]any{
		"decedent_name": "Jane Doe",
		"death_date":    "2024-03-01",
		"trustee_name":  "John Doe",
		"trust_name":    "The Doe Trust",
		"apn":           "1234-567-890",
	})

	value := func(name string) string {
		v, ok := filled.Value("form1[0].#subform[0]." + name)
		require.True(t, ok, name)
		return v
	}

	assert.Equal(t, "Jane Doe", value("DECEDENT_NAME[0]"))
	assert.Equal(t, "03/01/2024", value("DATE_DEATH[0]"))
	assert.Equal(t, "1234-567-890", value("APN[0]"))
	assert.Equal(t, "John Doe", value("PRINT_NAME[0]"))
	assert.Empty(t, value("TRANSFEREE_NAME1[0]"))
	assert.Empty(t, value("CITY[0]"))

	trust, _ := filled.Lookup("form1[0].#subform[0].TRUST[0]")
	assert.False(t, trust.Checked())

	assert.Equal(t, 4, set.Summary().Assigned)
}

func TestDeathOfOwnerWithBeneficiaries(t *testing.T) {
	beneficiaries := make([]any, 0, 7)
	for i := 0; i < 7; i++ {
		beneficiaries = append(beneficiaries, map[string]any{
			"name":         "Heir " + string(rune('A'+i)),
			"relationship": "Child",
			"percentage":   14.28,
		})
	}

	filled, set := fillAndReload(t, loadTable(t, "boe-502-d"), boe502DTemplate(), map[string]any{
		"decedent_name": "Jane Doe",
		"transfer_to":   "trust",
		"trustee_phone": "8182916217",
		"beneficiaries": beneficiaries,
		"real_property": []any{map[string]any{"address": "450 N Brand Blvd", "city": "Glendale", "zip": "91203"}},
	})

	v, _ := filled.Value("form1[0].#subform[0].TRANSFEREE_NAME6[0]")
	assert.Equal(t, "Heir F", v)
	v, _ = filled.Value("form1[0].#subform[0].PERCENT1[0]")
	assert.Equal(t, "14.28%", v)
	v, _ = filled.Value("form1[0].#subform[0].STREET_ADDRESS[0]")
	assert.Equal(t, "450 N Brand Blvd", v)
	v, _ = filled.Value("form1[0].#subform[0].DAYTIME_PHONE[0]")
	assert.Equal(t, "(818) 291-6217", v)

	trust, _ := filled.Lookup("form1[0].#subform[0].TRUST[0]")
	assert.True(t, trust.Checked())
	spouse, _ := filled.Lookup("form1[0].#subform[0].SPOUSE[0]")
	assert.False(t, spouse.Checked())

	require.Len(t, set.SkippedFor("beneficiaries"), 1)
	assert.Equal(t, SkipOverCap, set.SkippedFor("beneficiaries")[0].Reason)
}

func TestDateRoundTrip(t *testing.T) {
	table := &mapping.Table{
		Form: "roundtrip", Revision: "1", Template: "t.pdf", OutputKey: "t",
		Fields: []mapping.FieldMapping{{Attribute: "trust_date", Candidates: []string{"TRUST_DATE"}, Transform: mapping.TransformDate}},
	}

	filled, _ := fillAndReload(t, table, pdftest.New().Text("TRUST_DATE").Bytes(), map[string]any{"trust_date": "1990-01-01"})

	v, _ := filled.Value("TRUST_DATE")
	assert.Equal(t, "01/01/1990", v)
}

func TestLegacyPCORNamingScheme(t *testing.T) {
	template := pdftest.New().
		Text("Text1", "Text3", "Buyer's email address", "glendale", "Text10").
		Checkbox("Check Box1", "Check Box2").
		Bytes()

	filled, _ := fillAndReload(t, loadTable(t, "boe-502-a@2019"), template, map[string]any{
		"buyer_name":          "John Doe, Trustee",
		"apn":                 "5642-001-017",
		"buyer_email":         "john@example.com",
		"property_city":       "Glendale",
		"purchase_price":      0,
		"principal_residence": false,
	})

	for name, want := range map[string]string{
		"Text1":                 "John Doe, Trustee",
		"Text3":                 "5642-001-017",
		"Buyer's email address": "john@example.com",
		"glendale":              "Glendale",
		"Text10":                "$0.00",
	} {
		v, _ := filled.Value(name)
		assert.Equal(t, want, v, name)
	}

	yes, _ := filled.Lookup("Check Box1")
	no, _ := filled.Lookup("Check Box2")
	assert.False(t, yes.Checked())
	assert.True(t, no.Checked())
}

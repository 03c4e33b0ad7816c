package form_test

import (
	"testing"

	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/a3tai/casedocs/internal/pdf/pdftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleForm() []byte {
	return pdftest.New().
		Pages(2).
		Text("form1[0].#subform[0].DECEDENT_NAME[0]", "form1[0].#subform[0].APN[0]").
		TextValue("Preset", "already here").
		Checkbox("form1[0].#subform[0].SPOUSE[0]").
		Add(pdftest.Field{Name: "Exempt", Type: form.FieldTypeCheckbox, OnState: "On", Page: 2}).
		Radio("Residence", "Yes", "No").
		Dropdown("County", "Los Angeles", "Orange").
		Add(pdftest.Field{Name: "Notes", Type: form.FieldTypeDropdown, Options: []string{"A"}, Editable: true}).
		Listbox("Exemption", "R&T 11930", "R&T 11911").
		Add(pdftest.Field{Name: "Locked", Type: form.FieldTypeText, ReadOnly: true}).
		Add(pdftest.Field{Name: "Signature", Type: form.FieldTypeSignature}).
		Bytes()
}

func TestLoadBytes_Fields(t *testing.T) {
	doc, err := form.LoadBytes(sampleForm())
	require.NoError(t, err)

	assert.True(t, doc.HasForm())
	assert.Equal(t, 2, doc.PageCount())

	fields := doc.Fields()
	require.Len(t, fields, 11)
	assert.Equal(t, "form1[0].#subform[0].DECEDENT_NAME[0]", fields[0].Name)

	tests := []struct {
		name     string
		wantType form.FieldType
	}{
		{name: "form1[0].#subform[0].DECEDENT_NAME[0]", wantType: form.FieldTypeText},
		{name: "form1[0].#subform[0].SPOUSE[0]", wantType: form.FieldTypeCheckbox},
		{name: "Residence", wantType: form.FieldTypeRadio},
		{name: "County", wantType: form.FieldTypeDropdown},
		{name: "Exemption", wantType: form.FieldTypeListbox},
		{name: "Signature", wantType: form.FieldTypeSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := doc.Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, f.Type)
		})
	}

	_, ok := doc.Lookup("DECEDENT_NAME[0]")
	assert.False(t, ok, "partial names are not qualified names")

	preset, _ := doc.Value("Preset")
	assert.Equal(t, "already here", preset)

	exempt, _ := doc.Lookup("Exempt")
	assert.Equal(t, "On", exempt.OnState)
	assert.Equal(t, 2, exempt.Page)

	spouse, _ := doc.Lookup("form1[0].#subform[0].SPOUSE[0]")
	assert.Equal(t, "Yes", spouse.OnState)
	assert.Equal(t, 1, spouse.Page)
	assert.False(t, spouse.Checked())

	residence, _ := doc.Lookup("Residence")
	assert.ElementsMatch(t, []string{"Yes", "No"}, residence.Options)

	county, _ := doc.Lookup("County")
	assert.Equal(t, []string{"Los Angeles", "Orange"}, county.Options)

	locked, _ := doc.Lookup("Locked")
	assert.True(t, locked.ReadOnly)

	grouped := form.GroupByType(fields)
	assert.Len(t, grouped[form.FieldTypeText], 4)
	assert.Len(t, grouped[form.FieldTypeCheckbox], 2)
}

func TestLoadBytes_NoForm(t *testing.T) {
	doc, err := form.LoadBytes(pdftest.New().WithoutForm().Bytes())
	require.NoError(t, err)

	assert.False(t, doc.HasForm())
	assert.Empty(t, doc.Fields())
}

func TestLoadBytes_Garbage(t *testing.T) {
	_, err := form.LoadBytes([]byte("this is not a pdf"))
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := form.LoadFile("/nonexistent/form.pdf")
	assert.Error(t, err)
}

func TestPermissions_Unencrypted(t *testing.T) {
	doc, err := form.LoadBytes(sampleForm())
	require.NoError(t, err)

	assert.False(t, doc.Encrypted())
	perms := doc.Permissions()
	assert.True(t, perms.CanFillForms())
	assert.Empty(t, perms.Denied())
}

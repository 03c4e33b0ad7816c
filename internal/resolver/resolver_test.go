package resolver

import (
	"errors"
	"testing"

	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/a3tai/casedocs/internal/mapping"
	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/a3tai/casedocs/internal/pdf/form"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeForm is an in-memory FieldSet and Writer
type fakeForm struct {
	fields  map[string]form.Field
	written map[string]string
	failOn  map[string]error
	panicOn string
}

func newFakeForm(fields ...form.Field) *fakeForm {
	f := &fakeForm{
		fields:  make(map[string]form.Field),
		written: make(map[string]string),
		failOn:  make(map[string]error),
	}
	for _, field := range fields {
		f.fields[field.Name] = field
	}
	return f
}

func (f *fakeForm) Lookup(name string) (form.Field, bool) {
	field, ok := f.fields[name]
	return field, ok
}

func (f *fakeForm) write(name, value string) error {
	if name == f.panicOn {
		panic("corrupt widget")
	}
	if err := f.failOn[name]; err != nil {
		return err
	}
	f.written[name] = value
	return nil
}

func (f *fakeForm) SetText(name, value string) error { return f.write(name, value) }
func (f *fakeForm) Check(name string) error          { return f.write(name, "[x]") }
func (f *fakeForm) Select(name, value string) error  { return f.write(name, "option:"+value) }

func text(name string) form.Field {
	return form.Field{Name: name, Type: form.FieldTypeText}
}

func checkbox(name string) form.Field {
	return form.Field{Name: name, Type: form.FieldTypeCheckbox, OnState: "Yes"}
}

func table(fields []mapping.FieldMapping, lists ...mapping.ListMapping) *mapping.Table {
	return &mapping.Table{Form: "test", Revision: "1", Template: "t.pdf", OutputKey: "t", Fields: fields, Lists: lists}
}

func TestResolve_MissingOptionalAttribute(t *testing.T) {
	doc := newFakeForm(text("DECEDENT_NAME"), text("TRUST_NAME"))
	r := New(table([]mapping.FieldMapping{
		{Attribute: "decedent_name", Candidates: []string{"DECEDENT_NAME"}},
		{Attribute: "trust_name", Candidates: []string{"TRUST_NAME"}},
	}), nil)

	set, errs := r.Fill(caserecord.New(map[string]any{"decedent_name": "Jane Doe"}), doc)

	assert.Empty(t, errs)
	assert.Equal(t, map[string]string{"DECEDENT_NAME": "Jane Doe"}, doc.written)
	assert.Len(t, set.SkippedFor("trust_name"), 1)
	assert.Equal(t, SkipNoValue, set.SkippedFor("trust_name")[0].Reason)
}

func TestResolve_CandidatePriority(t *testing.T) {
	candidates := []string{"form1[0].#subform[0].APN[0]", "APN", "Assessor's parcel number", "Text3"}
	m := []mapping.FieldMapping{{Attribute: "apn", Candidates: candidates}}
	rec := caserecord.New(map[string]any{"apn": "1234-567-890"})

	for n := range candidates {
		t.Run(candidates[n], func(t *testing.T) {
			// only the n-th candidate exists; later ones too, to prove the earliest present wins
			var fields []form.Field
			for _, name := range candidates[n:] {
				fields = append(fields, text(name))
			}
			doc := newFakeForm(fields...)

			set, errs := New(table(m), nil).Fill(rec, doc)
			require.Empty(t, errs)

			require.Len(t, set.Assignments, 1)
			assert.Equal(t, candidates[n], set.Assignments[0].Field)
			assert.Equal(t, n, set.Assignments[0].Candidate)
			assert.Equal(t, map[string]string{candidates[n]: "1234-567-890"}, doc.written)
		})
	}
}

func TestResolve_NoCandidateIsNotAnError(t *testing.T) {
	doc := newFakeForm(text("OTHER"))
	r := New(table([]mapping.FieldMapping{{Attribute: "apn", Candidates: []string{"APN", "Text3"}}}), nil)

	set, errs := r.Fill(caserecord.New(map[string]any{"apn": "1"}), doc)

	assert.Empty(t, errs)
	assert.Empty(t, set.Assignments)
	require.Len(t, set.Skipped, 1)
	assert.Equal(t, SkipNoCandidate, set.Skipped[0].Reason)
	assert.Equal(t, 1, set.Summary().NoCandidate)
}

func TestResolve_YesNoCheckboxPair(t *testing.T) {
	fields := []mapping.FieldMapping{
		{Attribute: "principal_residence", Candidates: []string{"PRINCIPAL_RES_YES"}, Transform: mapping.TransformCheckTrue},
		{Attribute: "principal_residence", Candidates: []string{"PRINCIPAL_RES_NO"}, Transform: mapping.TransformCheckFalse},
	}

	tests := []struct {
		name   string
		values map[string]any
		want   map[string]string
	}{
		{name: "true checks yes only", values: map[string]any{"principal_residence": true}, want: map[string]string{"PRINCIPAL_RES_YES": "[x]"}},
		{name: "false checks no only", values: map[string]any{"principal_residence": false}, want: map[string]string{"PRINCIPAL_RES_NO": "[x]"}},
		{name: "absent checks neither", values: map[string]any{}, want: map[string]string{}},
		{name: "null checks neither", values: map[string]any{"principal_residence": nil}, want: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newFakeForm(checkbox("PRINCIPAL_RES_YES"), checkbox("PRINCIPAL_RES_NO"))

			_, errs := New(table(fields), nil).Fill(caserecord.New(tt.values), doc)

			assert.Empty(t, errs)
			assert.Equal(t, tt.want, doc.written)
		})
	}
}

func TestResolve_ListCap(t *testing.T) {
	list := mapping.ListMapping{
		Attribute: "beneficiaries",
		Cap:       6,
		Fields: []mapping.FieldMapping{
			{Attribute: "name", Candidates: []string{"BENEFICIARY{n}"}},
			{Attribute: "percentage", Candidates: []string{"SHARE_{i}"}, Transform: mapping.TransformPercent},
		},
	}

	var fields []form.Field
	for i := 1; i <= 8; i++ {
		fields = append(fields, text("BENEFICIARY"+string(rune('0'+i))), text("SHARE_"+string(rune('0'+i-1))))
	}
	doc := newFakeForm(fields...)

	beneficiaries := make([]any, 0, 8)
	for i := 0; i < 8; i++ {
		beneficiaries = append(beneficiaries, map[string]any{"name": "Heir " + string(rune('A'+i)), "percentage": 12.5})
	}

	set, errs := New(table(nil, list), nil).Fill(caserecord.New(map[string]any{"beneficiaries": beneficiaries}), doc)

	assert.Empty(t, errs)
	assert.Len(t, doc.written, 12)
	assert.Equal(t, "Heir A", doc.written["BENEFICIARY1"])
	assert.Equal(t, "Heir F", doc.written["BENEFICIARY6"])
	assert.Equal(t, "12.5%", doc.written["SHARE_0"])
	assert.NotContains(t, doc.written, "BENEFICIARY7")
	assert.NotContains(t, doc.written, "SHARE_6")

	a, ok := set.Assigned("BENEFICIARY2")
	require.True(t, ok)
	assert.Equal(t, 1, a.ListIndex)
	assert.Equal(t, "name[1]", a.Attribute)

	over := set.SkippedFor("beneficiaries")
	require.Len(t, over, 1)
	assert.Equal(t, SkipOverCap, over[0].Reason)
}

func TestResolve_ScalarListElements(t *testing.T) {
	list := mapping.ListMapping{
		Attribute: "cotrustee_names",
		Cap:       3,
		Fields:    []mapping.FieldMapping{{Attribute: "value", Candidates: []string{"COTRUSTEE_NAME{n}"}}},
	}
	doc := newFakeForm(text("COTRUSTEE_NAME1"), text("COTRUSTEE_NAME2"))

	_, errs := New(table(nil, list), nil).Fill(caserecord.New(map[string]any{
		"cotrustee_names": []any{"Mary Roe", "Sam Poe"},
	}), doc)

	assert.Empty(t, errs)
	assert.Equal(t, map[string]string{"COTRUSTEE_NAME1": "Mary Roe", "COTRUSTEE_NAME2": "Sam Poe"}, doc.written)
}

func TestResolve_TransformFailureSkipsOnlyThatField(t *testing.T) {
	doc := newFakeForm(text("DATE_DEATH"), text("DECEDENT_NAME"))
	r := New(table([]mapping.FieldMapping{
		{Attribute: "death_date", Candidates: []string{"DATE_DEATH"}, Transform: mapping.TransformDate},
		{Attribute: "decedent_name", Candidates: []string{"DECEDENT_NAME"}},
	}), nil)

	set, errs := r.Fill(caserecord.New(map[string]any{"death_date": "last spring", "decedent_name": "Jane Doe"}), doc)

	assert.Empty(t, errs)
	assert.Equal(t, map[string]string{"DECEDENT_NAME": "Jane Doe"}, doc.written)
	assert.Equal(t, 1, set.Summary().TransformErrors)
}

func TestResolve_TypeHandling(t *testing.T) {
	doc := newFakeForm(
		text("NAME"),
		checkbox("SPOUSE"),
		form.Field{Name: "COUNTY", Type: form.FieldTypeDropdown, Options: []string{"Los Angeles"}},
		form.Field{Name: "RESIDENCE", Type: form.FieldTypeRadio, Options: []string{"Yes", "No"}},
		form.Field{Name: "LOCKED", Type: form.FieldTypeText, ReadOnly: true},
		form.Field{Name: "SIG", Type: form.FieldTypeSignature},
	)

	r := New(table([]mapping.FieldMapping{
		{Attribute: "transfer_to", Candidates: []string{"NAME"}, Transform: mapping.TransformEquals, Match: "spouse"},
		{Attribute: "transfer_to", Candidates: []string{"SPOUSE"}, Transform: mapping.TransformEquals, Match: "spouse"},
		{Attribute: "county", Candidates: []string{"COUNTY"}},
		{Attribute: "residence", Candidates: []string{"RESIDENCE"}, Transform: mapping.TransformOption, Options: map[string]string{"true": "Yes"}},
		{Attribute: "county", Candidates: []string{"LOCKED"}},
		{Attribute: "county", Candidates: []string{"SIG"}},
	}), nil)

	set, errs := r.Fill(caserecord.New(map[string]any{
		"transfer_to": "spouse",
		"county":      "Los Angeles",
		"residence":   "true",
	}), doc)

	assert.Empty(t, errs)
	assert.Equal(t, map[string]string{
		"SPOUSE":    "[x]",
		"COUNTY":    "option:Los Angeles",
		"RESIDENCE": "option:Yes",
	}, doc.written)

	reasons := map[string]SkipReason{}
	for _, s := range set.Skipped {
		reasons[s.Field] = s.Reason
	}
	assert.Equal(t, SkipTypeMismatch, reasons["NAME"])
	assert.Equal(t, SkipReadOnly, reasons["LOCKED"])
	assert.Equal(t, SkipTypeMismatch, reasons["SIG"])
	assert.Equal(t, 3, set.Summary().TypeMismatch)
}

func TestResolve_FirstEntryClaimsField(t *testing.T) {
	doc := newFakeForm(text("AFFIANT"))
	r := New(table([]mapping.FieldMapping{
		{Attribute: "surviving_trustee", Candidates: []string{"AFFIANT"}},
		{Attribute: "trustee_name", Candidates: []string{"AFFIANT"}},
	}), nil)

	set, _ := r.Fill(caserecord.New(map[string]any{"surviving_trustee": "Mary Roe", "trustee_name": "John Doe"}), doc)
	assert.Equal(t, "Mary Roe", doc.written["AFFIANT"])
	assert.Equal(t, SkipAlreadyAssigned, set.SkippedFor("trustee_name")[0].Reason)

	doc = newFakeForm(text("AFFIANT"))
	r.Fill(caserecord.New(map[string]any{"trustee_name": "John Doe"}), doc)
	assert.Equal(t, "John Doe", doc.written["AFFIANT"])
}

func TestApply_PerFieldErrors(t *testing.T) {
	doc := newFakeForm(text("A"), text("B"), text("C"))
	doc.failOn["A"] = errors.New("widget missing")
	doc.panicOn = "B"

	r := New(table([]mapping.FieldMapping{
		{Attribute: "a", Candidates: []string{"A"}},
		{Attribute: "b", Candidates: []string{"B"}},
		{Attribute: "c", Candidates: []string{"C"}},
	}), nil)

	set, errs := r.Fill(caserecord.New(map[string]any{"a": "1", "b": "2", "c": "3"}), doc)

	assert.Len(t, set.Assignments, 3)
	require.Len(t, errs, 2)
	assert.Equal(t, map[string]string{"C": "3"}, doc.written)

	var de *pdferrors.DocumentError
	require.ErrorAs(t, errs[0], &de)
	assert.Equal(t, pdferrors.ErrorTypeFieldWrite, de.Type)
	assert.Equal(t, "A", de.Field)
	assert.Equal(t, "a", de.Attribute)
	assert.False(t, de.Type.IsFatal())
	assert.Contains(t, errs[1].Error(), "corrupt widget")
}

// panickyFields blows up on lookup of one name
type panickyFields struct{ *fakeForm }

func (p panickyFields) Lookup(name string) (form.Field, bool) {
	if name == "BOOM" {
		panic("lookup exploded")
	}
	return p.fakeForm.Lookup(name)
}

func TestResolve_RecoversPerEntry(t *testing.T) {
	doc := newFakeForm(text("OK"))
	r := New(table([]mapping.FieldMapping{
		{Attribute: "a", Candidates: []string{"BOOM"}},
		{Attribute: "b", Candidates: []string{"OK"}},
	}), nil)

	set := r.Resolve(caserecord.New(map[string]any{"a": "1", "b": "2"}), panickyFields{doc})

	require.Len(t, set.Assignments, 1)
	assert.Equal(t, "OK", set.Assignments[0].Field)
	assert.Equal(t, SkipPanic, set.SkippedFor("a")[0].Reason)
	assert.Equal(t, 1, set.Summary().Other)
}

func TestResolve_LogsTypedSkips(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	doc := newFakeForm(text("RESIDENCE"))
	r := New(table([]mapping.FieldMapping{
		{Attribute: "principal_residence", Candidates: []string{"RESIDENCE"}, Transform: mapping.TransformCheckTrue},
		{Attribute: "apn", Candidates: []string{"APN", "A.P.N."}},
	}), logger)

	set := r.Resolve(caserecord.New(map[string]any{"principal_residence": true, "apn": "1234"}), doc)
	assert.Empty(t, set.Assignments)

	kinds := map[pdferrors.ErrorType]string{}
	var traced bool
	for _, entry := range hook.AllEntries() {
		if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
			var de *pdferrors.DocumentError
			require.ErrorAs(t, err, &de)
			kinds[de.Type] = de.Attribute
		}
		if entry.Level == logrus.TraceLevel {
			traced = true
			assert.Equal(t, "test", entry.Data["form"])
			assert.Contains(t, entry.Message, "Skipped")
		}
	}

	assert.Equal(t, map[pdferrors.ErrorType]string{
		pdferrors.ErrorTypeTypeMismatch: "principal_residence",
		pdferrors.ErrorTypeFieldMissing: "apn",
	}, kinds)
	assert.True(t, traced)
}

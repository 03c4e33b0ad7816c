package mapping

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/a3tai/casedocs/internal/caserecord"
	"github.com/spf13/cast"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Transform names
const (
	TransformIdentity   = "identity"
	TransformUpper      = "upper"
	TransformDate       = "date"
	TransformLegalDate  = "legal_date"
	TransformCurrency   = "currency"
	TransformPercent    = "percent"
	TransformPhone      = "phone"
	TransformSSNLast4   = "ssn_last4"
	TransformCheckTrue  = "check_true"
	TransformCheckFalse = "check_false"
	TransformEquals     = "equals"
	TransformOption     = "option"
)

// Output layouts
const (
	DateLayout      = "01/02/2006"
	LegalDateLayout = "January 2, 2006"
)

// TransformFunc converts a non-nil raw attribute. ok is false when the entry
// should be skipped without error.
type TransformFunc func(raw any, m *FieldMapping) (v Value, ok bool, err error)

var transforms = map[string]TransformFunc{
	TransformIdentity:   identity,
	TransformUpper:      upper,
	TransformDate:       formatDate(DateLayout),
	TransformLegalDate:  formatDate(LegalDateLayout),
	TransformCurrency:   currency,
	TransformPercent:    percent,
	TransformPhone:      phone,
	TransformSSNLast4:   ssnLast4,
	TransformCheckTrue:  checkWhen(true),
	TransformCheckFalse: checkWhen(false),
	TransformEquals:     equals,
	TransformOption:     option,
}

// inputLayouts are tried before falling back to cast's date parser
var inputLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

var usd = message.NewPrinter(language.AmericanEnglish)

// Transforms returns the known transform names, sorted
func Transforms() []string {
	names := make([]string, 0, len(transforms))
	for name := range transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownTransform reports whether name is a registered transform. Empty means identity.
func KnownTransform(name string) bool {
	if name == "" {
		return true
	}
	_, ok := transforms[name]
	return ok
}

// Evaluate reads the mapped attribute from rec and transforms it. ok is false
// when there is nothing to write: absent or null attribute, empty result, or a
// check condition that does not hold.
func (m *FieldMapping) Evaluate(rec *caserecord.Record) (Value, bool, error) {
	raw, found := rec.Lookup(m.Attribute)
	if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
		found = false
	}
	if !found {
		if m.Default == "" {
			return Value{}, false, nil
		}
		raw = m.Default
	}

	name := m.Transform
	if name == "" {
		name = TransformIdentity
	}
	fn, known := transforms[name]
	if !known {
		return Value{}, false, fmt.Errorf("unknown transform %q", name)
	}

	v, ok, err := fn(raw, m)
	if err != nil {
		return Value{}, false, fmt.Errorf("%s transform of %s: %w", name, m.Attribute, err)
	}
	if !ok || (v.Kind != KindCheck && v.Text == "") {
		return Value{}, false, nil
	}
	return v, true, nil
}

func text(s string) (Value, bool, error) {
	s = strings.TrimSpace(s)
	return Value{Kind: KindText, Text: s}, s != "", nil
}

func scalarString(raw any) (string, error) {
	switch v := raw.(type) {
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case map[string]any, []any:
		return "", fmt.Errorf("expected a scalar, got %T", raw)
	}
	return cast.ToStringE(raw)
}

func scalarFloat(raw any) (float64, error) {
	s, err := scalarString(raw)
	if err != nil {
		return 0, err
	}
	cleaned := strings.NewReplacer("$", "", ",", "", "%", "", " ", "").Replace(s)
	f, err := cast.ToFloat64E(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

func identity(raw any, _ *FieldMapping) (Value, bool, error) {
	s, err := scalarString(raw)
	if err != nil {
		return Value{}, false, err
	}
	return text(s)
}

func upper(raw any, m *FieldMapping) (Value, bool, error) {
	v, ok, err := identity(raw, m)
	v.Text = strings.ToUpper(v.Text)
	return v, ok, err
}

// ParseDate accepts ISO dates, US slash dates, long-form dates and anything cast understands
func ParseDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range inputLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		t, err := cast.ToTimeInDefaultLocationE(s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q is not a recognised date", s)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("expected a date string, got %T", raw)
	}
}

func formatDate(layout string) TransformFunc {
	return func(raw any, _ *FieldMapping) (Value, bool, error) {
		t, err := ParseDate(raw)
		if err != nil {
			return Value{}, false, err
		}
		return text(t.Format(layout))
	}
}

// FormatCurrency renders f as US dollars with grouping: $1,234.56
func FormatCurrency(f float64) string {
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}
	return sign + "$" + usd.Sprint(number.Decimal(f, number.Scale(2)))
}

func currency(raw any, _ *FieldMapping) (Value, bool, error) {
	f, err := scalarFloat(raw)
	if err != nil {
		return Value{}, false, err
	}
	return text(FormatCurrency(f))
}

func percent(raw any, _ *FieldMapping) (Value, bool, error) {
	f, err := scalarFloat(raw)
	if err != nil {
		return Value{}, false, err
	}
	return text(strconv.FormatFloat(f, 'f', -1, 64) + "%")
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func phone(raw any, _ *FieldMapping) (Value, bool, error) {
	s, err := scalarString(raw)
	if err != nil {
		return Value{}, false, err
	}

	d := digits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return Value{}, false, fmt.Errorf("%q is not a 10 digit phone number", s)
	}
	return text(fmt.Sprintf("(%s) %s-%s", d[:3], d[3:6], d[6:]))
}

func ssnLast4(raw any, _ *FieldMapping) (Value, bool, error) {
	s, err := scalarString(raw)
	if err != nil {
		return Value{}, false, err
	}

	d := digits(s)
	if len(d) < 4 {
		return Value{}, false, fmt.Errorf("need at least 4 digits, got %q", s)
	}
	return text("XXX-XX-" + d[len(d)-4:])
}

func checkWhen(want bool) TransformFunc {
	return func(raw any, _ *FieldMapping) (Value, bool, error) {
		b, ok := caserecord.ParseBool(raw)
		if !ok {
			return Value{}, false, fmt.Errorf("%v is not a boolean", raw)
		}
		return Value{Kind: KindCheck}, b == want, nil
	}
}

func equals(raw any, m *FieldMapping) (Value, bool, error) {
	s, err := scalarString(raw)
	if err != nil {
		return Value{}, false, err
	}
	return Value{Kind: KindCheck}, strings.EqualFold(strings.TrimSpace(s), m.Match), nil
}

func option(raw any, m *FieldMapping) (Value, bool, error) {
	s, err := scalarString(raw)
	if err != nil {
		return Value{}, false, err
	}
	s = strings.TrimSpace(s)

	if to, ok := m.Options[s]; ok {
		return Value{Kind: KindOption, Text: to}, to != "", nil
	}

	keys := make([]string, 0, len(m.Options))
	for from := range m.Options {
		keys = append(keys, from)
	}
	sort.Strings(keys)
	for _, from := range keys {
		if strings.EqualFold(from, s) {
			s = m.Options[from]
			break
		}
	}
	return Value{Kind: KindOption, Text: s}, s != "", nil
}

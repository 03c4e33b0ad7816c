package templates

import (
	"context"
	"testing"

	pdferrors "github.com/a3tai/casedocs/internal/pdf/errors"
	"github.com/a3tai/casedocs/internal/pdf/pdftest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_PageCount(t *testing.T) {
	v := NewValidator(1 << 20)

	pages, err := v.PageCount(pdftest.New().Pages(3).Text("A").Bytes())
	require.NoError(t, err)
	assert.Equal(t, 3, pages)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "empty", data: nil, want: "empty"},
		{name: "no header", data: []byte("<html>not found</html>"), want: "header"},
		{name: "truncated", data: []byte("%PDF-1.7\n1 0 obj\n<<"), want: ""},
		{name: "too large", data: make([]byte, 2<<20), want: "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.PageCount(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(0)

	assert.NoError(t, v.Validate("ok.pdf", pdftest.New().Text("A").Bytes()))

	err := v.Validate("junk.pdf", []byte("junk"))
	require.Error(t, err)
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeTemplateInvalid))
	assert.True(t, pdferrors.TypeOf(err).IsFatal())
}

func TestValidatingSource(t *testing.T) {
	inner := &countingSource{}
	src := ValidatingSource{Source: inner, Validator: NewValidator(0)}

	_, err := src.Open(context.Background(), "x.pdf")
	require.Error(t, err, "countingSource returns a header without a body")
	assert.True(t, pdferrors.Is(err, pdferrors.ErrorTypeTemplateInvalid))
}

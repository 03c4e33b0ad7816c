package descriptions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAllToolNames(t *testing.T) {
	names := GetAllToolNames()
	assert.Len(t, names, 5)
	assert.IsIncreasing(t, names)
	for _, name := range names {
		assert.True(t, strings.HasPrefix(name, "casedocs_"), name)
		assert.NotEqual(t, "Tool description not available", GetToolDescription(name))
	}
}

func TestGetToolDescription_Unknown(t *testing.T) {
	assert.Equal(t, "Tool description not available", GetToolDescription("pdf_read_file"))
}

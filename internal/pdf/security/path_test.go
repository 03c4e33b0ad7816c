package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("  ")
	assert.Error(t, err)

	v, err := NewPathValidator("templates")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(v.Root()))
}

func TestPathValidator_Resolve(t *testing.T) {
	root := t.TempDir()
	v, err := NewPathValidator(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare file", input: "BOE-502-D.pdf", want: filepath.Join(root, "BOE-502-D.pdf")},
		{name: "nested", input: "legacy/BOE-502-A-2019.pdf", want: filepath.Join(root, "legacy", "BOE-502-A-2019.pdf")},
		{name: "dot segments inside", input: "legacy/../BOE-19-P.pdf", want: filepath.Join(root, "BOE-19-P.pdf")},
		{name: "absolute inside", input: filepath.Join(root, "a.pdf"), want: filepath.Join(root, "a.pdf")},
		{name: "null bytes stripped", input: "a\x00.pdf", want: filepath.Join(root, "a.pdf")},
		{name: "traversal", input: "../../etc/passwd", wantErr: true},
		{name: "absolute outside", input: "/etc/passwd", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.pdf"), []byte("%PDF-1.7"), 0o600))

	link := filepath.Join(root, "escape.pdf")
	if err := os.Symlink(filepath.Join(outside, "secret.pdf"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	v, err := NewPathValidator(root)
	require.NoError(t, err)

	_, err = v.Resolve("escape.pdf")
	assert.Error(t, err)

	ok, err := v.Contains(root)
	require.NoError(t, err)
	assert.True(t, ok)
}

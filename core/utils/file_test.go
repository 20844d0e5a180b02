package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Night Drive", "Night Drive"},
		{`AC/DC: Live? <Remix> "2024" | *x*`, "ACDC Live Remix 2024  x"},
		{"  ..hidden..  ", "hidden"},
		{"", DefaultFilename},
		{"???", DefaultFilename},
		{"con", "con_"},
		{"LPT1", "LPT1_"},
		{"Console", "Console"},
		{"tab\there", "tabhere"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestEnsureDirAndFileSize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))

	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	size, err := FileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRendered(t *testing.T) {
	root := t.TempDir()

	p, err := WriteRendered(root, "config/miku.conf", "first\n", 0o644)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "config", "miku.conf"), p)

	p, err = WriteRendered(root, "config/miku.conf", "second\n", 0o755)
	require.NoError(t, err)
	// #nosec G304 -- test file
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(data))

	st, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), st.Mode().Perm())

	entries, err := os.ReadDir(filepath.Join(root, "config"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteRenderedRejectsEscapes(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"", "../x", "/etc/passwd", "a/../../x"} {
		_, err := WriteRendered(root, rel, "x", 0o644)
		assert.Error(t, err, rel)
	}
}

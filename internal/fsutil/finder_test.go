package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.hcl", "a.hcl", "notes.txt", filepath.Join("nested", "c.hcl")} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	t.Run("directory", func(t *testing.T) {
		files, err := FindFiles(dir, ".hcl")
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "a.hcl"),
			filepath.Join(dir, "b.hcl"),
			filepath.Join(dir, "nested", "c.hcl"),
		}, files)
	})

	t.Run("single file", func(t *testing.T) {
		path := filepath.Join(dir, "notes.txt")
		files, err := FindFiles(path, ".hcl")
		require.NoError(t, err)
		assert.Equal(t, []string{path}, files)
	})

	t.Run("no matches", func(t *testing.T) {
		_, err := FindFiles(filepath.Join(dir, "nested"), ".yaml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no .yaml files found")
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := FindFiles(filepath.Join(dir, "missing"), ".hcl")
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilesSortedAndFiltered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"0002_messages.sql", "0001_init.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o700))

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_messages.sql"}, files)
}

func TestMigrationFilesMissingDir(t *testing.T) {
	t.Parallel()

	_, err := migrationFiles(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestRepositoryMigrationsPresent(t *testing.T) {
	t.Parallel()

	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

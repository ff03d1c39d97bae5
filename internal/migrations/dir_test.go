package migrations_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/db-migrate/internal/migrations"
)

func writeMinimal(t *testing.T, dir, name, initial, dependency string) {
	t.Helper()
	contents := "\n[Migration]\nHash = 1\nInitial = " + initial +
		"\nDependency = \"" + dependency + "\"\nReplaces = []\nOperations = []\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
}

func TestScanDirOrdersByPrefixAndWarns(t *testing.T) {
	dir := t.TempDir()
	writeMinimal(t, dir, "0002_users.toml", "false", "0001_initial")
	writeMinimal(t, dir, "0001_initial.toml", "true", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignore me"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_bad.toml"), []byte("ignore me"), 0644))

	records, warnings, err := migrations.ScanDir(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"0001_initial", "0002_users"}, ids(records))
	assert.Len(t, warnings, 2)
}

func TestScanDirMissingDirectory(t *testing.T) {
	_, _, err := migrations.ScanDir(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, migrations.IsKind(err, migrations.ErrIO))
}

func TestLatestSequence(t *testing.T) {
	dir := t.TempDir()

	latest, err := migrations.LatestSequence(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, latest)

	writeMinimal(t, dir, "0001_initial.toml", "true", "")
	writeMinimal(t, dir, "0007_users.toml", "false", "0001_initial")

	latest, err = migrations.LatestSequence(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, latest)
}

package database_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/db-migrate/internal/database"
)

func openSQLite(t *testing.T) database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.Connect())
	t.Cleanup(func() { db.Close() })

	return db
}

func TestSQLiteApply(t *testing.T) {
	db := openSQLite(t)
	assert.Equal(t, "sqlite", db.Dialect())

	applied, err := db.AppliedIDs()
	require.NoError(t, err)
	assert.Empty(t, applied)

	err = db.Apply("0001_initial", []string{
		`CREATE TABLE "user" ("id" INTEGER PRIMARY KEY)`,
	})
	require.NoError(t, err)

	applied, err = db.AppliedIDs()
	require.NoError(t, err)
	assert.True(t, applied["0001_initial"])
}

func TestSQLiteApplyRollsBackOnFailure(t *testing.T) {
	db := openSQLite(t)

	err := db.Apply("0001_initial", []string{
		`CREATE TABLE "user" ("id" INTEGER PRIMARY KEY)`,
		`THIS IS NOT SQL`,
	})
	require.Error(t, err)

	// The failed migration must leave no trace in the history table.
	applied, err := db.AppliedIDs()
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestSQLiteApplyDuplicateID(t *testing.T) {
	db := openSQLite(t)

	require.NoError(t, db.Apply("0001_initial", nil))
	assert.Error(t, db.Apply("0001_initial", nil))
}

func TestSQLiteRequiresPath(t *testing.T) {
	db, err := database.New(database.Config{Driver: "sqlite"})
	require.NoError(t, err)
	assert.Error(t, db.Connect())
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := database.New(database.Config{Driver: "oracle"})
	assert.Error(t, err)
}

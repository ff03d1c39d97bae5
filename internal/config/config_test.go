package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/db-migrate/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[Database]
Driver = "postgres"
Host = "db.internal"
Database = "app"
User = "app"
Password = "secret"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port) // driver default
	assert.Equal(t, "app", cfg.Database.Database)
}

func TestLoadMySQLPortDefault(t *testing.T) {
	path := writeConfig(t, `
[Database]
Driver = "mysql"
Database = "app"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[Database]
Driver = "postgres"
Host = "db.internal"
Database = "app"
`)

	t.Setenv("DBMIGRATE_DRIVER", "mysql")
	t.Setenv("DBMIGRATE_HOST", "override.internal")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, "3306", cfg.Database.Port)
}

func TestMissingFileWithEnvironment(t *testing.T) {
	t.Setenv("DBMIGRATE_DRIVER", "sqlite")
	t.Setenv("DBMIGRATE_PATH", "/tmp/app.db")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/app.db", cfg.Database.Path)
}

func TestMissingDriver(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestDatabaseConfigConversion(t *testing.T) {
	path := writeConfig(t, `
[Database]
Driver = "mysql"
Host = "db"
Database = "app"
User = "u"
Password = "p"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	dc := cfg.DatabaseConfig()
	assert.Equal(t, "mysql", dc.Driver)
	assert.Equal(t, "db", dc.Host)
	assert.Equal(t, "3306", dc.Port)
	assert.Equal(t, "app", dc.Database)
	assert.Equal(t, "u", dc.User)
	assert.Equal(t, "p", dc.Password)
}

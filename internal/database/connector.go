// Package database connects to the target database and applies rendered
// migrations, tracking what has already run in a history table.
package database

import (
	"fmt"
)

// historyTable records applied migration ids in the target database.
const historyTable = "dbmigrate_history"

// Config holds target database connection settings.
type Config struct {
	Driver   string // "mysql", "postgres" or "sqlite"
	Host     string
	Port     string
	Database string
	User     string
	Password string
	Path     string // sqlite database file
}

// DB is a migration target.
type DB interface {
	Connect() error
	Close() error

	// Dialect names the SQL dialect to render migrations with.
	Dialect() string

	// AppliedIDs returns the ids recorded in the history table.
	AppliedIDs() (map[string]bool, error)

	// Apply executes the statements of one migration and records its id,
	// all inside a single transaction.
	Apply(id string, statements []string) error
}

// New creates a migration target for the configured driver.
func New(config Config) (DB, error) {
	switch config.Driver {
	case "mysql", "MySQL":
		return NewMySQL(config), nil
	case "postgres", "Postgres", "PostgreSQL":
		return NewPostgres(config), nil
	case "sqlite", "SQLite":
		return NewSQLite(config), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
}

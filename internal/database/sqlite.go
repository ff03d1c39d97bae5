package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLite implements the DB interface for a SQLite database file.
type SQLite struct {
	config Config
	db     *sql.DB
}

// NewSQLite creates a new SQLite migration target.
func NewSQLite(config Config) *SQLite {
	return &SQLite{config: config}
}

// Connect opens the SQLite database file and ensures the history table.
func (s *SQLite) Connect() error {
	path := s.config.Path
	if path == "" {
		path = s.config.Database
	}
	if path == "" {
		return fmt.Errorf("sqlite driver requires a database file path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite: %w", err)
	}

	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)",
		historyTable,
	)
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return fmt.Errorf("failed to create history table: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the SQLite database.
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Dialect returns the SQL dialect name.
func (s *SQLite) Dialect() string {
	return "sqlite"
}

// AppliedIDs returns the migration ids recorded in the history table.
func (s *SQLite) AppliedIDs() (map[string]bool, error) {
	return queryAppliedIDs(s.db)
}

// Apply executes the statements of one migration and records its id within
// a single transaction.
func (s *SQLite) Apply(id string, statements []string) error {
	return applyInTransaction(s.db, id, statements, "?")
}

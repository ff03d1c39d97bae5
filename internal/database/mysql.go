package database

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL implements the DB interface for MySQL.
type MySQL struct {
	config Config
	db     *sql.DB
}

// NewMySQL creates a new MySQL migration target.
func NewMySQL(config Config) *MySQL {
	return &MySQL{config: config}
}

// Connect establishes a connection to MySQL and ensures the history table.
func (m *MySQL) Connect() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		m.config.User,
		m.config.Password,
		m.config.Host,
		m.config.Port,
		m.config.Database,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping MySQL: %w", err)
	}

	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id VARCHAR(255) PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)",
		historyTable,
	)
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return fmt.Errorf("failed to create history table: %w", err)
	}

	m.db = db
	return nil
}

// Close closes the MySQL connection.
func (m *MySQL) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Dialect returns the SQL dialect name.
func (m *MySQL) Dialect() string {
	return "mysql"
}

// AppliedIDs returns the migration ids recorded in the history table.
func (m *MySQL) AppliedIDs() (map[string]bool, error) {
	return queryAppliedIDs(m.db)
}

// Apply executes the statements of one migration and records its id within
// a single transaction.
func (m *MySQL) Apply(id string, statements []string) error {
	return applyInTransaction(m.db, id, statements, "?")
}

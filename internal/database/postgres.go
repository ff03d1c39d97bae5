package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Postgres implements the DB interface for PostgreSQL.
type Postgres struct {
	config Config
	db     *sql.DB
}

// NewPostgres creates a new PostgreSQL migration target.
func NewPostgres(config Config) *Postgres {
	return &Postgres{config: config}
}

// Connect establishes a connection to PostgreSQL and ensures the history
// table.
func (p *Postgres) Connect() error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		p.config.Host,
		p.config.Port,
		p.config.User,
		p.config.Password,
		p.config.Database,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)",
		historyTable,
	)
	if _, err := db.Exec(create); err != nil {
		db.Close()
		return fmt.Errorf("failed to create history table: %w", err)
	}

	p.db = db
	return nil
}

// Close closes the PostgreSQL connection.
func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Dialect returns the SQL dialect name.
func (p *Postgres) Dialect() string {
	return "postgres"
}

// AppliedIDs returns the migration ids recorded in the history table.
func (p *Postgres) AppliedIDs() (map[string]bool, error) {
	return queryAppliedIDs(p.db)
}

// Apply executes the statements of one migration and records its id within
// a single transaction.
func (p *Postgres) Apply(id string, statements []string) error {
	return applyInTransaction(p.db, id, statements, "$1")
}

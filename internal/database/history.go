package database

import (
	"database/sql"
	"fmt"
)

func queryAppliedIDs(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT id FROM %s", historyTable))
	if err != nil {
		return nil, fmt.Errorf("failed to query history table: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		applied[id] = true
	}
	return applied, rows.Err()
}

func applyInTransaction(db *sql.DB, id string, statements []string, placeholder string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", id, err)
		}
	}

	record := fmt.Sprintf("INSERT INTO %s (id) VALUES (%s)", historyTable, placeholder)
	if _, err := tx.Exec(record, id); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", id, err)
	}
	return nil
}

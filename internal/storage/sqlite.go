/*
Package storage provides SQLite database migrations and helper functions.

This file contains schema definitions, migration logic, and flag-list
serialization utilities for the storage layer.
*/
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	version, err := currentMigrationVersion(db)
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "initial_schema", up: migration001InitialSchema},
		{version: 2, name: "interaction_feedback_columns", up: migration002FeedbackColumns},
	}

	for _, m := range migrations {
		if version < m.version {
			s.log.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))
			if err := applyMigration(db, m); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func(tx *sql.Tx) error
}

// applyMigration runs m and records its version in one transaction, so a
// failure part way leaves no trace and the migration can simply run again.
func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	if err := m.up(tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d failed: %w", m.version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migration %d: record version: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.version, err)
	}
	return nil
}

// createMigrationsTable creates the schema_migrations table.
func createMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`
	_, err := db.Exec(query)
	return err
}

// currentMigrationVersion returns the highest applied migration version.
func currentMigrationVersion(db *sql.DB) (int, error) {
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}

	return version, nil
}

// migration001InitialSchema creates the three learning relations.
func migration001InitialSchema(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			user_id TEXT NOT NULL,
			project_fingerprint TEXT NOT NULL,
			category TEXT NOT NULL,
			flags_issued TEXT NOT NULL,
			success INTEGER,
			rating INTEGER,
			execution_ms INTEGER
		)
	`); err != nil {
		return fmt.Errorf("failed to create interactions table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_interactions_user_timestamp
		ON interactions(user_id, timestamp DESC)
	`); err != nil {
		return fmt.Errorf("failed to create interactions user index: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_interactions_timestamp
		ON interactions(timestamp)
	`); err != nil {
		return fmt.Errorf("failed to create interactions timestamp index: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS patterns (
			category TEXT NOT NULL,
			context_fingerprint TEXT NOT NULL,
			success_rate REAL NOT NULL,
			usage_count INTEGER NOT NULL DEFAULT 0,
			last_used TEXT NOT NULL,
			flags TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (category, context_fingerprint)
		)
	`); err != nil {
		return fmt.Errorf("failed to create patterns table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_patterns_last_used
		ON patterns(last_used)
	`); err != nil {
		return fmt.Errorf("failed to create patterns last_used index: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			user_id TEXT NOT NULL,
			project_fingerprint TEXT NOT NULL,
			dimension TEXT NOT NULL,
			weight REAL NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, project_fingerprint, dimension)
		)
	`); err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}

	return nil
}

// migration002FeedbackColumns adds the columns feedback and analytics read back.
func migration002FeedbackColumns(tx *sql.Tx) error {
	columns := []string{
		"ALTER TABLE interactions ADD COLUMN context_fingerprint TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE interactions ADD COLUMN dimension TEXT NOT NULL DEFAULT ''",
		"ALTER TABLE interactions ADD COLUMN source TEXT NOT NULL DEFAULT 'static'",
		"ALTER TABLE interactions ADD COLUMN confidence REAL NOT NULL DEFAULT 0",
		"ALTER TABLE interactions ADD COLUMN actual_flags TEXT",
		"ALTER TABLE interactions ADD COLUMN feedback_at TEXT",
	}
	for _, stmt := range columns {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to alter interactions: %w", err)
		}
	}

	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_interactions_category_feedback
		ON interactions(category, feedback_at DESC)
	`); err != nil {
		return fmt.Errorf("failed to create interactions category index: %w", err)
	}

	return nil
}

// flagsToJSON converts a flag list to JSON for storage.
func flagsToJSON(flags []string) string {
	if flags == nil {
		flags = []string{}
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// jsonToFlags parses a stored flag list.
func jsonToFlags(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var flags []string
	if err := json.Unmarshal([]byte(s), &flags); err != nil {
		return nil, err
	}
	return flags, nil
}

package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_category_aliases",
		Up:      migration002AddCategoryAliases,
	},
	{
		Version: 3,
		Name:    "add_import_runs",
		Up:      migration003AddImportRuns,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue // Already applied
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE accounts (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL,
			account_type TEXT NOT NULL DEFAULT 'checking',
			utility_subtype TEXT,
			utility_unit TEXT
		)`,
		`CREATE TABLE payees (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE categories (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP
		)`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			workspace_id TEXT NOT NULL,
			payee_id TEXT,
			category_id TEXT,
			date TIMESTAMP NOT NULL,
			amount REAL NOT NULL,
			notes TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			transfer_id TEXT,
			transfer_account_id TEXT,
			reconciled INTEGER NOT NULL DEFAULT 0,
			import_metadata TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX idx_transactions_workspace ON transactions(workspace_id)`,
		`CREATE INDEX idx_transactions_transfer ON transactions(transfer_id)`,
		`CREATE TABLE transfer_mappings (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			payee_string TEXT NOT NULL,
			target_account_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(workspace_id, payee_string)
		)`,
		`CREATE TABLE utility_usage (
			id TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			account_id TEXT NOT NULL,
			usage REAL NOT NULL,
			unit TEXT,
			rate_per_unit REAL,
			avg_daily_usage REAL,
			period_days INTEGER,
			meter_start REAL,
			meter_end REAL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddCategoryAliases(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE category_aliases (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			raw_string TEXT NOT NULL,
			normalized_string TEXT NOT NULL,
			category_id TEXT NOT NULL,
			payee_id TEXT,
			trigger_type TEXT NOT NULL,
			confidence REAL NOT NULL,
			match_count INTEGER NOT NULL DEFAULT 1,
			amount_type TEXT NOT NULL DEFAULT 'any',
			source_account_id TEXT,
			last_matched_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMP,
			UNIQUE(workspace_id, raw_string, category_id)
		)`,
		`CREATE INDEX idx_aliases_normalized ON category_aliases(workspace_id, normalized_string)`,
		`CREATE INDEX idx_aliases_payee ON category_aliases(workspace_id, payee_id)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration003AddImportRuns(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE import_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at TIMESTAMP,
			file_count INTEGER NOT NULL DEFAULT 0,
			total_rows INTEGER NOT NULL DEFAULT 0,
			transactions_created INTEGER NOT NULL DEFAULT 0,
			rows_skipped INTEGER NOT NULL DEFAULT 0,
			rows_errored INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		)
	`)
	return err
}

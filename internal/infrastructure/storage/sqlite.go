package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for the import pipeline.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// GetAccount retrieves an account by ID
func (s *Storage) GetAccount(id string) (*Account, error) {
	account := &Account{}
	var subtype, unit sql.NullString
	err := s.db.QueryRow(`
		SELECT id, workspace_id, name, account_type, utility_subtype, utility_unit
		FROM accounts WHERE id = ?
	`, id).Scan(&account.ID, &account.WorkspaceID, &account.Name, &account.AccountType, &subtype, &unit)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	account.UtilitySubtype = subtype.String
	account.UtilityUnit = unit.String
	return account, nil
}

// CreateAccount inserts an account
func (s *Storage) CreateAccount(account *Account) error {
	_, err := s.db.Exec(`
		INSERT INTO accounts (id, workspace_id, name, account_type, utility_subtype, utility_unit)
		VALUES (?, ?, ?, ?, ?, ?)
	`, account.ID, account.WorkspaceID, account.Name, account.AccountType,
		nullable(account.UtilitySubtype), nullable(account.UtilityUnit))
	return wrapConflict(err)
}

// nullable converts an empty string to a SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// wrapConflict translates SQLite uniqueness violations into ErrConflict so
// callers can branch on the insert-then-recover protocol without knowing
// driver error codes.
func wrapConflict(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

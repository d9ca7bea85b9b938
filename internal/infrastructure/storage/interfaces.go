package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup finds no row.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when an insert violates a uniqueness constraint.
// Callers treat it as "someone else created this first" and re-query.
var ErrConflict = errors.New("storage: conflict")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	AccountStore
	PayeeStore
	CategoryStore
	TransactionStore
	CategoryAliasStore
	TransferMappingStore
	UtilityUsageStore
	ImportRunStore
	Close() error
}

// AccountStore resolves import target accounts.
type AccountStore interface {
	// GetAccount retrieves an account by ID. ErrNotFound when missing.
	GetAccount(id string) (*Account, error)

	// CreateAccount inserts an account (used by seeding and tests).
	CreateAccount(account *Account) error
}

// PayeeStore handles payee entity operations.
type PayeeStore interface {
	// ListPayees returns the active (non-deleted) payees of a workspace.
	ListPayees(workspaceID string) ([]Payee, error)

	// FindPayeeBySlug finds a payee by slug across workspaces, including
	// soft-deleted rows, so slug collisions can be branched on.
	FindPayeeBySlug(slug string) (*Payee, error)

	// CreatePayee inserts a payee. ErrConflict on slug collision.
	CreatePayee(payee *Payee) error

	// RestorePayee clears the soft-delete marker.
	RestorePayee(id string) error
}

// CategoryStore handles category entity operations.
type CategoryStore interface {
	// ListCategories returns the active categories of a workspace.
	ListCategories(workspaceID string) ([]Category, error)

	// FindCategoryBySlug finds a category by slug across workspaces,
	// including soft-deleted rows.
	FindCategoryBySlug(slug string) (*Category, error)

	// CreateCategory inserts a category. ErrConflict on slug collision.
	CreateCategory(category *Category) error

	// RestoreCategory clears the soft-delete marker.
	RestoreCategory(id string) error
}

// TransactionStore handles transaction persistence.
type TransactionStore interface {
	// ListTransactions returns all transactions in a workspace, the
	// baseline for duplicate and transfer-target detection.
	ListTransactions(workspaceID string) ([]Transaction, error)

	// CreateTransaction inserts a transaction.
	CreateTransaction(tx *Transaction) error

	// ReconcileTransaction marks an existing transfer leg cleared and
	// reconciled, attaching import metadata.
	ReconcileTransaction(id, importMetadata string) error

	// CreateTransfer creates a linked double-entry transfer and returns
	// both legs (from first, to second).
	CreateTransfer(fromAccountID, toAccountID string, amount float64, date time.Time, notes string) (*Transaction, *Transaction, error)
}

// CategoryAliasStore handles learned category alias persistence.
type CategoryAliasStore interface {
	// FindAliasesByRawString returns live aliases whose raw string matches
	// exactly (case-sensitive) in the workspace.
	FindAliasesByRawString(workspaceID, rawString string) ([]CategoryAlias, error)

	// FindAliasesByNormalized returns live aliases matching the normalized
	// form of a raw string.
	FindAliasesByNormalized(workspaceID, normalized string) ([]CategoryAlias, error)

	// FindAliasesByPayee returns live aliases attached to a payee.
	FindAliasesByPayee(workspaceID, payeeID string) ([]CategoryAlias, error)

	// FindAliasByRawStringAndCategory finds the single alias for a
	// (rawString, categoryID) pair. ErrNotFound when missing.
	FindAliasByRawStringAndCategory(workspaceID, rawString, categoryID string) (*CategoryAlias, error)

	// CreateAlias inserts an alias. ErrConflict when the
	// (workspace, rawString, categoryID) pair already exists.
	CreateAlias(alias *CategoryAlias) error

	// UpdateAlias persists confidence/matchCount/lastMatchedAt changes.
	UpdateAlias(alias *CategoryAlias) error

	// GetAliasStats returns the read-only aggregate for a workspace.
	GetAliasStats(workspaceID string) (*AliasStats, error)
}

// TransferMappingStore remembers payee-string → account transfer mappings.
type TransferMappingStore interface {
	// SaveTransferMapping upserts a mapping keyed by (workspace, payee).
	SaveTransferMapping(mapping *TransferMapping) error

	// FindTransferMapping looks up a mapping. ErrNotFound when missing.
	FindTransferMapping(workspaceID, payeeString string) (*TransferMapping, error)
}

// UtilityUsageStore persists derived utility usage records.
type UtilityUsageStore interface {
	// CreateUtilityUsage inserts a usage record.
	CreateUtilityUsage(usage *UtilityUsage) error
}

// ImportRunStore tracks import runs for audit/history.
type ImportRunStore interface {
	// StartImportRun records the start of a run and returns the run ID.
	StartImportRun(accountID string, fileCount, totalRows int) (int64, error)

	// CompleteImportRun records the outcome of a run.
	CompleteImportRun(runID int64, created, skipped, errored int) error

	// ListImportRuns returns recent runs, newest first.
	ListImportRuns(limit int) ([]ImportRun, error)
}

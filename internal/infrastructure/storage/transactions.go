package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ListTransactions returns all transactions for a workspace
func (s *Storage) ListTransactions(workspaceID string) ([]Transaction, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, workspace_id, payee_id, category_id, date, amount,
		       notes, status, transfer_id, transfer_account_id, reconciled,
		       import_metadata, created_at
		FROM transactions WHERE workspace_id = ?
		ORDER BY date DESC
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*Transaction, error) {
	tx := &Transaction{}
	var payeeID, categoryID, notes, transferID, transferAccountID, metadata sql.NullString
	err := rows.Scan(
		&tx.ID, &tx.AccountID, &tx.WorkspaceID, &payeeID, &categoryID,
		&tx.Date, &tx.Amount, &notes, &tx.Status, &transferID,
		&transferAccountID, &tx.Reconciled, &metadata, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.PayeeID = payeeID.String
	tx.CategoryID = categoryID.String
	tx.Notes = notes.String
	tx.TransferID = transferID.String
	tx.TransferAccountID = transferAccountID.String
	tx.ImportMetadata = metadata.String
	return tx, nil
}

// CreateTransaction inserts a transaction
func (s *Storage) CreateTransaction(tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	if tx.Status == "" {
		tx.Status = "pending"
	}

	_, err := s.db.Exec(`
		INSERT INTO transactions
		(id, account_id, workspace_id, payee_id, category_id, date, amount,
		 notes, status, transfer_id, transfer_account_id, reconciled,
		 import_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID, tx.AccountID, tx.WorkspaceID,
		nullable(tx.PayeeID), nullable(tx.CategoryID),
		tx.Date, tx.Amount, nullable(tx.Notes), tx.Status,
		nullable(tx.TransferID), nullable(tx.TransferAccountID),
		tx.Reconciled, nullable(tx.ImportMetadata), tx.CreatedAt,
	)
	return wrapConflict(err)
}

// ReconcileTransaction marks an existing transfer leg cleared and
// reconciled, attaching import metadata
func (s *Storage) ReconcileTransaction(id, importMetadata string) error {
	result, err := s.db.Exec(`
		UPDATE transactions
		SET reconciled = 1, status = 'cleared', import_metadata = ?
		WHERE id = ?
	`, nullable(importMetadata), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTransfer creates a linked double-entry transfer: a negative leg on
// the source account and a positive leg on the target, sharing a transfer
// ID. The incoming leg is what later imports of the target account
// reconcile against.
func (s *Storage) CreateTransfer(fromAccountID, toAccountID string, amount float64, date time.Time, notes string) (*Transaction, *Transaction, error) {
	fromAccount, err := s.GetAccount(fromAccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("transfer source account: %w", err)
	}

	transferID := uuid.NewString()
	outAmount := -amount
	if amount < 0 {
		outAmount = amount // Caller already passed the outgoing sign
	}

	from := &Transaction{
		ID:                uuid.NewString(),
		AccountID:         fromAccountID,
		WorkspaceID:       fromAccount.WorkspaceID,
		Date:              date,
		Amount:            outAmount,
		Notes:             notes,
		Status:            "cleared",
		TransferID:        transferID,
		TransferAccountID: toAccountID,
		Reconciled:        true,
	}
	to := &Transaction{
		ID:                uuid.NewString(),
		AccountID:         toAccountID,
		WorkspaceID:       fromAccount.WorkspaceID,
		Date:              date,
		Amount:            -outAmount,
		Notes:             notes,
		Status:            "pending",
		TransferID:        transferID,
		TransferAccountID: fromAccountID,
		Reconciled:        false,
	}

	dbTx, err := s.db.Begin()
	if err != nil {
		return nil, nil, err
	}

	for _, leg := range []*Transaction{from, to} {
		_, err := dbTx.Exec(`
			INSERT INTO transactions
			(id, account_id, workspace_id, payee_id, category_id, date, amount,
			 notes, status, transfer_id, transfer_account_id, reconciled,
			 import_metadata, created_at)
			VALUES (?, ?, ?, NULL, NULL, ?, ?, ?, ?, ?, ?, ?, NULL, CURRENT_TIMESTAMP)
		`,
			leg.ID, leg.AccountID, leg.WorkspaceID, leg.Date, leg.Amount,
			nullable(leg.Notes), leg.Status, leg.TransferID,
			leg.TransferAccountID, leg.Reconciled,
		)
		if err != nil {
			_ = dbTx.Rollback()
			return nil, nil, wrapConflict(err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// SaveTransferMapping upserts a payee-string → account mapping
func (s *Storage) SaveTransferMapping(mapping *TransferMapping) error {
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO transfer_mappings (id, workspace_id, payee_string, target_account_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(workspace_id, payee_string)
		DO UPDATE SET target_account_id = excluded.target_account_id
	`, mapping.ID, mapping.WorkspaceID, mapping.PayeeString, mapping.TargetAccountID)
	return err
}

// FindTransferMapping looks up a remembered transfer mapping
func (s *Storage) FindTransferMapping(workspaceID, payeeString string) (*TransferMapping, error) {
	m := &TransferMapping{}
	err := s.db.QueryRow(`
		SELECT id, workspace_id, payee_string, target_account_id, created_at
		FROM transfer_mappings WHERE workspace_id = ? AND payee_string = ?
	`, workspaceID, payeeString).Scan(&m.ID, &m.WorkspaceID, &m.PayeeString, &m.TargetAccountID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CreateUtilityUsage inserts a derived usage record
func (s *Storage) CreateUtilityUsage(usage *UtilityUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`
		INSERT INTO utility_usage
		(id, transaction_id, account_id, usage, unit, rate_per_unit,
		 avg_daily_usage, period_days, meter_start, meter_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		usage.ID, usage.TransactionID, usage.AccountID, usage.Usage,
		nullable(usage.Unit), usage.RatePerUnit, usage.AvgDailyUsage,
		usage.PeriodDays, usage.MeterStart, usage.MeterEnd,
	)
	return wrapConflict(err)
}

// StartImportRun records the start of an import run
func (s *Storage) StartImportRun(accountID string, fileCount, totalRows int) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO import_runs (account_id, file_count, total_rows, status)
		VALUES (?, ?, ?, 'running')
	`, accountID, fileCount, totalRows)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CompleteImportRun records the outcome of an import run
func (s *Storage) CompleteImportRun(runID int64, created, skipped, errored int) error {
	status := "completed"
	if errored > 0 {
		status = "completed_with_errors"
	}
	_, err := s.db.Exec(`
		UPDATE import_runs
		SET completed_at = CURRENT_TIMESTAMP, transactions_created = ?,
		    rows_skipped = ?, rows_errored = ?, status = ?
		WHERE id = ?
	`, created, skipped, errored, status, runID)
	return err
}

// ListImportRuns returns recent import runs, newest first
func (s *Storage) ListImportRuns(limit int) ([]ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, account_id, started_at, completed_at, file_count, total_rows,
		       transactions_created, rows_skipped, rows_errored, status
		FROM import_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ImportRun
	for rows.Next() {
		var run ImportRun
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.AccountID, &startedAt, &completedAt,
			&run.FileCount, &run.TotalRows, &run.TransactionsCreated,
			&run.RowsSkipped, &run.RowsErrored, &run.Status); err != nil {
			return nil, err
		}
		if startedAt.Valid {
			run.StartedAt = startedAt.Time.Format(time.RFC3339)
		}
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time.Format(time.RFC3339)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

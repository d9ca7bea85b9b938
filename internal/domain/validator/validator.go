// Package validator provides field-level validation and duplicate/transfer
// detection for imported statement rows.
//
// ValidateRows is a pure function of its inputs: it performs no I/O, so
// callers load the existing-transaction baseline up front and the validator
// only compares against it.
package validator

import (
	"fmt"
	"math"
	"time"

	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// Config controls validation thresholds.
type Config struct {
	// RequirePayee makes a missing payee an error instead of acceptable
	RequirePayee bool

	// MinAmount and MaxAmount bound the absolute amount. Violations are
	// warnings, not hard failures.
	MinAmount float64
	MaxAmount float64

	// MaxFutureMonths is how far in the future a date may be before a
	// warning is raised. DisallowFutureDates upgrades any future date to
	// an error.
	MaxFutureMonths     int
	DisallowFutureDates bool

	// Text length caps. Violations are errors.
	MaxPayeeLen    int
	MaxCategoryLen int
	MaxNotesLen    int

	// AmountTolerance is the cent tolerance used for duplicate and
	// transfer-target amount comparison.
	AmountTolerance float64

	// TransferDateToleranceDays bounds how far apart a row and a pending
	// transfer leg may be and still reconcile.
	TransferDateToleranceDays int
}

// DefaultConfig returns the standard validation thresholds.
func DefaultConfig() Config {
	return Config{
		RequirePayee:              false,
		MinAmount:                 0.01,
		MaxAmount:                 1000000,
		MaxFutureMonths:           3,
		DisallowFutureDates:       false,
		MaxPayeeLen:               200,
		MaxCategoryLen:            100,
		MaxNotesLen:               500,
		AmountTolerance:           0.01,
		TransferDateToleranceDays: 3,
	}
}

// ExistingTransaction is the slice of persisted transaction state the
// validator needs for duplicate and transfer-target detection.
type ExistingTransaction struct {
	ID          string
	Date        time.Time
	Amount      float64
	TransferID  string
	AccountID   string
	AccountName string
	Reconciled  bool
}

// IsPendingTransferLeg reports whether this transaction is the out-leg of a
// transfer still waiting for its counterpart.
func (t ExistingTransaction) IsPendingTransferLeg() bool {
	return t.TransferID != "" && !t.Reconciled
}

// Validator validates statement rows.
type Validator struct {
	config Config
}

// New creates a validator with the given config.
func New(config Config) *Validator {
	return &Validator{config: config}
}

// ValidateRows validates every row in place and returns the slice for
// chaining. Each row ends with exactly one status; rows with only warnings
// remain importable.
func (v *Validator) ValidateRows(rows []statement.Row, existing []ExistingTransaction) []statement.Row {
	now := time.Now()

	for i := range rows {
		v.validateFields(&rows[i], now)
	}

	// Transfer-target detection runs before duplicate detection so a row
	// that is both reconciles the pending leg instead of being flagged.
	claimed := make(map[string]bool)
	for i := range rows {
		if rows[i].HasErrors() {
			continue
		}
		v.detectTransferTarget(&rows[i], existing, claimed)
	}

	v.detectDuplicates(rows, existing)

	for i := range rows {
		v.assignStatus(&rows[i])
	}

	return rows
}

func (v *Validator) validateFields(row *statement.Row, now time.Time) {
	// Date
	if row.Normalized.Date.IsZero() {
		row.AddError("date", "date is missing or unparseable", row.RawData["date"], statement.SeverityError)
	} else {
		if row.Normalized.Date.Year() < 1900 {
			row.AddError("date", "date is before year 1900", row.Normalized.Date.Format("2006-01-02"), statement.SeverityError)
		}
		if row.Normalized.Date.After(now) {
			if v.config.DisallowFutureDates {
				row.AddError("date", "future dates are not allowed", row.Normalized.Date.Format("2006-01-02"), statement.SeverityError)
			} else if row.Normalized.Date.After(now.AddDate(0, v.config.MaxFutureMonths, 0)) {
				row.AddError("date",
					fmt.Sprintf("date is more than %d months in the future", v.config.MaxFutureMonths),
					row.Normalized.Date.Format("2006-01-02"), statement.SeverityWarning)
			}
		}
	}

	// Amount
	abs := math.Abs(row.Normalized.Amount)
	if abs == 0 {
		row.AddError("amount", "amount is missing or zero", row.RawData["amount"], statement.SeverityError)
	} else {
		if abs < v.config.MinAmount {
			row.AddError("amount",
				fmt.Sprintf("amount is below the minimum of $%.2f", v.config.MinAmount),
				fmt.Sprintf("%.2f", row.Normalized.Amount), statement.SeverityWarning)
		}
		if abs > v.config.MaxAmount {
			row.AddError("amount",
				fmt.Sprintf("amount exceeds the maximum of $%.2f", v.config.MaxAmount),
				fmt.Sprintf("%.2f", row.Normalized.Amount), statement.SeverityWarning)
		}
	}

	// Payee
	if row.Normalized.Payee == "" && row.Normalized.PayeeID == "" {
		if v.config.RequirePayee {
			row.AddError("payee", "payee is required", "", statement.SeverityError)
		}
	} else if len(row.Normalized.Payee) > v.config.MaxPayeeLen {
		row.AddError("payee",
			fmt.Sprintf("payee exceeds %d characters", v.config.MaxPayeeLen),
			truncate(row.Normalized.Payee, 50), statement.SeverityError)
	}

	// Category
	if len(row.Normalized.Category) > v.config.MaxCategoryLen {
		row.AddError("category",
			fmt.Sprintf("category exceeds %d characters", v.config.MaxCategoryLen),
			truncate(row.Normalized.Category, 50), statement.SeverityError)
	}

	// Notes
	if len(row.Normalized.Description) > v.config.MaxNotesLen {
		row.AddError("notes",
			fmt.Sprintf("notes exceed %d characters", v.config.MaxNotesLen),
			truncate(row.Normalized.Description, 50), statement.SeverityError)
	}
}

// detectTransferTarget looks for an unreconciled transfer-out leg this row
// could be the counterpart of: amount matching within tolerance and date
// within the tolerance window. First match wins; each leg can be claimed by
// only one row per batch.
func (v *Validator) detectTransferTarget(row *statement.Row, existing []ExistingTransaction, claimed map[string]bool) {
	for _, tx := range existing {
		if !tx.IsPendingTransferLeg() || claimed[tx.ID] {
			continue
		}

		// The incoming leg mirrors the outgoing amount
		if math.Abs(math.Abs(tx.Amount)-math.Abs(row.Normalized.Amount)) > v.config.AmountTolerance {
			continue
		}

		days := daysBetween(tx.Date, row.Normalized.Date)
		if days > v.config.TransferDateToleranceDays {
			continue
		}

		confidence := statement.TransferConfidenceLow
		switch days {
		case 0:
			confidence = statement.TransferConfidenceHigh
		case 1:
			confidence = statement.TransferConfidenceMedium
		}

		row.TransferTarget = &statement.TransferTargetMatch{
			ExistingTransactionID: tx.ID,
			ExistingTransferID:    tx.TransferID,
			SourceAccountID:       tx.AccountID,
			SourceAccountName:     tx.AccountName,
			DateDifference:        days,
			Confidence:            confidence,
		}
		claimed[tx.ID] = true
		return
	}
}

// detectDuplicates flags rows matching persisted transactions or other rows
// in the same batch. A duplicate is declared on exact date + amount within
// tolerance; payee and description are deliberately ignored because they
// are commonly edited during import review. Duplicates are warnings so a
// human can still choose to import them.
func (v *Validator) detectDuplicates(rows []statement.Row, existing []ExistingTransaction) {
	for i := range rows {
		row := &rows[i]
		if row.TransferTarget != nil || row.Normalized.Date.IsZero() {
			continue
		}

		for _, tx := range existing {
			if sameDay(tx.Date, row.Normalized.Date) &&
				math.Abs(tx.Amount-row.Normalized.Amount) <= v.config.AmountTolerance {
				row.AddError("duplicate",
					fmt.Sprintf("matches existing transaction on %s for $%.2f",
						tx.Date.Format("2006-01-02"), tx.Amount),
					tx.ID, statement.SeverityWarning)
				break
			}
		}
	}

	// In-batch pass: every member of a colliding pair gets flagged
	for i := range rows {
		a := &rows[i]
		if a.TransferTarget != nil || a.Normalized.Date.IsZero() {
			continue
		}
		for j := i + 1; j < len(rows); j++ {
			b := &rows[j]
			if b.TransferTarget != nil || b.Normalized.Date.IsZero() {
				continue
			}
			if sameDay(a.Normalized.Date, b.Normalized.Date) &&
				math.Abs(a.Normalized.Amount-b.Normalized.Amount) <= v.config.AmountTolerance {
				a.AddError("duplicate",
					fmt.Sprintf("duplicates row %d in this batch", b.RowIndex),
					"", statement.SeverityWarning)
				b.AddError("duplicate",
					fmt.Sprintf("duplicates row %d in this batch", a.RowIndex),
					"", statement.SeverityWarning)
			}
		}
	}
}

// assignStatus gives the row exactly one final status.
func (v *Validator) assignStatus(row *statement.Row) {
	switch {
	case row.HasErrors():
		row.Status = statement.StatusInvalid
	case row.TransferTarget != nil:
		row.Status = statement.StatusTransferMatch
	case hasDuplicateWarning(row):
		row.Status = statement.StatusDuplicate
	case row.HasWarnings():
		row.Status = statement.StatusWarning
	default:
		row.Status = statement.StatusValid
	}
}

func hasDuplicateWarning(row *statement.Row) bool {
	for _, e := range row.Errors {
		if e.Field == "duplicate" {
			return true
		}
	}
	return false
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysBetween(a, b time.Time) int {
	diff := a.Sub(b).Hours() / 24
	return int(math.Round(math.Abs(diff)))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

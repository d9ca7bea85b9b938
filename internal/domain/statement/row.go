// Package statement defines the uniform row shape produced by the file
// parsers and consumed by the validator and import orchestrator.
//
// A Row carries both the original source fields (RawData) and the coerced,
// typed values (Normalized). Parsers create rows, the validator attaches a
// status and any validation errors, and the orchestrator reads them without
// further mutation.
package statement

import "time"

// Status classifies a row after validation.
type Status string

const (
	StatusValid         Status = "valid"
	StatusInvalid       Status = "invalid"
	StatusWarning       Status = "warning"
	StatusDuplicate     Status = "duplicate"
	StatusTransferMatch Status = "transfer_match"
)

// Severity classifies a validation error.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError describes a single field-level problem on a row.
// Errors are attached by the validator and never removed afterwards.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Value    string   `json:"value,omitempty"`
	Severity Severity `json:"severity"`
}

// TransferConfidence grades how certain a transfer-target match is.
type TransferConfidence string

const (
	TransferConfidenceHigh   TransferConfidence = "high"
	TransferConfidenceMedium TransferConfidence = "medium"
	TransferConfidenceLow    TransferConfidence = "low"
)

// TransferTargetMatch points at an already-recorded transfer-out leg that
// this row appears to be the counterpart of. It is computed during
// validation and consumed by the orchestrator, which reconciles the
// existing transaction instead of inserting a new one.
type TransferTargetMatch struct {
	ExistingTransactionID string             `json:"existing_transaction_id"`
	ExistingTransferID    string             `json:"existing_transfer_id"`
	SourceAccountID       string             `json:"source_account_id"`
	SourceAccountName     string             `json:"source_account_name,omitempty"`
	DateDifference        int                `json:"date_difference"`
	Confidence            TransferConfidence `json:"confidence"`
}

// Normalized holds the coerced values for a row. Optional identifiers are
// set when the user explicitly picked an entity during import review.
type Normalized struct {
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Payee       string    `json:"payee,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`

	// Explicit selections made by the user, taking precedence over any
	// fuzzy matching.
	PayeeID           string `json:"payee_id,omitempty"`
	CategoryID        string `json:"category_id,omitempty"`
	TransferAccountID string `json:"transfer_account_id,omitempty"`
}

// Row is one source record from an imported statement file.
type Row struct {
	RowIndex   int               `json:"row_index"`
	RawData    map[string]string `json:"raw_data"`
	Normalized Normalized        `json:"normalized"`

	Status Status            `json:"status,omitempty"`
	Errors []ValidationError `json:"errors,omitempty"`

	TransferTarget *TransferTargetMatch `json:"transfer_target,omitempty"`

	// Source file identity for multi-file batches.
	SourceFileID   string `json:"source_file_id,omitempty"`
	SourceFileName string `json:"source_file_name,omitempty"`
}

// AddError appends a validation error to the row.
func (r *Row) AddError(field, message, value string, severity Severity) {
	r.Errors = append(r.Errors, ValidationError{
		Field:    field,
		Message:  message,
		Value:    value,
		Severity: severity,
	})
}

// HasErrors reports whether the row has at least one error-severity problem.
func (r *Row) HasErrors() bool {
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether the row has at least one warning.
func (r *Row) HasWarnings() bool {
	for _, e := range r.Errors {
		if e.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// Importable reports whether the row may be imported under the given
// partial-import policy. With partial imports enabled everything except
// invalid rows goes through; otherwise only clean rows and transfer
// matches do.
func (r *Row) Importable(allowPartial bool) bool {
	if allowPartial {
		return r.Status != StatusInvalid
	}
	return r.Status == StatusValid || r.Status == StatusTransferMatch
}

package importer

import (
	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// Stage names reported through the progress callback, in order.
const (
	StageValidating = "validating"
	StageMatching   = "matching"
	StageCreating   = "creating"
	StageComplete   = "complete"
)

// ProgressFunc receives stage transitions and row counts as the import
// advances. Called from the orchestrator goroutine only.
type ProgressFunc func(stage string, processed, total int)

// Options controls a single import run.
type Options struct {
	// AllowPartialImport lets rows with warnings (including duplicates)
	// through; without it only clean rows and transfer matches import.
	AllowPartialImport bool

	// CreateMissingPayees and CreateMissingCategories enable entity
	// creation when no acceptable fuzzy match exists.
	CreateMissingPayees     bool
	CreateMissingCategories bool

	// ReverseAmountSigns flips every amount at payload time, for files
	// that record expenses as positive numbers. Validation always sees
	// the file-native values.
	ReverseAmountSigns bool

	// RememberTransferMappings persists payee-string → account mappings
	// when a row is imported as a transfer, so later imports can
	// pre-detect the same transfer.
	RememberTransferMappings bool

	// SelectedPayeeIDs / SelectedCategoryIDs restrict fuzzy matching to
	// an explicit allow-list of entity IDs. Empty means match everything.
	SelectedPayeeIDs    []string
	SelectedCategoryIDs []string

	// Dismissals collected during import review, recorded after the run.
	Dismissals []aliases.Dismissal

	// BatchSize bounds how many rows import concurrently. Zero means the
	// default of 25.
	BatchSize int

	Progress ProgressFunc
}

// DefaultBatchSize is the concurrent row fan-out per batch.
const DefaultBatchSize = 25

func (o Options) batchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o Options) progress(stage string, processed, total int) {
	if o.Progress != nil {
		o.Progress(stage, processed, total)
	}
}

// RowError records a row that failed during creation, after validation.
type RowError struct {
	RowIndex       int    `json:"row_index"`
	SourceFileName string `json:"source_file_name,omitempty"`
	Message        string `json:"message"`
}

// FileResult is the per-source-file breakdown of a multi-file batch.
type FileResult struct {
	FileName string `json:"file_name"`
	Total    int    `json:"total"`
	Created  int    `json:"created"`
	Skipped  int    `json:"skipped"`
	Errored  int    `json:"errored"`
}

// Result summarizes an import run.
type Result struct {
	TotalRows           int                    `json:"total_rows"`
	ValidRows           int                    `json:"valid_rows"`
	InvalidRows         int                    `json:"invalid_rows"`
	Created             int                    `json:"created"`
	Skipped             int                    `json:"skipped"`
	TransfersReconciled int                    `json:"transfers_reconciled"`
	TransfersCreated    int                    `json:"transfers_created"`
	PayeesCreated       int                    `json:"payees_created"`
	CategoriesCreated   int                    `json:"categories_created"`
	AliasesLearned      int                    `json:"aliases_learned"`
	Errors              []RowError             `json:"errors,omitempty"`
	Warnings            []string               `json:"warnings,omitempty"`
	ByFile              map[string]*FileResult `json:"by_file,omitempty"`
	ImportRunID         int64                  `json:"import_run_id,omitempty"`
}

// Success reports whether every attempted row imported cleanly. Skipped
// rows do not count against success; row errors do.
func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

func (r *Result) fileResult(row *statement.Row) *FileResult {
	if row.SourceFileName == "" {
		return nil
	}
	if r.ByFile == nil {
		r.ByFile = make(map[string]*FileResult)
	}
	fr, ok := r.ByFile[row.SourceFileName]
	if !ok {
		fr = &FileResult{FileName: row.SourceFileName}
		r.ByFile[row.SourceFileName] = fr
	}
	return fr
}

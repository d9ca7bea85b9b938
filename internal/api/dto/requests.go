package dto

import (
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// PreviewRequest carries statement file contents for parsing and
// validation without importing anything.
type PreviewRequest struct {
	AccountID string        `json:"account_id" binding:"required"`
	Files     []PreviewFile `json:"files" binding:"required,min=1"`
}

// PreviewFile is one uploaded statement file.
type PreviewFile struct {
	FileName string `json:"file_name" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// ImportRequest executes an import of previously previewed (and possibly
// user-edited) rows.
type ImportRequest struct {
	AccountID string          `json:"account_id" binding:"required"`
	Rows      []statement.Row `json:"rows" binding:"required"`

	AllowPartialImport       bool `json:"allow_partial_import"`
	CreateMissingPayees      bool `json:"create_missing_payees"`
	CreateMissingCategories  bool `json:"create_missing_categories"`
	ReverseAmountSigns       bool `json:"reverse_amount_signs"`
	RememberTransferMappings bool `json:"remember_transfer_mappings"`

	SelectedPayeeIDs    []string `json:"selected_payee_ids,omitempty"`
	SelectedCategoryIDs []string `json:"selected_category_ids,omitempty"`

	Dismissals []DismissalRequest `json:"dismissals,omitempty"`
}

// DismissalRequest rejects a suggested category for a raw string.
type DismissalRequest struct {
	RawString  string `json:"raw_string" binding:"required"`
	CategoryID string `json:"category_id" binding:"required"`
	PayeeID    string `json:"payee_id,omitempty"`
}

// AliasCreateRequest bulk-creates confirmed category mappings.
type AliasCreateRequest struct {
	WorkspaceID string         `json:"workspace_id" binding:"required"`
	Mappings    []AliasMapping `json:"mappings" binding:"required,min=1"`
}

// AliasMapping is one confirmed raw-string to category assignment.
type AliasMapping struct {
	RawString       string `json:"raw_string" binding:"required"`
	CategoryID      string `json:"category_id" binding:"required"`
	PayeeID         string `json:"payee_id,omitempty"`
	AmountType      string `json:"amount_type,omitempty"`
	SourceAccountID string `json:"source_account_id,omitempty"`
	WasAiSuggested  bool   `json:"was_ai_suggested,omitempty"`
}

// DismissalBatchRequest records a batch of alias dismissals.
type DismissalBatchRequest struct {
	WorkspaceID string             `json:"workspace_id" binding:"required"`
	Dismissals  []DismissalRequest `json:"dismissals" binding:"required,min=1"`
}

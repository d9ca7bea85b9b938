package storage

import (
	"regexp"
	"strings"
	"time"
)

// Account is the import target. WorkspaceID scopes every entity lookup the
// import makes; AccountType drives utility-usage derivation.
type Account struct {
	ID              string `json:"id"`
	WorkspaceID     string `json:"workspace_id"`
	Name            string `json:"name"`
	AccountType     string `json:"account_type"` // checking, savings, credit, utility, ...
	UtilitySubtype  string `json:"utility_subtype,omitempty"`
	UtilityUnit     string `json:"utility_unit,omitempty"` // kWh, therms, gallons
}

// IsUtility reports whether usage records should be derived for imports
// into this account.
func (a *Account) IsUtility() bool {
	return a.AccountType == "utility"
}

// Payee is a merchant/counterparty entity. Soft-deleted via DeletedAt.
type Payee struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Category is a budgeting category entity. Soft-deleted via DeletedAt.
type Category struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Transaction is the durable output of an import. Transfer legs share a
// TransferID; the out-leg stays unreconciled until its counterpart arrives.
type Transaction struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"account_id"`
	WorkspaceID       string    `json:"workspace_id"`
	PayeeID           string    `json:"payee_id,omitempty"`
	CategoryID        string    `json:"category_id,omitempty"`
	Date              time.Time `json:"date"`
	Amount            float64   `json:"amount"`
	Notes             string    `json:"notes,omitempty"`
	Status            string    `json:"status,omitempty"` // pending, cleared
	TransferID        string    `json:"transfer_id,omitempty"`
	TransferAccountID string    `json:"transfer_account_id,omitempty"`
	Reconciled        bool      `json:"reconciled"`
	ImportMetadata    string    `json:"import_metadata,omitempty"` // JSON audit trail
	CreatedAt         time.Time `json:"created_at"`
}

// AliasTrigger records what kind of user action created a category alias.
type AliasTrigger string

const (
	TriggerImportConfirmation AliasTrigger = "import_confirmation"
	TriggerTransactionEdit    AliasTrigger = "transaction_edit"
	TriggerManualCreation     AliasTrigger = "manual_creation"
	TriggerAIAccepted         AliasTrigger = "ai_accepted"
	TriggerBulkImport         AliasTrigger = "bulk_import"
)

// AmountType restricts an alias to a transaction direction.
type AmountType string

const (
	AmountTypeAny     AmountType = "any"
	AmountTypeIncome  AmountType = "income"
	AmountTypeExpense AmountType = "expense"
)

// CategoryAlias is a learned mapping from a raw imported string to a
// category. Confidence lives in [0.1, 1.0] and is clamped on every write.
// Multiple aliases may exist for one raw string (one accepted, others
// dismissed at low confidence); soft-deleted, never hard-deleted.
type CategoryAlias struct {
	ID               string       `json:"id"`
	WorkspaceID      string       `json:"workspace_id"`
	RawString        string       `json:"raw_string"`
	NormalizedString string       `json:"normalized_string"`
	CategoryID       string       `json:"category_id"`
	PayeeID          string       `json:"payee_id,omitempty"`
	Trigger          AliasTrigger `json:"trigger"`
	Confidence       float64      `json:"confidence"`
	MatchCount       int          `json:"match_count"`
	AmountType       AmountType   `json:"amount_type"`
	SourceAccountID  string       `json:"source_account_id,omitempty"`
	LastMatchedAt    *time.Time   `json:"last_matched_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
	DeletedAt        *time.Time   `json:"deleted_at,omitempty"`
}

// ClampConfidence bounds the alias confidence to [0.1, 1.0].
func (a *CategoryAlias) ClampConfidence() {
	if a.Confidence < 0.1 {
		a.Confidence = 0.1
	}
	if a.Confidence > 1.0 {
		a.Confidence = 1.0
	}
}

// TransferMapping remembers that a payee string identifies a transfer to a
// specific account, so future imports can pre-detect the transfer.
type TransferMapping struct {
	ID              string    `json:"id"`
	WorkspaceID     string    `json:"workspace_id"`
	PayeeString     string    `json:"payee_string"`
	TargetAccountID string    `json:"target_account_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// UtilityUsage is a usage record derived from an imported utility bill,
// linked to the created transaction.
type UtilityUsage struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Usage         float64   `json:"usage"`
	Unit          string    `json:"unit,omitempty"`
	RatePerUnit   float64   `json:"rate_per_unit,omitempty"`
	AvgDailyUsage float64   `json:"avg_daily_usage,omitempty"`
	PeriodDays    int       `json:"period_days,omitempty"`
	MeterStart    float64   `json:"meter_start,omitempty"`
	MeterEnd      float64   `json:"meter_end,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ImportRun tracks one orchestrator run for audit/history.
type ImportRun struct {
	ID                  int64  `json:"id"`
	AccountID           string `json:"account_id"`
	StartedAt           string `json:"started_at"`
	CompletedAt         string `json:"completed_at,omitempty"`
	FileCount           int    `json:"file_count"`
	TotalRows           int    `json:"total_rows"`
	TransactionsCreated int    `json:"transactions_created"`
	RowsSkipped         int    `json:"rows_skipped"`
	RowsErrored         int    `json:"rows_errored"`
	Status              string `json:"status"`
}

// AliasStats is the read-only aggregate returned by AliasStats.
type AliasStats struct {
	TotalAliases     int                  `json:"total_aliases"`
	UniqueCategories int                  `json:"unique_categories"`
	ByTrigger        map[string]int       `json:"by_trigger"`
	ByAmountType     map[string]int       `json:"by_amount_type"`
	MostUsed         []AliasUsageSummary  `json:"most_used"`
	RecentlyCreated  int                  `json:"recently_created"` // 30-day window
}

// AliasUsageSummary is one row of the most-used top list.
type AliasUsageSummary struct {
	RawString  string  `json:"raw_string"`
	CategoryID string  `json:"category_id"`
	MatchCount int     `json:"match_count"`
	Confidence float64 `json:"confidence"`
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts an entity name into its unique slug form.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

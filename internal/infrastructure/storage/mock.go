package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu sync.Mutex

	accounts         map[string]*Account
	payees           map[string]*Payee
	categories       map[string]*Category
	transactions     map[string]*Transaction
	aliases          map[string]*CategoryAlias
	transferMappings map[string]*TransferMapping // keyed by workspace|payee
	usageRecords     []*UtilityUsage
	importRuns       map[int64]*ImportRun
	nextRunID        int64

	// Hooks for test assertions
	CreateTransactionCalls int
	CreateAliasCalls       int
	UpdateAliasCalls       int
	ReconcileCalls         []string
	LastCreatedTransfer    *Transaction

	// Error injection for testing error paths
	GetAccountErr        error
	CreateTransactionErr error
	CreateAliasErr       error
	UpdateAliasErr       error
	CreatePayeeErr       error
	CreateCategoryErr    error
	CreateUsageErr       error
	StartImportRunErr    error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts:         make(map[string]*Account),
		payees:           make(map[string]*Payee),
		categories:       make(map[string]*Category),
		transactions:     make(map[string]*Transaction),
		aliases:          make(map[string]*CategoryAlias),
		transferMappings: make(map[string]*TransferMapping),
		importRuns:       make(map[int64]*ImportRun),
		nextRunID:        1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// GetAccount retrieves an account
func (m *MockRepository) GetAccount(id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetAccountErr != nil {
		return nil, m.GetAccountErr
	}
	account, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *account
	return &copied, nil
}

// CreateAccount inserts an account
func (m *MockRepository) CreateAccount(account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

// ListPayees returns active payees for a workspace
func (m *MockRepository) ListPayees(workspaceID string) ([]Payee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var payees []Payee
	for _, p := range m.payees {
		if p.WorkspaceID == workspaceID && p.DeletedAt == nil {
			payees = append(payees, *p)
		}
	}
	return payees, nil
}

// FindPayeeBySlug finds a payee by slug, including soft-deleted rows
func (m *MockRepository) FindPayeeBySlug(slug string) (*Payee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payees {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// CreatePayee inserts a payee, enforcing slug uniqueness
func (m *MockRepository) CreatePayee(payee *Payee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreatePayeeErr != nil {
		return m.CreatePayeeErr
	}
	for _, p := range m.payees {
		if p.Slug == payee.Slug {
			return ErrConflict
		}
	}
	if payee.ID == "" {
		payee.ID = uuid.NewString()
	}
	if payee.CreatedAt.IsZero() {
		payee.CreatedAt = time.Now()
	}
	copied := *payee
	m.payees[payee.ID] = &copied
	return nil
}

// RestorePayee clears the soft-delete marker
func (m *MockRepository) RestorePayee(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payees[id]; ok {
		p.DeletedAt = nil
		return nil
	}
	return ErrNotFound
}

// SoftDeletePayee marks a payee deleted (test setup helper)
func (m *MockRepository) SoftDeletePayee(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.payees[id]; ok {
		now := time.Now()
		p.DeletedAt = &now
	}
}

// ListCategories returns active categories for a workspace
func (m *MockRepository) ListCategories(workspaceID string) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var categories []Category
	for _, c := range m.categories {
		if c.WorkspaceID == workspaceID && c.DeletedAt == nil {
			categories = append(categories, *c)
		}
	}
	return categories, nil
}

// FindCategoryBySlug finds a category by slug, including soft-deleted rows
func (m *MockRepository) FindCategoryBySlug(slug string) (*Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Slug == slug {
			copied := *c
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// CreateCategory inserts a category, enforcing slug uniqueness
func (m *MockRepository) CreateCategory(category *Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateCategoryErr != nil {
		return m.CreateCategoryErr
	}
	for _, c := range m.categories {
		if c.Slug == category.Slug {
			return ErrConflict
		}
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	copied := *category
	m.categories[category.ID] = &copied
	return nil
}

// RestoreCategory clears the soft-delete marker
func (m *MockRepository) RestoreCategory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.categories[id]; ok {
		c.DeletedAt = nil
		return nil
	}
	return ErrNotFound
}

// ListTransactions returns all transactions for a workspace
func (m *MockRepository) ListTransactions(workspaceID string) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var transactions []Transaction
	for _, tx := range m.transactions {
		if tx.WorkspaceID == workspaceID {
			transactions = append(transactions, *tx)
		}
	}
	return transactions, nil
}

// CreateTransaction inserts a transaction
func (m *MockRepository) CreateTransaction(tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateTransactionCalls++
	if m.CreateTransactionErr != nil {
		return m.CreateTransactionErr
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	copied := *tx
	m.transactions[tx.ID] = &copied
	return nil
}

// ReconcileTransaction marks a transaction reconciled and cleared
func (m *MockRepository) ReconcileTransaction(id, importMetadata string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReconcileCalls = append(m.ReconcileCalls, id)
	tx, ok := m.transactions[id]
	if !ok {
		return ErrNotFound
	}
	tx.Reconciled = true
	tx.Status = "cleared"
	tx.ImportMetadata = importMetadata
	return nil
}

// CreateTransfer creates both legs of a transfer
func (m *MockRepository) CreateTransfer(fromAccountID, toAccountID string, amount float64, date time.Time, notes string) (*Transaction, *Transaction, error) {
	m.mu.Lock()
	fromAccount, ok := m.accounts[fromAccountID]
	if !ok {
		m.mu.Unlock()
		return nil, nil, ErrNotFound
	}
	workspaceID := fromAccount.WorkspaceID
	m.mu.Unlock()

	transferID := uuid.NewString()
	outAmount := -amount
	if amount < 0 {
		outAmount = amount
	}

	from := &Transaction{
		ID: uuid.NewString(), AccountID: fromAccountID, WorkspaceID: workspaceID,
		Date: date, Amount: outAmount, Notes: notes, Status: "cleared",
		TransferID: transferID, TransferAccountID: toAccountID, Reconciled: true,
	}
	to := &Transaction{
		ID: uuid.NewString(), AccountID: toAccountID, WorkspaceID: workspaceID,
		Date: date, Amount: -outAmount, Notes: notes, Status: "pending",
		TransferID: transferID, TransferAccountID: fromAccountID, Reconciled: false,
	}

	if err := m.CreateTransaction(from); err != nil {
		return nil, nil, err
	}
	if err := m.CreateTransaction(to); err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.LastCreatedTransfer = from
	m.mu.Unlock()
	return from, to, nil
}

// GetTransaction retrieves a transaction by ID (test helper)
func (m *MockRepository) GetTransaction(id string) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.transactions[id]; ok {
		copied := *tx
		return &copied
	}
	return nil
}

func aliasKey(workspaceID, rawString, categoryID string) string {
	return workspaceID + "|" + rawString + "|" + categoryID
}

// FindAliasesByRawString returns live aliases matching the raw string
func (m *MockRepository) FindAliasesByRawString(workspaceID, rawString string) ([]CategoryAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var aliases []CategoryAlias
	for _, a := range m.aliases {
		if a.WorkspaceID == workspaceID && a.RawString == rawString && a.DeletedAt == nil {
			aliases = append(aliases, *a)
		}
	}
	sortAliasesByConfidence(aliases)
	return aliases, nil
}

// FindAliasesByNormalized returns live aliases matching the normalized form
func (m *MockRepository) FindAliasesByNormalized(workspaceID, normalized string) ([]CategoryAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var aliases []CategoryAlias
	for _, a := range m.aliases {
		if a.WorkspaceID == workspaceID && a.NormalizedString == normalized && a.DeletedAt == nil {
			aliases = append(aliases, *a)
		}
	}
	sortAliasesByConfidence(aliases)
	return aliases, nil
}

// FindAliasesByPayee returns live aliases attached to a payee
func (m *MockRepository) FindAliasesByPayee(workspaceID, payeeID string) ([]CategoryAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var aliases []CategoryAlias
	for _, a := range m.aliases {
		if a.WorkspaceID == workspaceID && a.PayeeID == payeeID && a.DeletedAt == nil {
			aliases = append(aliases, *a)
		}
	}
	sortAliasesByConfidence(aliases)
	return aliases, nil
}

// FindAliasByRawStringAndCategory finds the alias for a (rawString, categoryID) pair
func (m *MockRepository) FindAliasByRawStringAndCategory(workspaceID, rawString, categoryID string) (*CategoryAlias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.aliases[aliasKey(workspaceID, rawString, categoryID)]; ok && a.DeletedAt == nil {
		copied := *a
		return &copied, nil
	}
	return nil, ErrNotFound
}

// CreateAlias inserts an alias, enforcing (workspace, raw, category) uniqueness
func (m *MockRepository) CreateAlias(alias *CategoryAlias) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateAliasCalls++
	if m.CreateAliasErr != nil {
		return m.CreateAliasErr
	}
	key := aliasKey(alias.WorkspaceID, alias.RawString, alias.CategoryID)
	if _, exists := m.aliases[key]; exists {
		return ErrConflict
	}
	if alias.ID == "" {
		alias.ID = uuid.NewString()
	}
	now := time.Now()
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = now
	}
	alias.UpdatedAt = now
	if alias.AmountType == "" {
		alias.AmountType = AmountTypeAny
	}
	if alias.MatchCount == 0 {
		alias.MatchCount = 1
	}
	alias.ClampConfidence()
	copied := *alias
	m.aliases[key] = &copied
	return nil
}

// UpdateAlias persists alias changes
func (m *MockRepository) UpdateAlias(alias *CategoryAlias) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateAliasCalls++
	if m.UpdateAliasErr != nil {
		return m.UpdateAliasErr
	}
	alias.ClampConfidence()
	alias.UpdatedAt = time.Now()
	key := aliasKey(alias.WorkspaceID, alias.RawString, alias.CategoryID)
	if _, ok := m.aliases[key]; !ok {
		return ErrNotFound
	}
	copied := *alias
	m.aliases[key] = &copied
	return nil
}

// GetAliasStats returns aggregate alias statistics
func (m *MockRepository) GetAliasStats(workspaceID string) (*AliasStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &AliasStats{
		ByTrigger:    make(map[string]int),
		ByAmountType: make(map[string]int),
	}
	categories := make(map[string]bool)
	cutoff := time.Now().AddDate(0, 0, -30)

	for _, a := range m.aliases {
		if a.WorkspaceID != workspaceID || a.DeletedAt != nil {
			continue
		}
		stats.TotalAliases++
		categories[a.CategoryID] = true
		stats.ByTrigger[string(a.Trigger)]++
		stats.ByAmountType[string(a.AmountType)]++
		if a.CreatedAt.After(cutoff) {
			stats.RecentlyCreated++
		}
		stats.MostUsed = append(stats.MostUsed, AliasUsageSummary{
			RawString:  a.RawString,
			CategoryID: a.CategoryID,
			MatchCount: a.MatchCount,
			Confidence: a.Confidence,
		})
	}
	stats.UniqueCategories = len(categories)

	sortUsageByMatchCount(stats.MostUsed)
	if len(stats.MostUsed) > 10 {
		stats.MostUsed = stats.MostUsed[:10]
	}
	return stats, nil
}

// SaveTransferMapping upserts a transfer mapping
func (m *MockRepository) SaveTransferMapping(mapping *TransferMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	copied := *mapping
	m.transferMappings[strings.ToLower(mapping.WorkspaceID+"|"+mapping.PayeeString)] = &copied
	return nil
}

// FindTransferMapping looks up a remembered transfer mapping
func (m *MockRepository) FindTransferMapping(workspaceID, payeeString string) (*TransferMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mapping, ok := m.transferMappings[strings.ToLower(workspaceID+"|"+payeeString)]; ok {
		copied := *mapping
		return &copied, nil
	}
	return nil, ErrNotFound
}

// CreateUtilityUsage inserts a usage record
func (m *MockRepository) CreateUtilityUsage(usage *UtilityUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateUsageErr != nil {
		return m.CreateUsageErr
	}
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	copied := *usage
	m.usageRecords = append(m.usageRecords, &copied)
	return nil
}

// UsageRecords returns all recorded usage entries (test helper)
func (m *MockRepository) UsageRecords() []*UtilityUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*UtilityUsage(nil), m.usageRecords...)
}

// StartImportRun records the start of a run
func (m *MockRepository) StartImportRun(accountID string, fileCount, totalRows int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartImportRunErr != nil {
		return 0, m.StartImportRunErr
	}
	id := m.nextRunID
	m.nextRunID++
	m.importRuns[id] = &ImportRun{
		ID:        id,
		AccountID: accountID,
		StartedAt: time.Now().Format(time.RFC3339),
		FileCount: fileCount,
		TotalRows: totalRows,
		Status:    "running",
	}
	return id, nil
}

// CompleteImportRun records the outcome of a run
func (m *MockRepository) CompleteImportRun(runID int64, created, skipped, errored int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.importRuns[runID]
	if !ok {
		return ErrNotFound
	}
	run.CompletedAt = time.Now().Format(time.RFC3339)
	run.TransactionsCreated = created
	run.RowsSkipped = skipped
	run.RowsErrored = errored
	run.Status = "completed"
	if errored > 0 {
		run.Status = "completed_with_errors"
	}
	return nil
}

// ListImportRuns returns recent runs, newest first
func (m *MockRepository) ListImportRuns(limit int) ([]ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var runs []ImportRun
	for id := m.nextRunID - 1; id >= 1 && len(runs) < limit; id-- {
		if run, ok := m.importRuns[id]; ok {
			runs = append(runs, *run)
		}
	}
	return runs, nil
}

func sortAliasesByConfidence(aliases []CategoryAlias) {
	sort.Slice(aliases, func(i, j int) bool {
		return aliases[i].Confidence > aliases[j].Confidence
	})
}

func sortUsageByMatchCount(summaries []AliasUsageSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].MatchCount > summaries[j].MatchCount
	})
}

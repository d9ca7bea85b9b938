package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedAccount(t *testing.T, s *Storage, id, workspaceID, accountType string) {
	t.Helper()
	require.NoError(t, s.CreateAccount(&Account{
		ID:          id,
		WorkspaceID: workspaceID,
		Name:        id,
		AccountType: accountType,
	}))
}

func TestMigrations_Idempotent(t *testing.T) {
	// Arrange: run the full migration set once
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Act: reopening must not re-apply anything
	s, err = NewStorage(path)

	// Assert
	require.NoError(t, err)
	defer s.Close()

	applied, err := s.getAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, len(allMigrations))
}

func TestAccounts(t *testing.T) {
	s := newTestStorage(t)
	seedAccount(t, s, "acct-1", "ws-1", "checking")

	account, err := s.GetAccount("acct-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", account.WorkspaceID)
	assert.False(t, account.IsUtility())

	_, err = s.GetAccount("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPayees_SlugConflictAndRestore(t *testing.T) {
	// Arrange
	s := newTestStorage(t)
	payee := &Payee{ID: "p-1", WorkspaceID: "ws-1", Name: "Trader Joe's", Slug: "trader-joe-s"}
	require.NoError(t, s.CreatePayee(payee))

	// Act: second insert with the same slug
	err := s.CreatePayee(&Payee{ID: "p-2", WorkspaceID: "ws-2", Name: "Trader Joe's", Slug: "trader-joe-s"})

	// Assert
	assert.ErrorIs(t, err, ErrConflict)

	// Soft-delete, then check lookup behavior on both paths
	_, err = s.db.Exec(`UPDATE payees SET deleted_at = CURRENT_TIMESTAMP WHERE id = 'p-1'`)
	require.NoError(t, err)

	listed, err := s.ListPayees("ws-1")
	require.NoError(t, err)
	assert.Empty(t, listed, "listing excludes soft-deleted payees")

	found, err := s.FindPayeeBySlug("trader-joe-s")
	require.NoError(t, err)
	assert.Equal(t, "p-1", found.ID)
	assert.NotNil(t, found.DeletedAt, "slug lookup includes soft-deleted payees")

	require.NoError(t, s.RestorePayee("p-1"))
	listed, err = s.ListPayees("ws-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].DeletedAt)
}

func TestCategories_CreateAndFind(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.CreateCategory(&Category{
		ID: "c-1", WorkspaceID: "ws-1", Name: "Groceries", Slug: "groceries",
	}))

	categories, err := s.ListCategories("ws-1")
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Groceries", categories[0].Name)

	found, err := s.FindCategoryBySlug("groceries")
	require.NoError(t, err)
	assert.Equal(t, "c-1", found.ID)

	_, err = s.FindCategoryBySlug("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransactions_CreateAndList(t *testing.T) {
	// Arrange
	s := newTestStorage(t)
	seedAccount(t, s, "acct-1", "ws-1", "checking")

	tx := &Transaction{
		AccountID:   "acct-1",
		WorkspaceID: "ws-1",
		Date:        time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Amount:      -42.17,
		Notes:       "weekly shop",
	}

	// Act
	require.NoError(t, s.CreateTransaction(tx))

	// Assert: ID and status are filled in on insert
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "pending", tx.Status)

	listed, err := s.ListTransactions("ws-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, tx.ID, listed[0].ID)
	assert.InDelta(t, -42.17, listed[0].Amount, 0.001)
	assert.Equal(t, "weekly shop", listed[0].Notes)
	assert.False(t, listed[0].Reconciled)
}

func TestReconcileTransaction(t *testing.T) {
	s := newTestStorage(t)
	seedAccount(t, s, "acct-1", "ws-1", "checking")
	tx := &Transaction{
		AccountID: "acct-1", WorkspaceID: "ws-1",
		Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Amount: 500,
		TransferID: "xfer-1",
	}
	require.NoError(t, s.CreateTransaction(tx))

	require.NoError(t, s.ReconcileTransaction(tx.ID, `{"source":"import"}`))

	listed, err := s.ListTransactions("ws-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Reconciled)
	assert.Equal(t, "cleared", listed[0].Status)
	assert.Equal(t, `{"source":"import"}`, listed[0].ImportMetadata)

	assert.ErrorIs(t, s.ReconcileTransaction("nope", ""), ErrNotFound)
}

func TestCreateTransfer(t *testing.T) {
	// Arrange
	s := newTestStorage(t)
	seedAccount(t, s, "acct-checking", "ws-1", "checking")
	seedAccount(t, s, "acct-savings", "ws-1", "savings")
	date := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	// Act
	from, to, err := s.CreateTransfer("acct-checking", "acct-savings", 250, date, "monthly savings")

	// Assert: linked legs with mirrored amounts
	require.NoError(t, err)
	assert.Equal(t, from.TransferID, to.TransferID)
	assert.InDelta(t, -250, from.Amount, 0.001)
	assert.InDelta(t, 250, to.Amount, 0.001)
	assert.True(t, from.Reconciled)
	assert.False(t, to.Reconciled, "incoming leg stays pending until its import arrives")
	assert.Equal(t, "acct-savings", from.TransferAccountID)
	assert.Equal(t, "acct-checking", to.TransferAccountID)
	assert.Equal(t, "ws-1", to.WorkspaceID)

	listed, err := s.ListTransactions("ws-1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestCreateTransfer_NegativeAmountKeepsSign(t *testing.T) {
	s := newTestStorage(t)
	seedAccount(t, s, "acct-checking", "ws-1", "checking")
	seedAccount(t, s, "acct-savings", "ws-1", "savings")

	from, to, err := s.CreateTransfer("acct-checking", "acct-savings", -100,
		time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), "")

	require.NoError(t, err)
	assert.InDelta(t, -100, from.Amount, 0.001)
	assert.InDelta(t, 100, to.Amount, 0.001)
}

func TestCreateTransfer_UnknownSourceAccount(t *testing.T) {
	s := newTestStorage(t)

	_, _, err := s.CreateTransfer("nope", "also-nope", 100, time.Now(), "")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransferMappings_Upsert(t *testing.T) {
	s := newTestStorage(t)

	require.NoError(t, s.SaveTransferMapping(&TransferMapping{
		WorkspaceID: "ws-1", PayeeString: "TRANSFER TO SAVINGS", TargetAccountID: "acct-savings",
	}))
	// Same payee string again points at a different account
	require.NoError(t, s.SaveTransferMapping(&TransferMapping{
		WorkspaceID: "ws-1", PayeeString: "TRANSFER TO SAVINGS", TargetAccountID: "acct-brokerage",
	}))

	m, err := s.FindTransferMapping("ws-1", "TRANSFER TO SAVINGS")
	require.NoError(t, err)
	assert.Equal(t, "acct-brokerage", m.TargetAccountID)

	_, err = s.FindTransferMapping("ws-2", "TRANSFER TO SAVINGS")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateUtilityUsage(t *testing.T) {
	s := newTestStorage(t)
	seedAccount(t, s, "acct-electric", "ws-1", "utility")
	tx := &Transaction{
		AccountID: "acct-electric", WorkspaceID: "ws-1",
		Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Amount: -120,
	}
	require.NoError(t, s.CreateTransaction(tx))

	err := s.CreateUtilityUsage(&UtilityUsage{
		TransactionID: tx.ID,
		AccountID:     "acct-electric",
		Usage:         600,
		Unit:          "kWh",
		RatePerUnit:   0.20,
		AvgDailyUsage: 20,
		PeriodDays:    30,
	})

	require.NoError(t, err)
}

func TestAliases_CreateDefaultsAndConflict(t *testing.T) {
	// Arrange
	s := newTestStorage(t)
	alias := &CategoryAlias{
		WorkspaceID:      "ws-1",
		RawString:        "TRADER JOE'S #552",
		NormalizedString: "trader joe's #552",
		CategoryID:       "c-groceries",
		Trigger:          TriggerImportConfirmation,
		Confidence:       1.5, // clamped on write
	}

	// Act
	err := s.CreateAlias(alias)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, alias.ID)
	assert.Equal(t, AmountTypeAny, alias.AmountType)
	assert.Equal(t, 1, alias.MatchCount)
	assert.Equal(t, 1.0, alias.Confidence)

	// Same (workspace, raw string, category) pair conflicts
	err = s.CreateAlias(&CategoryAlias{
		WorkspaceID:      "ws-1",
		RawString:        "TRADER JOE'S #552",
		NormalizedString: "trader joe's #552",
		CategoryID:       "c-groceries",
		Trigger:          TriggerAIAccepted,
		Confidence:       0.85,
	})
	assert.ErrorIs(t, err, ErrConflict)

	// Same raw string, different category is a separate alias
	require.NoError(t, s.CreateAlias(&CategoryAlias{
		WorkspaceID:      "ws-1",
		RawString:        "TRADER JOE'S #552",
		NormalizedString: "trader joe's #552",
		CategoryID:       "c-dining",
		Trigger:          TriggerAIAccepted,
		Confidence:       0.85,
	}))
}

func TestAliases_Lookups(t *testing.T) {
	// Arrange: two aliases for one normalized string at different confidence
	s := newTestStorage(t)
	require.NoError(t, s.CreateAlias(&CategoryAlias{
		WorkspaceID: "ws-1", RawString: "SHELL OIL", NormalizedString: "shell oil",
		CategoryID: "c-fuel", PayeeID: "p-shell",
		Trigger: TriggerImportConfirmation, Confidence: 1.0,
	}))
	require.NoError(t, s.CreateAlias(&CategoryAlias{
		WorkspaceID: "ws-1", RawString: "Shell Oil", NormalizedString: "shell oil",
		CategoryID: "c-auto",
		Trigger: TriggerAIAccepted, Confidence: 0.85,
	}))

	// Act
	byNormalized, err := s.FindAliasesByNormalized("ws-1", "shell oil")

	// Assert: highest confidence first
	require.NoError(t, err)
	require.Len(t, byNormalized, 2)
	assert.Equal(t, "c-fuel", byNormalized[0].CategoryID)
	assert.Equal(t, "c-auto", byNormalized[1].CategoryID)

	byRaw, err := s.FindAliasesByRawString("ws-1", "SHELL OIL")
	require.NoError(t, err)
	require.Len(t, byRaw, 1)
	assert.Equal(t, "c-fuel", byRaw[0].CategoryID)

	byPayee, err := s.FindAliasesByPayee("ws-1", "p-shell")
	require.NoError(t, err)
	require.Len(t, byPayee, 1)

	found, err := s.FindAliasByRawStringAndCategory("ws-1", "SHELL OIL", "c-fuel")
	require.NoError(t, err)
	assert.Equal(t, byRaw[0].ID, found.ID)

	_, err = s.FindAliasByRawStringAndCategory("ws-1", "SHELL OIL", "c-nope")
	assert.ErrorIs(t, err, ErrNotFound)

	// Other workspaces never see the aliases
	other, err := s.FindAliasesByNormalized("ws-2", "shell oil")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpdateAlias(t *testing.T) {
	s := newTestStorage(t)
	alias := &CategoryAlias{
		WorkspaceID: "ws-1", RawString: "NETFLIX", NormalizedString: "netflix",
		CategoryID: "c-subs", Trigger: TriggerAIAccepted, Confidence: 0.85,
	}
	require.NoError(t, s.CreateAlias(alias))

	now := time.Now()
	alias.Confidence = 0.05 // clamped up to the floor
	alias.MatchCount = 5
	alias.LastMatchedAt = &now
	require.NoError(t, s.UpdateAlias(alias))

	stored, err := s.FindAliasByRawStringAndCategory("ws-1", "NETFLIX", "c-subs")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, stored.Confidence, 0.0001)
	assert.Equal(t, 5, stored.MatchCount)
	assert.NotNil(t, stored.LastMatchedAt)

	assert.ErrorIs(t, s.UpdateAlias(&CategoryAlias{ID: "nope"}), ErrNotFound)
}

func TestGetAliasStats(t *testing.T) {
	// Arrange
	s := newTestStorage(t)
	require.NoError(t, s.CreateAlias(&CategoryAlias{
		WorkspaceID: "ws-1", RawString: "A", NormalizedString: "a",
		CategoryID: "c-1", Trigger: TriggerImportConfirmation,
		Confidence: 1.0, MatchCount: 7, AmountType: AmountTypeExpense,
	}))
	require.NoError(t, s.CreateAlias(&CategoryAlias{
		WorkspaceID: "ws-1", RawString: "B", NormalizedString: "b",
		CategoryID: "c-2", Trigger: TriggerAIAccepted, Confidence: 0.85,
	}))
	require.NoError(t, s.CreateAlias(&CategoryAlias{
		WorkspaceID: "ws-2", RawString: "C", NormalizedString: "c",
		CategoryID: "c-3", Trigger: TriggerManualCreation, Confidence: 1.0,
	}))

	// Act
	stats, err := s.GetAliasStats("ws-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAliases)
	assert.Equal(t, 2, stats.UniqueCategories)
	assert.Equal(t, 1, stats.ByTrigger[string(TriggerImportConfirmation)])
	assert.Equal(t, 1, stats.ByTrigger[string(TriggerAIAccepted)])
	assert.Equal(t, 1, stats.ByAmountType[string(AmountTypeExpense)])
	assert.Equal(t, 1, stats.ByAmountType[string(AmountTypeAny)])
	assert.Equal(t, 2, stats.RecentlyCreated)
	require.NotEmpty(t, stats.MostUsed)
	assert.Equal(t, "A", stats.MostUsed[0].RawString)
	assert.Equal(t, 7, stats.MostUsed[0].MatchCount)
}

func TestImportRuns(t *testing.T) {
	// Arrange
	s := newTestStorage(t)
	runID, err := s.StartImportRun("acct-1", 2, 40)
	require.NoError(t, err)
	require.NotZero(t, runID)

	// Act
	require.NoError(t, s.CompleteImportRun(runID, 35, 3, 2))

	// Assert
	runs, err := s.ListImportRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "acct-1", runs[0].AccountID)
	assert.Equal(t, 2, runs[0].FileCount)
	assert.Equal(t, 40, runs[0].TotalRows)
	assert.Equal(t, 35, runs[0].TransactionsCreated)
	assert.Equal(t, 3, runs[0].RowsSkipped)
	assert.Equal(t, 2, runs[0].RowsErrored)
	assert.Equal(t, "completed_with_errors", runs[0].Status)
	assert.NotEmpty(t, runs[0].StartedAt)
	assert.NotEmpty(t, runs[0].CompletedAt)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "trader-joe-s", Slugify("Trader Joe's"))
	assert.Equal(t, "home-depot", Slugify("  Home   Depot  "))
	assert.Equal(t, "7-eleven", Slugify("7-Eleven!"))
}

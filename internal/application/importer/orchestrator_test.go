package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
	"github.com/ledgerline/budget-import-backend/internal/domain/validator"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

const (
	testWorkspace = "ws-1"
	testAccount   = "acct-checking"
)

func newTestHarness(t *testing.T) (*Orchestrator, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	require.NoError(t, repo.CreateAccount(&storage.Account{
		ID:          testAccount,
		WorkspaceID: testWorkspace,
		Name:        "Checking",
		AccountType: "checking",
	}))
	svc := aliases.NewService(repo, nil)
	return New(repo, svc, nil), repo
}

func makeRow(index int, date time.Time, amount float64, payee string) statement.Row {
	return statement.Row{
		RowIndex: index,
		RawData:  map[string]string{"payee": payee},
		Normalized: statement.Normalized{
			Date:   date,
			Amount: amount,
			Payee:  payee,
		},
	}
}

func TestRun_CreatesTransactions(t *testing.T) {
	// Arrange
	orch, repo := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []statement.Row{
		makeRow(0, day, -42.17, "TRADER JOE'S #552"),
		makeRow(1, day.AddDate(0, 0, 1), -12.50, "STARBUCKS #1234"),
	}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{
		CreateMissingPayees:     true,
		CreateMissingCategories: true,
	})

	// Assert
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 2, repo.CreateTransactionCalls)
	assert.Equal(t, 2, result.PayeesCreated)

	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, testAccount, tx.AccountID)
		assert.NotEmpty(t, tx.PayeeID)
		assert.NotEmpty(t, tx.ImportMetadata)
	}
}

func TestRun_SkipsInvalidRows(t *testing.T) {
	// Arrange: second row has a zero amount, which validation rejects
	orch, repo := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []statement.Row{
		makeRow(0, day, -42.17, "TRADER JOE'S"),
		makeRow(1, day, 0, "BROKEN ROW"),
	}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert: invalid rows skip silently, they are not row errors
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 1, result.ValidRows)
	assert.Equal(t, 1, result.InvalidRows)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, repo.CreateTransactionCalls)
}

func TestRun_DuplicatePolicy(t *testing.T) {
	// Arrange: an existing transaction with the same day and amount
	orch, repo := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateTransaction(&storage.Transaction{
		AccountID: testAccount, WorkspaceID: testWorkspace,
		Date: day, Amount: -42.17,
	}))
	rows := []statement.Row{makeRow(0, day, -42.17, "TRADER JOE'S")}

	// Act: strict mode skips the duplicate
	result, err := orch.Run(context.Background(), testAccount, rows, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Skipped)

	// Act: partial import lets the human-approved duplicate through
	rows = []statement.Row{makeRow(0, day, -42.17, "TRADER JOE'S")}
	result, err = orch.Run(context.Background(), testAccount, rows, Options{AllowPartialImport: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
}

func TestRun_ReconcilesTransferTarget(t *testing.T) {
	// Arrange: a pending transfer out-leg waiting for its counterpart
	orch, repo := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	leg := &storage.Transaction{
		ID: "tx-leg", AccountID: "acct-savings", WorkspaceID: testWorkspace,
		Date: day, Amount: -500.00, TransferID: "xfer-1", Reconciled: false,
	}
	require.NoError(t, repo.CreateTransaction(leg))
	rows := []statement.Row{makeRow(0, day.AddDate(0, 0, 1), 500.00, "TRANSFER FROM SAVINGS")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{
		RememberTransferMappings: true,
	})

	// Assert: reconciled, not duplicated
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransfersReconciled)
	assert.Equal(t, 0, result.Created)
	require.Contains(t, repo.ReconcileCalls, "tx-leg")

	reconciled := repo.GetTransaction("tx-leg")
	require.NotNil(t, reconciled)
	assert.True(t, reconciled.Reconciled)
	assert.Equal(t, "cleared", reconciled.Status)
	assert.NotEmpty(t, reconciled.ImportMetadata)

	mapping, err := repo.FindTransferMapping(testWorkspace, "TRANSFER FROM SAVINGS")
	require.NoError(t, err)
	assert.Equal(t, "acct-savings", mapping.TargetAccountID)
}

func TestRun_CreatesMarkedTransfer(t *testing.T) {
	// Arrange: the user tagged the row as a transfer to savings
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreateAccount(&storage.Account{
		ID: "acct-savings", WorkspaceID: testWorkspace, Name: "Savings",
	}))
	row := makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -250.00, "ONLINE TRANSFER")
	row.Normalized.TransferAccountID = "acct-savings"

	// Act
	result, err := orch.Run(context.Background(), testAccount, []statement.Row{row}, Options{})

	// Assert: both legs exist, out-leg on checking
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransfersCreated)
	require.NotNil(t, repo.LastCreatedTransfer)
	assert.Equal(t, testAccount, repo.LastCreatedTransfer.AccountID)
	assert.InDelta(t, -250.00, repo.LastCreatedTransfer.Amount, 0.001)

	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestRun_ReusesFuzzyMatchedPayee(t *testing.T) {
	// Arrange: an existing payee whose name nearly matches the row
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreatePayee(&storage.Payee{
		ID: "payee-tj", WorkspaceID: testWorkspace,
		Name: "Trader Joe's", Slug: "trader-joe-s",
	}))
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -42.17, "TRADER JOES")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert: matched, not recreated
	require.NoError(t, err)
	assert.Equal(t, 0, result.PayeesCreated)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "payee-tj", txs[0].PayeeID)
}

func TestRun_DoesNotMergeSimilarButDistinctPayees(t *testing.T) {
	// Arrange: "Food Depot" is similar to "Home Depot" but must not merge
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreatePayee(&storage.Payee{
		ID: "payee-hd", WorkspaceID: testWorkspace,
		Name: "Home Depot", Slug: "home-depot",
	}))
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -17.45, "Food Depot")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.PayeesCreated)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.NotEqual(t, "payee-hd", txs[0].PayeeID)
}

func TestRun_AppliesAliasCategory(t *testing.T) {
	// Arrange: a learned alias for the row's raw payee string
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreateAlias(&storage.CategoryAlias{
		WorkspaceID: testWorkspace, RawString: "STARBUCKS #1234",
		NormalizedString: aliases.Normalize("STARBUCKS #1234"),
		CategoryID:       "cat-coffee", Trigger: storage.TriggerImportConfirmation,
		Confidence: 0.9, AmountType: storage.AmountTypeAny,
	}))
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -5.75, "STARBUCKS #1234")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert: category applied and the alias confidence nudged up
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "cat-coffee", txs[0].CategoryID)

	alias, err := repo.FindAliasByRawStringAndCategory(testWorkspace, "STARBUCKS #1234", "cat-coffee")
	require.NoError(t, err)
	assert.InDelta(t, 0.91, alias.Confidence, 0.001)
	assert.Equal(t, 2, alias.MatchCount)
}

func TestRun_LearnsAliasFromFileCategory(t *testing.T) {
	// Arrange: the file itself carries a category column
	orch, repo := newTestHarness(t)
	row := makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -42.17, "TRADER JOE'S #552")
	row.Normalized.Category = "Groceries"

	// Act
	result, err := orch.Run(context.Background(), testAccount, []statement.Row{row}, Options{
		CreateMissingPayees:     true,
		CreateMissingCategories: true,
	})

	// Assert: next import of the same string hits the alias
	require.NoError(t, err)
	assert.Equal(t, 1, result.AliasesLearned)
	found, err := repo.FindAliasesByRawString(testWorkspace, "TRADER JOE'S #552")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.InDelta(t, aliases.ConfidenceConfirmed, found[0].Confidence, 0.001)
	assert.Equal(t, storage.AmountTypeExpense, found[0].AmountType)
}

func TestRun_InfersCategoryFromKeywords(t *testing.T) {
	// Arrange: no category column, no alias, but a recognizable merchant
	orch, repo := newTestHarness(t)
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -63.20, "SHELL OIL 57442")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{
		CreateMissingPayees:     true,
		CreateMissingCategories: true,
	})

	// Assert: inferred assignments are learned at AI-accepted confidence
	require.NoError(t, err)
	assert.Equal(t, 1, result.CategoriesCreated)
	found, err := repo.FindAliasesByRawString(testWorkspace, "SHELL OIL 57442")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.InDelta(t, aliases.ConfidenceAIAccepted, found[0].Confidence, 0.001)
	assert.Equal(t, storage.TriggerAIAccepted, found[0].Trigger)
}

func TestRun_RestoresSoftDeletedPayee(t *testing.T) {
	// Arrange: same-workspace payee with the colliding slug is soft-deleted
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreatePayee(&storage.Payee{
		ID: "payee-old", WorkspaceID: testWorkspace,
		Name: "Trader Joes", Slug: storage.Slugify("Trader Joes"),
	}))
	repo.SoftDeletePayee("payee-old")
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -42.17, "Trader Joes")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert: restored and reused, not duplicated
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 0, result.PayeesCreated)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "payee-old", txs[0].PayeeID)

	restored, err := repo.FindPayeeBySlug(storage.Slugify("Trader Joes"))
	require.NoError(t, err)
	assert.Nil(t, restored.DeletedAt)
}

func TestRun_SkipsCrossWorkspaceSlugCollision(t *testing.T) {
	// Arrange: the slug belongs to a different workspace
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreatePayee(&storage.Payee{
		ID: "payee-other", WorkspaceID: "ws-other",
		Name: "Acme Corp", Slug: storage.Slugify("Acme Corp"),
	}))
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -99.00, "Acme Corp")}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert: transaction still imports, just without a payee
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.NotEmpty(t, result.Warnings)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Empty(t, txs[0].PayeeID)
}

func TestRun_ReverseAmountSigns(t *testing.T) {
	// Arrange: file records expenses as positive numbers
	orch, repo := newTestHarness(t)
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), 42.17, "TRADER JOE'S")}

	// Act
	_, err := orch.Run(context.Background(), testAccount, rows, Options{
		ReverseAmountSigns:  true,
		CreateMissingPayees: true,
	})

	// Assert
	require.NoError(t, err)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.InDelta(t, -42.17, txs[0].Amount, 0.001)
}

func TestRun_DerivesUtilityUsage(t *testing.T) {
	// Arrange: a utility account and a row carrying meter readings
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreateAccount(&storage.Account{
		ID: "acct-electric", WorkspaceID: testWorkspace, Name: "Electric",
		AccountType: "utility", UtilityUnit: "kWh",
	}))
	row := makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -120.00, "CITY POWER")
	row.RawData["usage"] = "600"
	row.RawData["period_days"] = "30"

	// Act
	result, err := orch.Run(context.Background(), "acct-electric", []statement.Row{row}, Options{CreateMissingPayees: true})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	records := repo.UsageRecords()
	require.Len(t, records, 1)
	assert.InDelta(t, 600, records[0].Usage, 0.001)
	assert.InDelta(t, 0.20, records[0].RatePerUnit, 0.001)
	assert.InDelta(t, 20, records[0].AvgDailyUsage, 0.001)
	assert.Equal(t, "kWh", records[0].Unit)
}

func TestRun_RecordsDismissals(t *testing.T) {
	// Arrange
	orch, repo := newTestHarness(t)
	rows := []statement.Row{makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -10.00, "VENMO PAYMENT")}

	// Act
	_, err := orch.Run(context.Background(), testAccount, rows, Options{
		CreateMissingPayees: true,
		Dismissals: []aliases.Dismissal{
			{RawString: "VENMO PAYMENT", CategoryID: "cat-dining"},
		},
	})

	// Assert
	require.NoError(t, err)
	alias, err := repo.FindAliasByRawStringAndCategory(testWorkspace, "VENMO PAYMENT", "cat-dining")
	require.NoError(t, err)
	assert.InDelta(t, aliases.ConfidenceDismissed, alias.Confidence, 0.001)
}

func TestRun_ReportsProgressStages(t *testing.T) {
	// Arrange: more rows than one batch so StageCreating fires repeatedly
	orch, _ := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var rows []statement.Row
	for i := 0; i < 7; i++ {
		rows = append(rows, makeRow(i, day.AddDate(0, 0, i), -10.00-float64(i), "PAYEE"))
	}

	var stages []string
	var lastProcessed int

	// Act
	_, err := orch.Run(context.Background(), testAccount, rows, Options{
		CreateMissingPayees: true,
		BatchSize:           3,
		Progress: func(stage string, processed, total int) {
			stages = append(stages, stage)
			lastProcessed = processed
			assert.Equal(t, 7, total)
		},
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		StageValidating, StageMatching,
		StageCreating, StageCreating, StageCreating,
		StageComplete,
	}, stages)
	assert.Equal(t, 7, lastProcessed)
}

func TestRun_TracksImportRun(t *testing.T) {
	// Arrange
	orch, repo := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []statement.Row{
		makeRow(0, day, -42.17, "TRADER JOE'S"),
		makeRow(1, day, 0, "BROKEN ROW"),
	}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{CreateMissingPayees: true})

	// Assert
	require.NoError(t, err)
	require.NotZero(t, result.ImportRunID)
	runs, err := repo.ListImportRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, 1, runs[0].TransactionsCreated)
	assert.Equal(t, 1, runs[0].RowsSkipped)
}

func TestRun_RowErrorsDoNotAbortTheRun(t *testing.T) {
	// Arrange: transaction inserts fail, but the run still finishes
	orch, repo := newTestHarness(t)
	repo.CreateTransactionErr = assert.AnError
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rows := []statement.Row{
		makeRow(0, day, -1.00, "A"),
		makeRow(1, day.AddDate(0, 0, 1), -2.00, "B"),
	}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{})

	// Assert
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 0, result.Created)
}

func TestRun_PerFileBreakdown(t *testing.T) {
	// Arrange: rows from two source files
	orch, _ := newTestHarness(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rowA := makeRow(0, day, -10.00, "A")
	rowA.SourceFileName = "jan.csv"
	rowB := makeRow(1, day.AddDate(0, 0, 1), -20.00, "B")
	rowB.SourceFileName = "feb.csv"
	rowC := makeRow(2, day, 0, "C")
	rowC.SourceFileName = "feb.csv"

	// Act
	result, err := orch.Run(context.Background(), testAccount, []statement.Row{rowA, rowB, rowC}, Options{
		CreateMissingPayees: true,
	})

	// Assert
	require.NoError(t, err)
	require.Contains(t, result.ByFile, "jan.csv")
	require.Contains(t, result.ByFile, "feb.csv")
	assert.Equal(t, 1, result.ByFile["jan.csv"].Created)
	assert.Equal(t, 1, result.ByFile["feb.csv"].Created)
	assert.Equal(t, 1, result.ByFile["feb.csv"].Skipped)
}

func TestRun_UnknownAccountFails(t *testing.T) {
	// Arrange
	orch, _ := newTestHarness(t)

	// Act
	result, err := orch.Run(context.Background(), "acct-missing", nil, Options{})

	// Assert
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRun_UsesRememberedTransferMapping(t *testing.T) {
	// Arrange: a previous import remembered this payee string as a
	// transfer to savings
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreateAccount(&storage.Account{
		ID: "acct-savings", WorkspaceID: testWorkspace, Name: "Savings",
	}))
	require.NoError(t, repo.SaveTransferMapping(&storage.TransferMapping{
		WorkspaceID:     testWorkspace,
		PayeeString:     "ONLINE TRANSFER TO SAVINGS",
		TargetAccountID: "acct-savings",
	}))
	rows := []statement.Row{
		makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -250.00, "ONLINE TRANSFER TO SAVINGS"),
	}

	// Act
	result, err := orch.Run(context.Background(), testAccount, rows, Options{})

	// Assert: imported as a transfer without the user re-marking the row
	require.NoError(t, err)
	assert.Equal(t, 1, result.TransfersCreated)
	require.NotNil(t, repo.LastCreatedTransfer)
	assert.Equal(t, testAccount, repo.LastCreatedTransfer.AccountID)
	assert.Equal(t, "acct-savings", repo.LastCreatedTransfer.TransferAccountID)
}

func TestRun_IgnoresUncategorizedPlaceholder(t *testing.T) {
	// Arrange: some exports fill the category column with "Uncategorized"
	orch, repo := newTestHarness(t)
	row := makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -15.00, "ACME WIDGETS LLC")
	row.Normalized.Category = "Uncategorized"

	// Act
	result, err := orch.Run(context.Background(), testAccount, []statement.Row{row}, Options{
		CreateMissingPayees:     true,
		CreateMissingCategories: true,
	})

	// Assert: no category entity created, transaction left uncategorized
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.CategoriesCreated)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Empty(t, txs[0].CategoryID)
}

func TestRun_FileCategoryOutranksAlias(t *testing.T) {
	// Arrange: a learned alias points the payee at cat-coffee, but the
	// statement's own category column says Groceries
	orch, repo := newTestHarness(t)
	require.NoError(t, repo.CreateCategory(&storage.Category{
		ID: "cat-groceries", WorkspaceID: testWorkspace,
		Name: "Groceries", Slug: "groceries",
	}))
	require.NoError(t, repo.CreateAlias(&storage.CategoryAlias{
		WorkspaceID: testWorkspace, RawString: "TRADER JOE'S #552",
		NormalizedString: aliases.Normalize("TRADER JOE'S #552"),
		CategoryID:       "cat-coffee", Trigger: storage.TriggerImportConfirmation,
		Confidence: 0.9, AmountType: storage.AmountTypeAny,
	}))
	row := makeRow(0, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), -42.17, "TRADER JOE'S #552")
	row.Normalized.Category = "Groceries"

	// Act
	result, err := orch.Run(context.Background(), testAccount, []statement.Row{row}, Options{
		CreateMissingPayees: true,
	})

	// Assert: the file's category wins over the learned alias
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	txs, err := repo.ListTransactions(testWorkspace)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "cat-groceries", txs[0].CategoryID)
}

func TestLoadExisting(t *testing.T) {
	// Arrange: transactions spread across two accounts in the workspace
	_, repo := newTestHarness(t)
	require.NoError(t, repo.CreateAccount(&storage.Account{
		ID: "acct-savings", WorkspaceID: testWorkspace, Name: "Savings",
	}))
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateTransaction(&storage.Transaction{
		AccountID: testAccount, WorkspaceID: testWorkspace,
		Date: day, Amount: -42.17,
	}))
	require.NoError(t, repo.CreateTransaction(&storage.Transaction{
		AccountID: "acct-savings", WorkspaceID: testWorkspace,
		Date: day, Amount: 500.00, Reconciled: true,
	}))

	// Act
	existing, err := LoadExisting(repo, testWorkspace)

	// Assert: both rows present with their account names resolved
	require.NoError(t, err)
	require.Len(t, existing, 2)
	byAccount := make(map[string]validator.ExistingTransaction, len(existing))
	for _, tx := range existing {
		byAccount[tx.AccountID] = tx
	}
	assert.Equal(t, "Checking", byAccount[testAccount].AccountName)
	assert.Equal(t, -42.17, byAccount[testAccount].Amount)
	assert.Equal(t, "Savings", byAccount["acct-savings"].AccountName)
	assert.True(t, byAccount["acct-savings"].Reconciled)
}

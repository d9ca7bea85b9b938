// Package importer runs the full import pipeline: validated statement rows
// go in, transactions come out. It resolves payees and categories via fuzzy
// matching and learned aliases, reconciles transfer counterparts, creates
// transactions in concurrent batches, and feeds confirmed category choices
// back into the alias subsystem.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/domain/matcher"
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
	"github.com/ledgerline/budget-import-backend/internal/domain/validator"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// Orchestrator coordinates one import run end to end.
type Orchestrator struct {
	repo      storage.Repository
	aliases   *aliases.Service
	matcher   *matcher.Matcher
	validator *validator.Validator
	logger    *slog.Logger
}

// New creates an orchestrator with default matcher and validator configs.
func New(repo storage.Repository, aliasSvc *aliases.Service, logger *slog.Logger) *Orchestrator {
	return NewWithConfigs(repo, aliasSvc, logger, matcher.DefaultConfig(), validator.DefaultConfig())
}

// NewWithConfigs creates an orchestrator with explicit tuning.
func NewWithConfigs(repo storage.Repository, aliasSvc *aliases.Service, logger *slog.Logger, mc matcher.Config, vc validator.Config) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:      repo,
		aliases:   aliasSvc,
		matcher:   matcher.New(mc),
		validator: validator.New(vc),
		logger:    logger,
	}
}

// Run imports the given rows into an account. Row-level failures are
// collected into the result rather than aborting the run; the returned
// error covers setup failures and context cancellation only.
func (o *Orchestrator) Run(ctx context.Context, accountID string, rows []statement.Row, opts Options) (*Result, error) {
	account, err := o.repo.GetAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("import account %s: %w", accountID, err)
	}

	result := &Result{TotalRows: len(rows)}
	o.logger.Info("starting import",
		"account", account.Name,
		"rows", len(rows),
		"files", countFiles(rows))

	opts.progress(StageValidating, 0, len(rows))
	existing, err := LoadExisting(o.repo, account.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading existing transactions: %w", err)
	}
	rows = o.validator.ValidateRows(rows, existing)
	for i := range rows {
		if rows[i].Status == statement.StatusInvalid {
			result.InvalidRows++
		} else {
			result.ValidRows++
		}
	}

	opts.progress(StageMatching, 0, len(rows))
	resolver, err := newEntityResolver(o.repo, o.matcher, o.logger, account.WorkspaceID, opts)
	if err != nil {
		return nil, err
	}

	runID, runErr := o.repo.StartImportRun(accountID, countFiles(rows), len(rows))
	if runErr != nil {
		o.logger.Warn("could not record import run", "error", runErr)
	} else {
		result.ImportRunID = runID
	}

	var (
		mu         sync.Mutex
		candidates []aliases.CandidateMapping
	)

	batchSize := opts.batchSize()
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			row := &rows[i]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcome := o.importRow(account, row, resolver, opts)

				mu.Lock()
				defer mu.Unlock()
				applyOutcome(result, row, outcome)
				if outcome.aliasCandidate != nil {
					candidates = append(candidates, *outcome.aliasCandidate)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
		opts.progress(StageCreating, end, len(rows))
	}

	result.PayeesCreated = resolver.PayeesCreated
	result.CategoriesCreated = resolver.CategoriesCreated

	created, updated, _ := o.aliases.BulkCreate(account.WorkspaceID, candidates)
	result.AliasesLearned = created + updated
	o.aliases.BulkRecordDismissals(account.WorkspaceID, opts.Dismissals)

	if result.ImportRunID != 0 {
		if err := o.repo.CompleteImportRun(result.ImportRunID, result.Created, result.Skipped, len(result.Errors)); err != nil {
			o.logger.Warn("could not complete import run", "run_id", result.ImportRunID, "error", err)
		}
	}

	opts.progress(StageComplete, len(rows), len(rows))
	o.logger.Info("import finished",
		"created", result.Created,
		"skipped", result.Skipped,
		"reconciled", result.TransfersReconciled,
		"errors", len(result.Errors))
	return result, nil
}

// rowOutcome is the per-row result aggregated into the run Result.
type rowOutcome struct {
	created         bool
	skipped         bool
	reconciled      bool
	transferCreated bool
	err             error
	warnings        []string
	aliasCandidate  *aliases.CandidateMapping
}

func (o *Orchestrator) importRow(account *storage.Account, row *statement.Row, resolver *entityResolver, opts Options) rowOutcome {
	if !row.Importable(opts.AllowPartialImport) {
		return rowOutcome{skipped: true}
	}

	// Transfer counterpart found during validation: reconcile the pending
	// leg instead of inserting a second transaction.
	if row.TransferTarget != nil {
		return o.reconcileTransfer(account, row, opts)
	}

	// User marked the row as a transfer to a known account.
	if row.Normalized.TransferAccountID != "" {
		return o.createTransfer(account, row, opts)
	}

	// A remembered mapping from an earlier import marks this payee string
	// as a transfer to a specific account.
	if row.Normalized.Payee != "" {
		mapping, err := o.repo.FindTransferMapping(account.WorkspaceID, row.Normalized.Payee)
		switch {
		case err == nil && mapping.TargetAccountID != account.ID:
			row.Normalized.TransferAccountID = mapping.TargetAccountID
			return o.createTransfer(account, row, opts)
		case err != nil && !errors.Is(err, storage.ErrNotFound):
			o.logger.Warn("transfer mapping lookup failed", "payee", row.Normalized.Payee, "error", err)
		}
	}

	return o.createTransaction(account, row, resolver, opts)
}

func (o *Orchestrator) reconcileTransfer(account *storage.Account, row *statement.Row, opts Options) rowOutcome {
	meta := o.metadataJSON(row, "transfer_reconciliation")
	if err := o.repo.ReconcileTransaction(row.TransferTarget.ExistingTransactionID, meta); err != nil {
		return rowOutcome{err: fmt.Errorf("reconciling transfer %s: %w", row.TransferTarget.ExistingTransferID, err)}
	}
	out := rowOutcome{reconciled: true}
	if opts.RememberTransferMappings && row.Normalized.Payee != "" {
		o.rememberMapping(account.WorkspaceID, row.Normalized.Payee, row.TransferTarget.SourceAccountID, &out)
	}
	return out
}

func (o *Orchestrator) createTransfer(account *storage.Account, row *statement.Row, opts Options) rowOutcome {
	amount := effectiveAmount(row, opts)
	from, to := account.ID, row.Normalized.TransferAccountID
	if amount > 0 {
		// Money arriving here: the other account is the source
		from, to = row.Normalized.TransferAccountID, account.ID
	}

	_, _, err := o.repo.CreateTransfer(from, to, math.Abs(amount), row.Normalized.Date, row.Normalized.Description)
	if err != nil {
		return rowOutcome{err: fmt.Errorf("creating transfer: %w", err)}
	}

	out := rowOutcome{transferCreated: true}
	if opts.RememberTransferMappings && row.Normalized.Payee != "" {
		o.rememberMapping(account.WorkspaceID, row.Normalized.Payee, row.Normalized.TransferAccountID, &out)
	}
	return out
}

func (o *Orchestrator) createTransaction(account *storage.Account, row *statement.Row, resolver *entityResolver, opts Options) rowOutcome {
	var out rowOutcome
	amount := effectiveAmount(row, opts)
	amountType := storage.AmountTypeExpense
	if amount > 0 {
		amountType = storage.AmountTypeIncome
	}

	payeeID := row.Normalized.PayeeID
	if payeeID == "" && row.Normalized.Payee != "" {
		id, warn, err := resolver.ResolvePayee(row.Normalized.Payee, opts.CreateMissingPayees)
		if err != nil {
			return rowOutcome{err: fmt.Errorf("resolving payee %q: %w", row.Normalized.Payee, err)}
		}
		if warn != "" {
			out.warnings = append(out.warnings, warn)
		}
		payeeID = id
	}

	categoryID, categorySource, aliasMatch := o.resolveCategory(account, row, resolver, opts, payeeID, amountType, &out)
	if out.err != nil {
		return out
	}

	tx := &storage.Transaction{
		AccountID:      account.ID,
		WorkspaceID:    account.WorkspaceID,
		PayeeID:        payeeID,
		CategoryID:     categoryID,
		Date:           row.Normalized.Date,
		Amount:         amount,
		Notes:          row.Normalized.Description,
		ImportMetadata: o.metadataJSON(row, categorySource),
	}
	if err := o.repo.CreateTransaction(tx); err != nil {
		return rowOutcome{err: fmt.Errorf("creating transaction: %w", err), warnings: out.warnings}
	}
	out.created = true

	if account.IsUtility() {
		o.deriveUsage(account, row, tx, &out)
	}

	// Feed the alias subsystem: applied alias matches get a small nudge,
	// every other category assignment becomes a learning candidate.
	if categoryID != "" && row.Normalized.Payee != "" {
		if aliasMatch != nil {
			if err := o.aliases.RecordMatchApplied(account.WorkspaceID, row.Normalized.Payee, categoryID); err != nil &&
				!errors.Is(err, storage.ErrNotFound) {
				o.logger.Warn("could not record applied alias match", "payee", row.Normalized.Payee, "error", err)
			}
		} else {
			out.aliasCandidate = &aliases.CandidateMapping{
				RawString:       row.Normalized.Payee,
				CategoryID:      categoryID,
				PayeeID:         payeeID,
				AmountType:      amountType,
				SourceAccountID: account.ID,
				WasAiSuggested:  categorySource == "inferred",
			}
		}
	}

	return out
}

// resolveCategory picks the row's category by precedence: explicit user
// selection, the file's own category column, learned alias, then keyword
// inference as a last resort. The file column outranks aliases: what the
// statement explicitly says always beats what was learned from past
// imports.
func (o *Orchestrator) resolveCategory(account *storage.Account, row *statement.Row, resolver *entityResolver, opts Options, payeeID string, amountType storage.AmountType, out *rowOutcome) (string, string, *aliases.Match) {
	if row.Normalized.CategoryID != "" {
		return row.Normalized.CategoryID, "explicit", nil
	}

	// "Uncategorized" is a placeholder many exports emit, not a category.
	if row.Normalized.Category != "" && !strings.EqualFold(row.Normalized.Category, "Uncategorized") {
		id, warn, err := resolver.ResolveCategory(row.Normalized.Category, opts.CreateMissingCategories)
		if err != nil {
			out.err = fmt.Errorf("resolving category %q: %w", row.Normalized.Category, err)
			return "", "", nil
		}
		if warn != "" {
			out.warnings = append(out.warnings, warn)
		}
		if id != "" {
			return id, "file", nil
		}
	}

	if row.Normalized.Payee != "" {
		match, err := o.aliases.FindBestMatch(row.Normalized.Payee, account.WorkspaceID, &aliases.LookupContext{
			PayeeID:    payeeID,
			AmountType: amountType,
		})
		if err != nil {
			o.logger.Warn("alias lookup failed", "payee", row.Normalized.Payee, "error", err)
		} else if match != nil {
			return match.CategoryID, "alias", match
		}
	}

	if name, ok := matcher.InferCategory(row.Normalized.Payee, row.Normalized.Description); ok {
		id, warn, err := resolver.ResolveCategory(name, opts.CreateMissingCategories)
		if err != nil {
			out.err = fmt.Errorf("resolving inferred category %q: %w", name, err)
			return "", "", nil
		}
		if warn != "" {
			out.warnings = append(out.warnings, warn)
		}
		if id != "" {
			return id, "inferred", nil
		}
	}

	return "", "none", nil
}

func (o *Orchestrator) rememberMapping(workspaceID, payeeString, targetAccountID string, out *rowOutcome) {
	err := o.repo.SaveTransferMapping(&storage.TransferMapping{
		WorkspaceID:     workspaceID,
		PayeeString:     payeeString,
		TargetAccountID: targetAccountID,
	})
	if err != nil {
		o.logger.Warn("could not save transfer mapping", "payee", payeeString, "error", err)
		out.warnings = append(out.warnings, fmt.Sprintf("transfer mapping for %q not saved", payeeString))
	}
}

// deriveUsage extracts meter/usage readings carried in utility statements
// and stores them alongside the transaction. Best effort: a malformed
// usage column never fails the row.
func (o *Orchestrator) deriveUsage(account *storage.Account, row *statement.Row, tx *storage.Transaction, out *rowOutcome) {
	usage := parseRawFloat(row.RawData, "usage")
	meterStart := parseRawFloat(row.RawData, "meter_start")
	meterEnd := parseRawFloat(row.RawData, "meter_end")
	if usage == 0 && meterEnd > meterStart {
		usage = meterEnd - meterStart
	}
	if usage <= 0 {
		return
	}

	record := &storage.UtilityUsage{
		TransactionID: tx.ID,
		AccountID:     account.ID,
		Usage:         usage,
		Unit:          account.UtilityUnit,
		RatePerUnit:   math.Abs(tx.Amount) / usage,
		MeterStart:    meterStart,
		MeterEnd:      meterEnd,
	}
	if days := int(parseRawFloat(row.RawData, "period_days")); days > 0 {
		record.PeriodDays = days
		record.AvgDailyUsage = usage / float64(days)
	}

	if err := o.repo.CreateUtilityUsage(record); err != nil {
		o.logger.Warn("could not record utility usage", "transaction", tx.ID, "error", err)
		out.warnings = append(out.warnings, "utility usage not recorded")
	}
}

func parseRawFloat(raw map[string]string, key string) float64 {
	v, err := strconv.ParseFloat(raw[key], 64)
	if err != nil {
		return 0
	}
	return v
}

// importMetadata is the audit trail stored on every imported transaction.
type importMetadata struct {
	SourceFileID       string `json:"source_file_id,omitempty"`
	SourceFileName     string `json:"source_file_name,omitempty"`
	RowIndex           int    `json:"row_index"`
	RawPayee           string `json:"raw_payee,omitempty"`
	CategorySource     string `json:"category_source,omitempty"`
	TransferConfidence string `json:"transfer_confidence,omitempty"`
	ImportedAt         string `json:"imported_at"`
}

func (o *Orchestrator) metadataJSON(row *statement.Row, categorySource string) string {
	meta := importMetadata{
		SourceFileID:   row.SourceFileID,
		SourceFileName: row.SourceFileName,
		RowIndex:       row.RowIndex,
		RawPayee:       row.Normalized.Payee,
		CategorySource: categorySource,
		ImportedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if row.TransferTarget != nil {
		meta.TransferConfidence = string(row.TransferTarget.Confidence)
	}
	data, err := json.Marshal(meta)
	if err != nil {
		o.logger.Warn("could not encode import metadata", "row", row.RowIndex, "error", err)
		return ""
	}
	return string(data)
}

// LoadExisting fetches the workspace's transactions in the shape the
// validator compares incoming rows against, resolving account names so
// transfer-target matches can describe the other side.
func LoadExisting(repo storage.Repository, workspaceID string) ([]validator.ExistingTransaction, error) {
	txs, err := repo.ListTransactions(workspaceID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	existing := make([]validator.ExistingTransaction, 0, len(txs))
	for _, tx := range txs {
		name, ok := names[tx.AccountID]
		if !ok {
			if acct, err := repo.GetAccount(tx.AccountID); err == nil {
				name = acct.Name
			}
			names[tx.AccountID] = name
		}
		existing = append(existing, validator.ExistingTransaction{
			ID:          tx.ID,
			Date:        tx.Date,
			Amount:      tx.Amount,
			TransferID:  tx.TransferID,
			AccountID:   tx.AccountID,
			AccountName: name,
			Reconciled:  tx.Reconciled,
		})
	}
	return existing, nil
}

// effectiveAmount applies the sign-reversal option. Validation always ran
// on the file-native sign, so duplicates are detected against what the
// bank actually exported.
func effectiveAmount(row *statement.Row, opts Options) float64 {
	if opts.ReverseAmountSigns {
		return -row.Normalized.Amount
	}
	return row.Normalized.Amount
}

func countFiles(rows []statement.Row) int {
	files := make(map[string]bool)
	for _, row := range rows {
		if row.SourceFileName != "" {
			files[row.SourceFileName] = true
		}
	}
	if len(files) == 0 && len(rows) > 0 {
		return 1
	}
	return len(files)
}

func applyOutcome(result *Result, row *statement.Row, outcome rowOutcome) {
	fr := result.fileResult(row)
	if fr != nil {
		fr.Total++
	}

	switch {
	case outcome.err != nil:
		result.Errors = append(result.Errors, RowError{
			RowIndex:       row.RowIndex,
			SourceFileName: row.SourceFileName,
			Message:        outcome.err.Error(),
		})
		if fr != nil {
			fr.Errored++
		}
	case outcome.skipped:
		result.Skipped++
		if fr != nil {
			fr.Skipped++
		}
	case outcome.reconciled:
		result.TransfersReconciled++
		if fr != nil {
			fr.Created++
		}
	case outcome.transferCreated:
		result.TransfersCreated++
		result.Created++
		if fr != nil {
			fr.Created++
		}
	case outcome.created:
		result.Created++
		if fr != nil {
			fr.Created++
		}
	}

	result.Warnings = append(result.Warnings, outcome.warnings...)
}

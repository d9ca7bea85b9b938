package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/application/importer"
	"github.com/ledgerline/budget-import-backend/internal/domain/matcher"
	"github.com/ledgerline/budget-import-backend/internal/domain/parser"
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
	"github.com/ledgerline/budget-import-backend/internal/domain/validator"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/config"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/logging"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

func main() {
	// Parse flags
	var (
		configFile        = flag.String("config", "", "Configuration file path")
		accountID         = flag.String("account", "", "Account ID to import into (required)")
		dryRun            = flag.Bool("dry-run", false, "Parse and validate only, import nothing")
		partial           = flag.Bool("partial", false, "Import rows with warnings, skipping only invalid ones")
		createPayees      = flag.Bool("create-payees", true, "Create missing payees")
		createCategories  = flag.Bool("create-categories", true, "Create missing categories")
		reverseSigns      = flag.Bool("reverse-signs", false, "Flip amount signs (for files recording expenses as positive)")
		rememberTransfers = flag.Bool("remember-transfers", true, "Remember payee-to-account transfer mappings")
		verbose           = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	files := flag.Args()
	if *accountID == "" || len(files) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s -account <id> [flags] <statement-file>...\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	cfg := loadConfig(*configFile)
	cfg.Observability.Logging.Level = logLevel.String()
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "import")

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	// Parse statement files
	rows, err := parseFiles(files)
	if err != nil {
		logger.Error("Failed to parse statement files", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Parsed statement files",
		slog.Int("files", len(files)),
		slog.Int("rows", len(rows)),
	)

	aliasSvc := aliases.NewService(store, logger)
	orch := importer.NewWithConfigs(store, aliasSvc, logger,
		matcherConfig(cfg), validatorConfig(cfg))

	if *dryRun {
		preview(store, cfg, rows, *accountID, logger)
		return
	}

	result, err := orch.Run(context.Background(), *accountID, rows, importer.Options{
		AllowPartialImport:       *partial,
		CreateMissingPayees:      *createPayees,
		CreateMissingCategories:  *createCategories,
		ReverseAmountSigns:       *reverseSigns,
		RememberTransferMappings: *rememberTransfers,
		BatchSize:                cfg.Import.BatchSize,
		Progress: func(stage string, processed, total int) {
			logger.Debug("Import progress",
				slog.String("stage", stage),
				slog.Int("processed", processed),
				slog.Int("total", total),
			)
		},
	})
	if err != nil {
		logger.Error("Import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Import completed",
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped),
		slog.Int("transfers_reconciled", result.TransfersReconciled),
		slog.Int("payees_created", result.PayeesCreated),
		slog.Int("categories_created", result.CategoriesCreated),
		slog.Int("aliases_learned", result.AliasesLearned),
		slog.Int("errors", len(result.Errors)),
	)
	for _, rowErr := range result.Errors {
		logger.Error("Row failed",
			slog.Int("row", rowErr.RowIndex),
			slog.String("file", rowErr.SourceFileName),
			slog.String("error", rowErr.Message),
		)
	}
	for _, warning := range result.Warnings {
		logger.Warn(warning)
	}

	if !result.Success() {
		os.Exit(1)
	}
}

func parseFiles(paths []string) ([]statement.Row, error) {
	var rows []statement.Row
	for _, path := range paths {
		p, err := parser.ForFile(path)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		fileRows, err := p.Parse(f, uuid.NewString(), path)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		rows = append(rows, fileRows...)
	}
	return rows, nil
}

// preview validates the rows against the account's workspace and prints a
// status breakdown without importing anything.
func preview(store *storage.Storage, cfg *config.Config, rows []statement.Row, accountID string, logger *slog.Logger) {
	account, err := store.GetAccount(accountID)
	if err != nil {
		logger.Error("Account not found", slog.String("account", accountID))
		os.Exit(1)
	}

	existing, err := importer.LoadExisting(store, account.WorkspaceID)
	if err != nil {
		logger.Error("Failed to load existing transactions", slog.String("error", err.Error()))
		os.Exit(1)
	}

	v := validator.New(validatorConfig(cfg))
	rows = v.ValidateRows(rows, existing)

	counts := make(map[statement.Status]int)
	for _, row := range rows {
		counts[row.Status]++
		for _, e := range row.Errors {
			logger.Warn("Validation finding",
				slog.Int("row", row.RowIndex),
				slog.String("field", e.Field),
				slog.String("severity", string(e.Severity)),
				slog.String("message", e.Message),
			)
		}
	}

	logger.Info("Dry run complete",
		slog.Int("total", len(rows)),
		slog.Int("valid", counts[statement.StatusValid]),
		slog.Int("invalid", counts[statement.StatusInvalid]),
		slog.Int("warnings", counts[statement.StatusWarning]),
		slog.Int("duplicates", counts[statement.StatusDuplicate]),
		slog.Int("transfer_matches", counts[statement.StatusTransferMatch]),
	)
}

func matcherConfig(cfg *config.Config) matcher.Config {
	return matcher.Config{
		HighThreshold:   cfg.Import.MatchHighThreshold,
		MediumThreshold: cfg.Import.MatchMediumThreshold,
	}
}

func validatorConfig(cfg *config.Config) validator.Config {
	vc := validator.DefaultConfig()
	vc.MaxAmount = cfg.Import.MaxAmount
	vc.MaxFutureMonths = cfg.Import.MaxFutureMonths
	vc.DisallowFutureDates = cfg.Import.DisallowFutureDates
	vc.TransferDateToleranceDays = cfg.Import.TransferDateToleranceDays
	return vc
}

func loadConfig(configFile string) *config.Config {
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config file %s: %v\n", configFile, err)
			os.Exit(1)
		}
		return cfg
	}
	return config.LoadOrEnv()
}

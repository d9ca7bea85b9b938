package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/budget-import-backend/internal/api"
	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/application/importer"
	"github.com/ledgerline/budget-import-backend/internal/domain/matcher"
	"github.com/ledgerline/budget-import-backend/internal/domain/validator"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/config"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/logging"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

func main() {
	// Parse flags
	var (
		configFile = flag.String("config", "", "Configuration file path")
		port       = flag.Int("port", 0, "HTTP port (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := loadConfig(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = slog.LevelDebug.String()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	// Initialize storage
	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	aliasSvc := aliases.NewService(store, logger)
	orch := importer.NewWithConfigs(store, aliasSvc, logger,
		matcher.Config{
			HighThreshold:   cfg.Import.MatchHighThreshold,
			MediumThreshold: cfg.Import.MatchMediumThreshold,
		},
		validatorConfig(cfg))
	v := validator.New(validatorConfig(cfg))

	serverCfg := api.DefaultConfig()
	serverCfg.Port = cfg.Server.Port
	if len(cfg.Server.AllowedOrigins) > 0 {
		serverCfg.AllowedOrigins = cfg.Server.AllowedOrigins
	}
	server := api.NewServer(serverCfg, store, aliasSvc, orch, v, logger)

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", slog.String("error", err.Error()))
		}
		close(done)
	}()

	if err := server.Start(); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	<-done
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

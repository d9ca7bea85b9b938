// Package api exposes the import pipeline over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ledgerline/budget-import-backend/internal/api/handlers"
	"github.com/ledgerline/budget-import-backend/internal/api/middleware"
	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/application/importer"
	"github.com/ledgerline/budget-import-backend/internal/domain/validator"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires the repository and services into a routed gin engine.
func NewServer(cfg Config, repo storage.Repository, aliasSvc *aliases.Service, orch *importer.Orchestrator, v *validator.Validator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logging(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		config: cfg,
		router: router,
		logger: logger,
	}

	// Health check (no /api prefix - for load balancers)
	router.GET("/health", handlers.Health)

	importsHandler := handlers.NewImportsHandler(repo, orch, v, logger)
	aliasesHandler := handlers.NewAliasesHandler(aliasSvc, logger)
	runsHandler := handlers.NewRunsHandler(repo, logger)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/imports/preview", importsHandler.Preview)
		apiGroup.POST("/imports", importsHandler.Create)

		apiGroup.POST("/aliases", aliasesHandler.BulkCreate)
		apiGroup.POST("/aliases/dismissals", aliasesHandler.Dismiss)
		apiGroup.GET("/aliases/stats", aliasesHandler.Stats)

		apiGroup.GET("/runs", runsHandler.List)
	}

	return s
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin engine for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

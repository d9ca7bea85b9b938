package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/budget-import-backend/internal/api/dto"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// RunsHandler serves import run history.
type RunsHandler struct {
	repo   storage.Repository
	logger *slog.Logger
}

// NewRunsHandler creates the runs handler.
func NewRunsHandler(repo storage.Repository, logger *slog.Logger) *RunsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunsHandler{repo: repo, logger: logger}
}

// List returns recent import runs, newest first.
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntQuery(c, "limit", 20)

	runs, err := h.repo.ListImportRuns(limit)
	if err != nil {
		h.logger.Error("listing import runs failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.NewAPIError("could not list import runs"))
		return
	}
	if runs == nil {
		runs = []storage.ImportRun{}
	}

	c.JSON(http.StatusOK, runs)
}

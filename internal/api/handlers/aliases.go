package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerline/budget-import-backend/internal/api/dto"
	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// AliasesHandler serves the category-alias endpoints.
type AliasesHandler struct {
	svc    *aliases.Service
	logger *slog.Logger
}

// NewAliasesHandler creates the aliases handler.
func NewAliasesHandler(svc *aliases.Service, logger *slog.Logger) *AliasesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AliasesHandler{svc: svc, logger: logger}
}

// BulkCreate persists confirmed category mappings.
func (h *AliasesHandler) BulkCreate(c *gin.Context) {
	var req dto.AliasCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewAPIError("invalid request").WithDetails(err.Error()))
		return
	}

	mappings := make([]aliases.CandidateMapping, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		mappings = append(mappings, aliases.CandidateMapping{
			RawString:       m.RawString,
			CategoryID:      m.CategoryID,
			PayeeID:         m.PayeeID,
			AmountType:      storage.AmountType(m.AmountType),
			SourceAccountID: m.SourceAccountID,
			WasAiSuggested:  m.WasAiSuggested,
		})
	}

	created, updated, err := h.svc.BulkCreate(req.WorkspaceID, mappings)
	if err != nil {
		h.logger.Error("bulk alias creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.NewAPIError("could not save aliases"))
		return
	}

	c.JSON(http.StatusOK, dto.AliasCreateResponse{Created: created, Updated: updated})
}

// Dismiss records a batch of alias dismissals.
func (h *AliasesHandler) Dismiss(c *gin.Context) {
	var req dto.DismissalBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewAPIError("invalid request").WithDetails(err.Error()))
		return
	}

	dismissals := make([]aliases.Dismissal, 0, len(req.Dismissals))
	for _, d := range req.Dismissals {
		dismissals = append(dismissals, aliases.Dismissal{
			RawString:  d.RawString,
			CategoryID: d.CategoryID,
			PayeeID:    d.PayeeID,
		})
	}
	h.svc.BulkRecordDismissals(req.WorkspaceID, dismissals)

	c.JSON(http.StatusOK, gin.H{"dismissed": len(dismissals)})
}

// Stats returns the alias aggregate for a workspace.
func (h *AliasesHandler) Stats(c *gin.Context) {
	workspaceID := c.Query("workspace_id")
	if workspaceID == "" {
		c.JSON(http.StatusBadRequest, dto.NewAPIError("workspace_id is required"))
		return
	}

	stats, err := h.svc.Stats(workspaceID)
	if err != nil {
		h.logger.Error("alias stats query failed", "workspace", workspaceID, "error", err)
		c.JSON(http.StatusInternalServerError, dto.NewAPIError("could not load alias stats"))
		return
	}

	c.JSON(http.StatusOK, stats)
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerline/budget-import-backend/internal/api/dto"
	"github.com/ledgerline/budget-import-backend/internal/application/aliases"
	"github.com/ledgerline/budget-import-backend/internal/application/importer"
	"github.com/ledgerline/budget-import-backend/internal/domain/parser"
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
	"github.com/ledgerline/budget-import-backend/internal/domain/validator"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// ImportsHandler serves the preview and import endpoints.
type ImportsHandler struct {
	repo         storage.Repository
	orchestrator *importer.Orchestrator
	validator    *validator.Validator
	logger       *slog.Logger
}

// NewImportsHandler creates the imports handler.
func NewImportsHandler(repo storage.Repository, orch *importer.Orchestrator, v *validator.Validator, logger *slog.Logger) *ImportsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportsHandler{repo: repo, orchestrator: orch, validator: v, logger: logger}
}

// Preview parses and validates uploaded statement files without importing.
// The returned rows carry statuses and per-field problems for review.
func (h *ImportsHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewAPIError("invalid request").WithDetails(err.Error()))
		return
	}

	account, err := h.repo.GetAccount(req.AccountID)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.NewAPIError("account not found"))
		return
	}

	var rows []statement.Row
	for _, file := range req.Files {
		p, err := parser.ForFile(file.FileName)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.NewAPIError("unsupported file").WithDetails(err.Error()))
			return
		}
		fileRows, err := p.Parse(strings.NewReader(file.Content), uuid.NewString(), file.FileName)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity,
				dto.NewAPIError("could not parse "+file.FileName).WithDetails(err.Error()))
			return
		}
		rows = append(rows, fileRows...)
	}

	existing, err := importer.LoadExisting(h.repo, account.WorkspaceID)
	if err != nil {
		h.logger.Error("loading existing transactions failed", "error", err)
		c.JSON(http.StatusInternalServerError, dto.NewAPIError("could not load existing transactions"))
		return
	}
	rows = h.validator.ValidateRows(rows, existing)

	c.JSON(http.StatusOK, dto.PreviewResponse{
		Rows:    rows,
		Summary: dto.Summarize(rows),
	})
}

// Create runs the import for reviewed rows.
func (h *ImportsHandler) Create(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewAPIError("invalid request").WithDetails(err.Error()))
		return
	}

	opts := importer.Options{
		AllowPartialImport:       req.AllowPartialImport,
		CreateMissingPayees:      req.CreateMissingPayees,
		CreateMissingCategories:  req.CreateMissingCategories,
		ReverseAmountSigns:       req.ReverseAmountSigns,
		RememberTransferMappings: req.RememberTransferMappings,
		SelectedPayeeIDs:         req.SelectedPayeeIDs,
		SelectedCategoryIDs:      req.SelectedCategoryIDs,
	}
	for _, d := range req.Dismissals {
		opts.Dismissals = append(opts.Dismissals, aliases.Dismissal{
			RawString:  d.RawString,
			CategoryID: d.CategoryID,
			PayeeID:    d.PayeeID,
		})
	}

	result, err := h.orchestrator.Run(c.Request.Context(), req.AccountID, req.Rows, opts)
	if err != nil {
		h.logger.Error("import failed", "account", req.AccountID, "error", err)
		status := http.StatusInternalServerError
		if errorsIsNotFound(err) {
			status = http.StatusNotFound
		}
		c.JSON(status, dto.NewAPIError("import failed").WithDetails(err.Error()))
		return
	}

	c.JSON(http.StatusOK, result)
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

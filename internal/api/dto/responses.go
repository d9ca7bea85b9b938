package dto

import (
	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// PreviewResponse is the parsed and validated view of uploaded files,
// ready for user review before import.
type PreviewResponse struct {
	Rows    []statement.Row `json:"rows"`
	Summary PreviewSummary  `json:"summary"`
}

// PreviewSummary counts rows by validation status.
type PreviewSummary struct {
	Total         int `json:"total"`
	Valid         int `json:"valid"`
	Invalid       int `json:"invalid"`
	Warnings      int `json:"warnings"`
	Duplicates    int `json:"duplicates"`
	TransferMatch int `json:"transfer_matches"`
}

// Summarize tallies the preview rows.
func Summarize(rows []statement.Row) PreviewSummary {
	s := PreviewSummary{Total: len(rows)}
	for _, row := range rows {
		switch row.Status {
		case statement.StatusValid:
			s.Valid++
		case statement.StatusInvalid:
			s.Invalid++
		case statement.StatusWarning:
			s.Warnings++
		case statement.StatusDuplicate:
			s.Duplicates++
		case statement.StatusTransferMatch:
			s.TransferMatch++
		}
	}
	return s
}

// AliasCreateResponse reports the outcome of a bulk alias creation.
type AliasCreateResponse struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// CSVParser parses delimited bank exports. Headers are matched against
// known aliases at runtime since every bank names its columns differently.
type CSVParser struct{}

// NewCSVParser creates a CSV statement parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads a CSV statement. The first non-empty record is treated as the
// header row. Rows that fail date or amount coercion are still returned,
// with the failure left for the validator to report against the raw value.
func (p *CSVParser) Parse(r io.Reader, fileID, fileName string) ([]statement.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Banks pad rows inconsistently
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	fields := make([]string, len(header))
	for i, h := range header {
		fields[i] = NormalizeHeader(h)
	}

	var rows []statement.Row
	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record %d: %w", index+1, err)
		}

		raw := make(map[string]string, len(record))
		for i, val := range record {
			if i >= len(fields) {
				break
			}
			raw[fields[i]] = strings.TrimSpace(val)
		}

		rows = append(rows, p.buildRow(index, raw, fileID, fileName))
		index++
	}

	return rows, nil
}

func (p *CSVParser) buildRow(index int, raw map[string]string, fileID, fileName string) statement.Row {
	row := statement.Row{
		RowIndex:       index,
		RawData:        raw,
		SourceFileID:   fileID,
		SourceFileName: fileName,
	}

	if date, err := ParseDate(raw["date"]); err == nil {
		row.Normalized.Date = date
	}

	row.Normalized.Amount = p.resolveAmount(raw)

	payee, extracted := CleanPayee(raw["payee"])
	row.Normalized.Payee = payee

	row.Normalized.Description = raw["description"]
	if extracted != "" {
		if row.Normalized.Description != "" {
			row.Normalized.Description += " "
		}
		row.Normalized.Description += extracted
	}

	row.Normalized.Category = strings.TrimSpace(raw["category"])
	row.Normalized.Status = strings.ToLower(strings.TrimSpace(raw["status"]))

	return row
}

// resolveAmount handles both single-column and debit/credit exports.
// Debits come out negative, credits positive.
func (p *CSVParser) resolveAmount(raw map[string]string) float64 {
	if v, ok := raw["amount"]; ok && strings.TrimSpace(v) != "" {
		if amount, err := ParseAmount(v); err == nil {
			return amount
		}
		return 0
	}

	if v, ok := raw["debit"]; ok && strings.TrimSpace(v) != "" {
		if amount, err := ParseAmount(v); err == nil {
			if amount > 0 {
				amount = -amount
			}
			return amount
		}
	}
	if v, ok := raw["credit"]; ok && strings.TrimSpace(v) != "" {
		if amount, err := ParseAmount(v); err == nil {
			return amount
		}
	}
	return 0
}

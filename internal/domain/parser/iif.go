package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// IIFParser parses QuickBooks IIF exports: tab-separated files where a
// "!TRNS" line declares the column layout and each TRNS line is one
// transaction. SPL (split) and ENDTRNS lines are skipped; import rows map
// 1:1 to parent transactions.
type IIFParser struct{}

// NewIIFParser creates an IIF statement parser.
func NewIIFParser() *IIFParser {
	return &IIFParser{}
}

// Parse extracts TRNS records from an IIF file.
func (p *IIFParser) Parse(r io.Reader, fileID, fileName string) ([]statement.Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var columns []string
	var rows []statement.Row
	index := 0

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		tag := strings.ToUpper(strings.TrimSpace(fields[0]))

		switch tag {
		case "!TRNS":
			columns = make([]string, len(fields)-1)
			for i, f := range fields[1:] {
				columns[i] = strings.ToUpper(strings.TrimSpace(f))
			}
		case "TRNS":
			if columns == nil {
				return nil, fmt.Errorf("IIF file has TRNS record before !TRNS header")
			}
			raw := make(map[string]string, len(columns))
			for i, col := range columns {
				if i+1 < len(fields) {
					raw[strings.ToLower(col)] = strings.TrimSpace(fields[i+1])
				}
			}
			rows = append(rows, p.buildRow(index, raw, fileID, fileName))
			index++
		}
		// SPL and ENDTRNS lines carry no parent-level data
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan IIF file: %w", err)
	}

	return rows, nil
}

func (p *IIFParser) buildRow(index int, raw map[string]string, fileID, fileName string) statement.Row {
	row := statement.Row{
		RowIndex:       index,
		RawData:        raw,
		SourceFileID:   fileID,
		SourceFileName: fileName,
	}

	if date, err := ParseDate(raw["date"]); err == nil {
		row.Normalized.Date = date
	}
	if amount, err := ParseAmount(raw["amount"]); err == nil {
		row.Normalized.Amount = amount
	}

	payee, extracted := CleanPayee(raw["name"])
	row.Normalized.Payee = payee

	row.Normalized.Description = raw["memo"]
	if extracted != "" {
		if row.Normalized.Description != "" {
			row.Normalized.Description += " "
		}
		row.Normalized.Description += extracted
	}

	// QuickBooks puts the category-like account in CLASS or ACCNT
	if class := raw["class"]; class != "" {
		row.Normalized.Category = class
	}

	return row
}

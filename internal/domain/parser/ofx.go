package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// OFXParser parses OFX 1.x (SGML), OFX 2.x (XML) and QBO statements.
//
// OFX 1.x files omit closing tags, so a real XML decoder chokes on them.
// The parser scans line-oriented <TAG>value pairs instead, which also works
// for the XML variants because a trailing </TAG> on the same line is
// stripped from the value.
type OFXParser struct{}

// NewOFXParser creates an OFX/QFX/QBO statement parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// Parse extracts STMTTRN transaction blocks from an OFX document.
func (p *OFXParser) Parse(r io.Reader, fileID, fileName string) ([]statement.Row, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows []statement.Row
	var current map[string]string
	index := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.EqualFold(line, "<STMTTRN>"):
			current = make(map[string]string)
		case strings.EqualFold(line, "</STMTTRN>"):
			if current != nil {
				rows = append(rows, p.buildRow(index, current, fileID, fileName))
				index++
				current = nil
			}
		default:
			if current == nil {
				continue
			}
			tag, value, ok := splitTagLine(line)
			if ok {
				current[tag] = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan OFX file: %w", err)
	}
	// SGML files may end a block implicitly at EOF
	if current != nil && len(current) > 0 {
		rows = append(rows, p.buildRow(index, current, fileID, fileName))
	}

	return rows, nil
}

// splitTagLine parses "<TAG>value" or "<TAG>value</TAG>" into (tag, value).
func splitTagLine(line string) (string, string, bool) {
	if !strings.HasPrefix(line, "<") {
		return "", "", false
	}
	end := strings.Index(line, ">")
	if end < 2 || line[1] == '/' {
		return "", "", false
	}
	tag := strings.ToUpper(line[1:end])
	value := line[end+1:]
	if close := strings.Index(value, "</"); close >= 0 {
		value = value[:close]
	}
	return tag, strings.TrimSpace(value), true
}

func (p *OFXParser) buildRow(index int, tags map[string]string, fileID, fileName string) statement.Row {
	raw := make(map[string]string, len(tags))
	for k, v := range tags {
		raw[strings.ToLower(k)] = v
	}

	row := statement.Row{
		RowIndex:       index,
		RawData:        raw,
		SourceFileID:   fileID,
		SourceFileName: fileName,
	}

	if date, err := parseOFXDate(tags["DTPOSTED"]); err == nil {
		row.Normalized.Date = date
	}
	if amount, err := ParseAmount(tags["TRNAMT"]); err == nil {
		row.Normalized.Amount = amount
	}

	payee, extracted := CleanPayee(tags["NAME"])
	row.Normalized.Payee = payee

	row.Normalized.Description = tags["MEMO"]
	if extracted != "" {
		if row.Normalized.Description != "" {
			row.Normalized.Description += " "
		}
		row.Normalized.Description += extracted
	}

	return row
}

// parseOFXDate parses OFX datetime stamps such as "20240301",
// "20240301120000" or "20240301120000.000[-5:EST]". Only the date part is
// significant for statement rows.
func parseOFXDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(s) < 8 {
		return time.Time{}, fmt.Errorf("unparseable OFX date %q", raw)
	}
	return time.Parse("20060102", s[:8])
}

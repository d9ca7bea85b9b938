// Package parser converts raw bank statement files (CSV, OFX/QFX, QBO, IIF)
// into the uniform statement.Row shape.
//
// Each format has its own Parser implementation; ForFile picks one based on
// the file extension. All parsers normalize headers, dates, amounts and
// payee text at the boundary so downstream components never see untyped
// values.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledgerline/budget-import-backend/internal/domain/statement"
)

// Parser converts one statement file into rows.
type Parser interface {
	// Parse reads the file and returns its rows. Rows carry the given
	// source file identity for multi-file batches.
	Parse(r io.Reader, fileID, fileName string) ([]statement.Row, error)
}

// ForFile returns the parser for the given file name based on its
// extension.
func ForFile(name string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return NewCSVParser(), nil
	case ".ofx", ".qfx", ".qbo":
		return NewOFXParser(), nil
	case ".iif":
		return NewIIFParser(), nil
	default:
		return nil, fmt.Errorf("unsupported statement format: %s", name)
	}
}

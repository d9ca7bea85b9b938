package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sgmlStatement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250602120000.000[-5:EST]
<TRNAMT>-42.17
<FITID>9001
<NAME>TRADER JOE'S #552
<MEMO>POS PURCHASE
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250603
<TRNAMT>1500.00
<FITID>9002
<NAME>ACME PAYROLL
</STMTTRN>
</BANKTRANLIST>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestOFXParser_SGML(t *testing.T) {
	// Arrange
	p := NewOFXParser()

	// Act
	rows, err := p.Parse(strings.NewReader(sgmlStatement), "file-1", "june.qfx")

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.True(t, first.Normalized.Date.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
	assert.InDelta(t, -42.17, first.Normalized.Amount, 0.001)
	assert.Equal(t, "TRADER JOE'S", first.Normalized.Payee)
	assert.Contains(t, first.Normalized.Description, "POS PURCHASE")
	assert.Equal(t, "9001", first.RawData["fitid"])

	second := rows[1]
	assert.InDelta(t, 1500.00, second.Normalized.Amount, 0.001)
	assert.Equal(t, "ACME PAYROLL", second.Normalized.Payee)
}

func TestOFXParser_XMLVariant(t *testing.T) {
	// Arrange: OFX 2.x closes tags on the same line
	input := `<OFX>
<STMTTRN>
<DTPOSTED>20250602</DTPOSTED>
<TRNAMT>-10.00</TRNAMT>
<NAME>CITY PARKING</NAME>
</STMTTRN>
</OFX>
`
	p := NewOFXParser()

	// Act
	rows, err := p.Parse(strings.NewReader(input), "f", "june.ofx")

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CITY PARKING", rows[0].Normalized.Payee)
	assert.InDelta(t, -10.00, rows[0].Normalized.Amount, 0.001)
}

func TestOFXParser_ImplicitBlockCloseAtEOF(t *testing.T) {
	// Arrange: some SGML exports never close the final STMTTRN
	input := `<STMTTRN>
<DTPOSTED>20250602
<TRNAMT>-7.25
<NAME>METRO TRANSIT
`
	p := NewOFXParser()

	// Act
	rows, err := p.Parse(strings.NewReader(input), "f", "tail.qbo")

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "METRO TRANSIT", rows[0].Normalized.Payee)
}

func TestOFXParser_NoTransactions(t *testing.T) {
	p := NewOFXParser()

	rows, err := p.Parse(strings.NewReader("<OFX>\n</OFX>\n"), "f", "empty.ofx")

	require.NoError(t, err)
	assert.Empty(t, rows)
}

package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// headerAliases maps common bank export column names to canonical field
// names. Lookup happens after lowercasing and stripping non-alphanumerics,
// so "Transaction Date", "transaction_date" and "TransactionDate" all
// resolve to "date".
var headerAliases = map[string]string{
	"date":            "date",
	"transactiondate": "date",
	"postdate":        "date",
	"posteddate":      "date",
	"posted":          "date",
	"valuedate":       "date",

	"amount":            "amount",
	"transactionamount": "amount",
	"value":             "amount",

	"debit":  "debit",
	"credit": "credit",

	"payee":        "payee",
	"merchant":     "payee",
	"merchantname": "payee",
	"name":         "payee",
	"vendor":       "payee",

	"description": "description",
	"memo":        "description",
	"notes":       "description",
	"details":     "description",

	"category":    "category",
	"subcategory": "category",

	"status":  "status",
	"cleared": "status",
	"state":   "status",
}

var headerStripRe = regexp.MustCompile(`[^a-z0-9]`)

// NormalizeHeader resolves a raw column name to a canonical field name.
// Unknown headers come back unchanged (lowercased) so their values still
// land in RawData.
func NormalizeHeader(raw string) string {
	key := headerStripRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "")
	if canonical, ok := headerAliases[key]; ok {
		return canonical
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// dateLayouts are tried in order. Bank exports are wildly inconsistent
// about date formats; two-digit years come last so they never shadow
// four-digit forms.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"20060102",
	"01/02/06",
	"1/2/06",
}

// ParseDate parses a date string using the known bank export layouts.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

var currencyRe = regexp.MustCompile(`[$€£\s,]`)

// ParseAmount parses a monetary amount. Handles currency symbols, thousands
// separators, explicit signs, and accounting-style parentheses negatives.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = currencyRe.ReplaceAllString(s, "")
	if s == "" {
		return 0, fmt.Errorf("no digits in amount %q", raw)
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable amount %q", raw)
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}

// Matches dollar amounts embedded in payee text, e.g. "$12.99" or "45.00".
var embeddedAmountRe = regexp.MustCompile(`\$\s?\d[\d,]*(\.\d{1,2})?|\b\d[\d,]*\.\d{2}\b`)

// Trailing reference/store numbers such as "#123" or "REF 4421".
var trailingRefRe = regexp.MustCompile(`(?i)\s*(#\d+|ref\s*\d+|x{2,}\d+)\s*$`)

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// CleanPayee normalizes raw payee text for use as an entity name. Embedded
// monetary substrings and trailing reference numbers are stripped out and
// returned separately so the orchestrator can preserve them in the
// transaction notes.
func CleanPayee(raw string) (cleaned string, extracted string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ""
	}

	var removed []string
	s = embeddedAmountRe.ReplaceAllStringFunc(s, func(m string) string {
		removed = append(removed, m)
		return ""
	})
	s = trailingRefRe.ReplaceAllStringFunc(s, func(m string) string {
		removed = append(removed, strings.TrimSpace(m))
		return ""
	})

	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s), strings.Join(removed, " ")
}

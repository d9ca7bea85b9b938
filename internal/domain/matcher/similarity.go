package matcher

import (
	"regexp"
	"strings"
)

var (
	monetaryRe  = regexp.MustCompile(`\$\s?\d[\d,]*(\.\d{1,2})?|\b\d[\d,]*\.\d{2}\b`)
	specialRe   = regexp.MustCompile(`[^a-z0-9 ]`)
	multiSpaces = regexp.MustCompile(`\s{2,}`)
)

// CleanForComparison normalizes a name for similarity scoring: embedded
// monetary substrings go first (they vary per transaction, not per payee),
// then case folding and special-character removal.
func CleanForComparison(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = monetaryRe.ReplaceAllString(s, "")
	s = specialRe.ReplaceAllString(s, "")
	s = multiSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SimilarityRatio returns 1 - editDistance/maxLength for two strings,
// where 1.0 means identical. Both inputs are expected to be cleaned.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}

	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with a two-row dynamic programming
// table, operating on bytes; inputs are cleaned to ASCII beforehand.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

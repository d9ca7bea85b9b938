package matcher

import "strings"

// categoryKeywords maps merchant/description keywords to suggested category
// names. Used as a last-resort fallback when a row carries no category and
// no alias or fuzzy match fired.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Groceries", []string{"grocery", "supermarket", "market", "kroger", "safeway", "aldi", "trader joe", "whole foods", "wegmans"}},
	{"Dining Out", []string{"restaurant", "cafe", "coffee", "starbucks", "pizza", "burger", "taco", "sushi", "diner", "grill", "bakery"}},
	{"Fuel", []string{"gas", "fuel", "shell", "chevron", "exxon", "bp ", "petrol", "texaco"}},
	{"Utilities", []string{"electric", "water", "gas co", "utility", "utilities", "power", "sewer", "internet", "comcast", "verizon"}},
	{"Subscriptions", []string{"netflix", "spotify", "hulu", "subscription", "prime", "disney"}},
	{"Pharmacy", []string{"pharmacy", "cvs", "walgreens", "rite aid", "drug"}},
	{"Transport", []string{"uber", "lyft", "taxi", "transit", "metro", "parking", "toll"}},
	{"Travel", []string{"airline", "hotel", "airbnb", "flight", "delta", "united", "marriott"}},
	{"Insurance", []string{"insurance", "geico", "allstate", "premium"}},
	{"Rent & Mortgage", []string{"rent", "mortgage", "landlord", "property mgmt"}},
}

// InferCategory suggests a category name from payee and description text.
// Returns ("", false) when nothing matches.
func InferCategory(payee, description string) (string, bool) {
	text := strings.ToLower(payee + " " + description)
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.category, true
			}
		}
	}
	return "", false
}

package matcher

// Entity is a payee or category record that rows may match against.
type Entity struct {
	ID   string
	Name string
}

// Confidence buckets fuzzy-match similarity into tiers. Callers decide
// which tiers they accept; the orchestrator only accepts exact and high
// for payees so distinct-but-similar names never merge.
type Confidence string

const (
	ConfidenceExact  Confidence = "exact"
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Accepted reports whether this tier is trusted enough to reuse an
// existing entity instead of creating a new one.
func (c Confidence) Accepted() bool {
	return c == ConfidenceExact || c == ConfidenceHigh
}

// Match is the result of a fuzzy entity lookup.
type Match struct {
	Entity     Entity
	Confidence Confidence
	Similarity float64
}

// Config holds the similarity thresholds for each confidence tier.
type Config struct {
	// HighThreshold is the minimum similarity for a high-confidence match.
	HighThreshold float64

	// MediumThreshold is the minimum similarity for a medium-confidence
	// match. Anything below it is low.
	MediumThreshold float64
}

// DefaultConfig returns the standard thresholds. High sits above the ~0.71
// similarity of names like "Home Depot" vs "Food Depot" so near-misses
// never land in an accepted tier.
func DefaultConfig() Config {
	return Config{
		HighThreshold:   0.85,
		MediumThreshold: 0.65,
	}
}

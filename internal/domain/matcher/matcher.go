// Package matcher provides fuzzy string matching of imported payee and
// category names against existing entities.
//
// Candidate names are cleaned (embedded monetary substrings and special
// characters stripped, case folded) before comparison, and similarity is a
// normalized Levenshtein ratio (1 - editDistance/maxLength) bucketed into
// confidence tiers.
//
// Example usage:
//
//	m := matcher.New(matcher.DefaultConfig())
//	match := m.FindBestMatch("STARBUCKS #123", payees)
//	if match != nil && match.Confidence.Accepted() {
//		// Reuse match.Entity instead of creating a new payee
//	}
package matcher

// Matcher matches candidate names against existing entities.
type Matcher struct {
	config Config
}

// New creates a matcher with the given config.
func New(config Config) *Matcher {
	return &Matcher{config: config}
}

// FindBestMatch returns the entity most similar to the candidate name, or
// nil when there are no entities or the candidate is empty after cleaning.
// The highest-similarity entity wins; ties keep the first seen.
func (m *Matcher) FindBestMatch(candidate string, entities []Entity) *Match {
	cleaned := CleanForComparison(candidate)
	if cleaned == "" || len(entities) == 0 {
		return nil
	}

	var best *Match
	for _, entity := range entities {
		entityCleaned := CleanForComparison(entity.Name)
		if entityCleaned == "" {
			continue
		}

		similarity := SimilarityRatio(cleaned, entityCleaned)
		if best == nil || similarity > best.Similarity {
			best = &Match{
				Entity:     entity,
				Similarity: similarity,
			}
		}
	}

	if best == nil {
		return nil
	}

	best.Confidence = m.tier(best.Similarity)
	return best
}

// tier maps a similarity ratio to a confidence tier.
func (m *Matcher) tier(similarity float64) Confidence {
	switch {
	case similarity >= 1.0:
		return ConfidenceExact
	case similarity >= m.config.HighThreshold:
		return ConfidenceHigh
	case similarity >= m.config.MediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Package aliases implements the learned category-alias subsystem: a
// persistent mapping from raw imported strings to categories with a
// confidence score that rises on confirmations and collapses on explicit
// dismissal.
//
// The service is consulted before any heuristic or inferred categorization,
// and it is the single source of truth for (rawString, categoryID) pairs:
// bulk creation and dismissal both key on the pair, so multiple categories
// can coexist for one raw string (one accepted, others dismissed at floor
// confidence).
package aliases

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// Confidence lifecycle constants. Trust builds slowly and is revoked
// instantly: a dismissal resets to the floor, not a decrement.
const (
	ConfidenceConfirmed  = 1.0  // explicit user confirmation
	ConfidenceAIAccepted = 0.85 // user accepted an inferred suggestion
	ConfidenceDismissed  = 0.1  // explicit rejection, also the floor

	confirmBoost = 0.05 // repeated confirmation
	appliedBoost = 0.01 // automated match applied during import

	normalizedPenalty   = 0.9  // tier 2 lookup
	payeeContextPenalty = 0.75 // tier 3 lookup
)

// MatchSource identifies which lookup tier produced a match.
type MatchSource string

const (
	MatchedOnExact        MatchSource = "exact"
	MatchedOnNormalized   MatchSource = "normalized"
	MatchedOnPayeeContext MatchSource = "payee_context"
)

// Match is the ephemeral result of an alias lookup.
type Match struct {
	CategoryID string      `json:"category_id"`
	Confidence float64     `json:"confidence"`
	AliasID    string      `json:"alias_id"`
	MatchedOn  MatchSource `json:"matched_on"`
}

// LookupContext narrows an alias lookup. AmountType drops candidates whose
// stored direction conflicts (stored "any" always passes); PayeeID enables
// the payee-context tier.
type LookupContext struct {
	PayeeID    string
	AmountType storage.AmountType
}

// CandidateMapping is one category assignment observed during an import,
// queued for bulk persistence after the run commits.
type CandidateMapping struct {
	RawString       string
	CategoryID      string
	PayeeID         string
	AmountType      storage.AmountType
	SourceAccountID string
	WasAiSuggested  bool
}

// Dismissal is negative feedback: the user cleared an auto-applied
// category for this raw string.
type Dismissal struct {
	RawString  string
	CategoryID string
	PayeeID    string
}

// Service coordinates alias lookup and learning on top of the repository.
type Service struct {
	repo   storage.CategoryAliasStore
	logger *slog.Logger
}

// NewService creates an alias service.
func NewService(repo storage.CategoryAliasStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize produces the canonical lookup form of a raw string:
// lowercased, trimmed, inner whitespace collapsed.
func Normalize(raw string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), " ")
}

// FindBestMatch looks up the best alias for a raw string using three tiers:
// exact raw match (stored confidence), normalized match (x0.9), and
// payee-context match (x0.75). The first tier with a surviving candidate
// wins. Dismissed aliases (floor confidence) never surface as suggestions.
func (s *Service) FindBestMatch(rawString, workspaceID string, ctx *LookupContext) (*Match, error) {
	if strings.TrimSpace(rawString) == "" {
		return nil, nil
	}

	// Tier 1: exact raw string
	candidates, err := s.repo.FindAliasesByRawString(workspaceID, rawString)
	if err != nil {
		return nil, fmt.Errorf("alias exact lookup: %w", err)
	}
	if match := pickCandidate(candidates, ctx, 1.0, MatchedOnExact); match != nil {
		return match, nil
	}

	// Tier 2: normalized form
	candidates, err = s.repo.FindAliasesByNormalized(workspaceID, Normalize(rawString))
	if err != nil {
		return nil, fmt.Errorf("alias normalized lookup: %w", err)
	}
	if match := pickCandidate(candidates, ctx, normalizedPenalty, MatchedOnNormalized); match != nil {
		return match, nil
	}

	// Tier 3: other aliases of the same payee
	if ctx != nil && ctx.PayeeID != "" {
		candidates, err = s.repo.FindAliasesByPayee(workspaceID, ctx.PayeeID)
		if err != nil {
			return nil, fmt.Errorf("alias payee-context lookup: %w", err)
		}
		if match := pickCandidate(candidates, ctx, payeeContextPenalty, MatchedOnPayeeContext); match != nil {
			return match, nil
		}
	}

	return nil, nil
}

// pickCandidate filters candidates by amount type and dismissal floor, then
// returns the highest-confidence survivor scaled by the tier penalty.
func pickCandidate(candidates []storage.CategoryAlias, ctx *LookupContext, penalty float64, source MatchSource) *Match {
	var best *storage.CategoryAlias
	for i := range candidates {
		a := &candidates[i]
		if a.Confidence <= ConfidenceDismissed {
			continue // Dismissed: never suggest again
		}
		if ctx != nil && ctx.AmountType != "" && ctx.AmountType != storage.AmountTypeAny {
			if a.AmountType != storage.AmountTypeAny && a.AmountType != ctx.AmountType {
				continue
			}
		}
		if best == nil || a.Confidence > best.Confidence {
			best = a
		}
	}
	if best == nil {
		return nil
	}
	return &Match{
		CategoryID: best.CategoryID,
		Confidence: best.Confidence * penalty,
		AliasID:    best.ID,
		MatchedOn:  source,
	}
}

// BulkCreate persists a batch of candidate mappings. The batch is deduped
// by case/whitespace-insensitive (rawString, categoryID) key; existing
// aliases get a confirmation boost, new ones are inserted. An insert that
// loses a uniqueness race falls back to update-after-requery, so creation
// is at-most-once per key on a best-effort basis.
func (s *Service) BulkCreate(workspaceID string, mappings []CandidateMapping) (created, updated int, err error) {
	seen := make(map[string]bool, len(mappings))

	for _, mapping := range mappings {
		if mapping.RawString == "" || mapping.CategoryID == "" {
			continue
		}
		key := Normalize(mapping.RawString) + "|" + mapping.CategoryID
		if seen[key] {
			continue
		}
		seen[key] = true

		wasCreated, upsertErr := s.upsertMapping(workspaceID, mapping)
		if upsertErr != nil {
			// Learning is best-effort; one bad mapping never fails the batch
			s.logger.Warn("failed to persist category alias",
				"raw_string", mapping.RawString,
				"category_id", mapping.CategoryID,
				"error", upsertErr)
			continue
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}

	return created, updated, nil
}

func (s *Service) upsertMapping(workspaceID string, mapping CandidateMapping) (bool, error) {
	existing, err := s.repo.FindAliasByRawStringAndCategory(workspaceID, mapping.RawString, mapping.CategoryID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}

	if existing != nil {
		return false, s.boostAlias(existing, confirmBoost)
	}

	alias := s.newAlias(workspaceID, mapping)
	if err := s.repo.CreateAlias(alias); err != nil {
		if !errors.Is(err, storage.ErrConflict) {
			return false, err
		}
		// Lost a creation race; whoever won gets the confirmation instead
		existing, requeryErr := s.repo.FindAliasByRawStringAndCategory(workspaceID, mapping.RawString, mapping.CategoryID)
		if requeryErr != nil {
			return false, requeryErr
		}
		return false, s.boostAlias(existing, confirmBoost)
	}
	return true, nil
}

func (s *Service) newAlias(workspaceID string, mapping CandidateMapping) *storage.CategoryAlias {
	confidence := ConfidenceConfirmed
	trigger := storage.TriggerImportConfirmation
	if mapping.WasAiSuggested {
		confidence = ConfidenceAIAccepted
		trigger = storage.TriggerAIAccepted
	}

	amountType := mapping.AmountType
	if amountType == "" {
		amountType = storage.AmountTypeAny
	}

	now := time.Now()
	return &storage.CategoryAlias{
		WorkspaceID:      workspaceID,
		RawString:        mapping.RawString,
		NormalizedString: Normalize(mapping.RawString),
		CategoryID:       mapping.CategoryID,
		PayeeID:          mapping.PayeeID,
		Trigger:          trigger,
		Confidence:       confidence,
		MatchCount:       1,
		AmountType:       amountType,
		SourceAccountID:  mapping.SourceAccountID,
		LastMatchedAt:    &now,
	}
}

func (s *Service) boostAlias(alias *storage.CategoryAlias, boost float64) error {
	alias.Confidence += boost
	alias.MatchCount++
	now := time.Now()
	alias.LastMatchedAt = &now
	return s.repo.UpdateAlias(alias)
}

// RecordMatchApplied nudges an alias's confidence up after an automated
// match was applied during import.
func (s *Service) RecordMatchApplied(workspaceID, rawString, categoryID string) error {
	alias, err := s.repo.FindAliasByRawStringAndCategory(workspaceID, rawString, categoryID)
	if err != nil {
		return err
	}
	return s.boostAlias(alias, appliedBoost)
}

// RecordDismissal records that the user cleared an auto-applied category
// for this raw string. The alias is found or created and its confidence is
// hard reset to the floor regardless of prior value.
func (s *Service) RecordDismissal(workspaceID string, dismissal Dismissal) error {
	alias, err := s.repo.FindAliasByRawStringAndCategory(workspaceID, dismissal.RawString, dismissal.CategoryID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		alias = &storage.CategoryAlias{
			WorkspaceID:      workspaceID,
			RawString:        dismissal.RawString,
			NormalizedString: Normalize(dismissal.RawString),
			CategoryID:       dismissal.CategoryID,
			PayeeID:          dismissal.PayeeID,
			Trigger:          storage.TriggerImportConfirmation,
			Confidence:       ConfidenceDismissed,
			AmountType:       storage.AmountTypeAny,
		}
		if createErr := s.repo.CreateAlias(alias); createErr != nil {
			if !errors.Is(createErr, storage.ErrConflict) {
				return createErr
			}
			alias, err = s.repo.FindAliasByRawStringAndCategory(workspaceID, dismissal.RawString, dismissal.CategoryID)
			if err != nil {
				return err
			}
		} else {
			return nil
		}
	}

	alias.Confidence = ConfidenceDismissed
	return s.repo.UpdateAlias(alias)
}

// BulkRecordDismissals applies a batch of dismissals, logging and skipping
// individual failures.
func (s *Service) BulkRecordDismissals(workspaceID string, dismissals []Dismissal) {
	for _, d := range dismissals {
		if d.RawString == "" || d.CategoryID == "" {
			continue
		}
		if err := s.RecordDismissal(workspaceID, d); err != nil {
			s.logger.Warn("failed to record alias dismissal",
				"raw_string", d.RawString,
				"category_id", d.CategoryID,
				"error", err)
		}
	}
}

// Stats returns the read-only alias aggregate for a workspace.
func (s *Service) Stats(workspaceID string) (*storage.AliasStats, error) {
	return s.repo.GetAliasStats(workspaceID)
}

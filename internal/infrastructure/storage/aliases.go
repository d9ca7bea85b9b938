package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const aliasColumns = `
	id, workspace_id, raw_string, normalized_string, category_id, payee_id,
	trigger_type, confidence, match_count, amount_type, source_account_id,
	last_matched_at, created_at, updated_at, deleted_at`

// FindAliasesByRawString returns live aliases matching the raw string
// exactly, highest confidence first.
func (s *Storage) FindAliasesByRawString(workspaceID, rawString string) ([]CategoryAlias, error) {
	return s.queryAliases(`
		SELECT `+aliasColumns+`
		FROM category_aliases
		WHERE workspace_id = ? AND raw_string = ? AND deleted_at IS NULL
		ORDER BY confidence DESC
	`, workspaceID, rawString)
}

// FindAliasesByNormalized returns live aliases matching the normalized
// string, highest confidence first.
func (s *Storage) FindAliasesByNormalized(workspaceID, normalized string) ([]CategoryAlias, error) {
	return s.queryAliases(`
		SELECT `+aliasColumns+`
		FROM category_aliases
		WHERE workspace_id = ? AND normalized_string = ? AND deleted_at IS NULL
		ORDER BY confidence DESC
	`, workspaceID, normalized)
}

// FindAliasesByPayee returns live aliases attached to a payee, highest
// confidence first.
func (s *Storage) FindAliasesByPayee(workspaceID, payeeID string) ([]CategoryAlias, error) {
	return s.queryAliases(`
		SELECT `+aliasColumns+`
		FROM category_aliases
		WHERE workspace_id = ? AND payee_id = ? AND deleted_at IS NULL
		ORDER BY confidence DESC
	`, workspaceID, payeeID)
}

// FindAliasByRawStringAndCategory finds the single alias for a
// (rawString, categoryID) pair, including low-confidence dismissed ones.
func (s *Storage) FindAliasByRawStringAndCategory(workspaceID, rawString, categoryID string) (*CategoryAlias, error) {
	aliases, err := s.queryAliases(`
		SELECT `+aliasColumns+`
		FROM category_aliases
		WHERE workspace_id = ? AND raw_string = ? AND category_id = ? AND deleted_at IS NULL
	`, workspaceID, rawString, categoryID)
	if err != nil {
		return nil, err
	}
	if len(aliases) == 0 {
		return nil, ErrNotFound
	}
	return &aliases[0], nil
}

func (s *Storage) queryAliases(query string, args ...interface{}) ([]CategoryAlias, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []CategoryAlias
	for rows.Next() {
		var a CategoryAlias
		var payeeID, sourceAccountID sql.NullString
		var lastMatchedAt, deletedAt sql.NullTime
		err := rows.Scan(
			&a.ID, &a.WorkspaceID, &a.RawString, &a.NormalizedString,
			&a.CategoryID, &payeeID, &a.Trigger, &a.Confidence, &a.MatchCount,
			&a.AmountType, &sourceAccountID, &lastMatchedAt, &a.CreatedAt,
			&a.UpdatedAt, &deletedAt,
		)
		if err != nil {
			return nil, err
		}
		a.PayeeID = payeeID.String
		a.SourceAccountID = sourceAccountID.String
		if lastMatchedAt.Valid {
			a.LastMatchedAt = &lastMatchedAt.Time
		}
		if deletedAt.Valid {
			a.DeletedAt = &deletedAt.Time
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

// CreateAlias inserts an alias. ErrConflict when the
// (workspace, rawString, categoryID) pair already exists.
func (s *Storage) CreateAlias(alias *CategoryAlias) error {
	if alias.ID == "" {
		alias.ID = uuid.NewString()
	}
	now := time.Now()
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = now
	}
	alias.UpdatedAt = now
	if alias.AmountType == "" {
		alias.AmountType = AmountTypeAny
	}
	if alias.MatchCount == 0 {
		alias.MatchCount = 1
	}
	alias.ClampConfidence()

	_, err := s.db.Exec(`
		INSERT INTO category_aliases
		(id, workspace_id, raw_string, normalized_string, category_id, payee_id,
		 trigger_type, confidence, match_count, amount_type, source_account_id,
		 last_matched_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		alias.ID, alias.WorkspaceID, alias.RawString, alias.NormalizedString,
		alias.CategoryID, nullable(alias.PayeeID), string(alias.Trigger),
		alias.Confidence, alias.MatchCount, string(alias.AmountType),
		nullable(alias.SourceAccountID), alias.LastMatchedAt,
		alias.CreatedAt, alias.UpdatedAt,
	)
	return wrapConflict(err)
}

// UpdateAlias persists confidence, match count and last-matched changes.
func (s *Storage) UpdateAlias(alias *CategoryAlias) error {
	alias.ClampConfidence()
	alias.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE category_aliases
		SET confidence = ?, match_count = ?, amount_type = ?, payee_id = ?,
		    trigger_type = ?, last_matched_at = ?, updated_at = ?
		WHERE id = ?
	`,
		alias.Confidence, alias.MatchCount, string(alias.AmountType),
		nullable(alias.PayeeID), string(alias.Trigger), alias.LastMatchedAt,
		alias.UpdatedAt, alias.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAliasStats returns aggregate alias statistics for a workspace
func (s *Storage) GetAliasStats(workspaceID string) (*AliasStats, error) {
	stats := &AliasStats{
		ByTrigger:    make(map[string]int),
		ByAmountType: make(map[string]int),
	}

	err := s.db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT category_id)
		FROM category_aliases WHERE workspace_id = ? AND deleted_at IS NULL
	`, workspaceID).Scan(&stats.TotalAliases, &stats.UniqueCategories)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT trigger_type, COUNT(*)
		FROM category_aliases WHERE workspace_id = ? AND deleted_at IS NULL
		GROUP BY trigger_type
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var trigger string
		var count int
		if err := rows.Scan(&trigger, &count); err != nil {
			return nil, err
		}
		stats.ByTrigger[trigger] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	typeRows, err := s.db.Query(`
		SELECT amount_type, COUNT(*)
		FROM category_aliases WHERE workspace_id = ? AND deleted_at IS NULL
		GROUP BY amount_type
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var amountType string
		var count int
		if err := typeRows.Scan(&amountType, &count); err != nil {
			return nil, err
		}
		stats.ByAmountType[amountType] = count
	}
	if err := typeRows.Err(); err != nil {
		return nil, err
	}

	usedRows, err := s.db.Query(`
		SELECT raw_string, category_id, match_count, confidence
		FROM category_aliases WHERE workspace_id = ? AND deleted_at IS NULL
		ORDER BY match_count DESC LIMIT 10
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer usedRows.Close()
	for usedRows.Next() {
		var summary AliasUsageSummary
		if err := usedRows.Scan(&summary.RawString, &summary.CategoryID,
			&summary.MatchCount, &summary.Confidence); err != nil {
			return nil, err
		}
		stats.MostUsed = append(stats.MostUsed, summary)
	}
	if err := usedRows.Err(); err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -30)
	err = s.db.QueryRow(`
		SELECT COUNT(*)
		FROM category_aliases
		WHERE workspace_id = ? AND deleted_at IS NULL AND created_at >= ?
	`, workspaceID, cutoff).Scan(&stats.RecentlyCreated)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

package storage

import (
	"database/sql"
	"time"
)

// ListPayees returns active payees for a workspace
func (s *Storage) ListPayees(workspaceID string) ([]Payee, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, name, slug, created_at, deleted_at
		FROM payees WHERE workspace_id = ? AND deleted_at IS NULL
		ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payees []Payee
	for rows.Next() {
		var p Payee
		var deletedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Slug, &p.CreatedAt, &deletedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			p.DeletedAt = &deletedAt.Time
		}
		payees = append(payees, p)
	}
	return payees, rows.Err()
}

// FindPayeeBySlug finds a payee by slug, including soft-deleted rows
func (s *Storage) FindPayeeBySlug(slug string) (*Payee, error) {
	p := &Payee{}
	var deletedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, workspace_id, name, slug, created_at, deleted_at
		FROM payees WHERE slug = ?
	`, slug).Scan(&p.ID, &p.WorkspaceID, &p.Name, &p.Slug, &p.CreatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return p, nil
}

// CreatePayee inserts a payee. ErrConflict on slug collision.
func (s *Storage) CreatePayee(payee *Payee) error {
	if payee.CreatedAt.IsZero() {
		payee.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO payees (id, workspace_id, name, slug, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, payee.ID, payee.WorkspaceID, payee.Name, payee.Slug, payee.CreatedAt)
	return wrapConflict(err)
}

// RestorePayee clears the soft-delete marker
func (s *Storage) RestorePayee(id string) error {
	_, err := s.db.Exec(`UPDATE payees SET deleted_at = NULL WHERE id = ?`, id)
	return err
}

// ListCategories returns active categories for a workspace
func (s *Storage) ListCategories(workspaceID string) ([]Category, error) {
	rows, err := s.db.Query(`
		SELECT id, workspace_id, name, slug, created_at, deleted_at
		FROM categories WHERE workspace_id = ? AND deleted_at IS NULL
		ORDER BY name
	`, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		var deletedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Slug, &c.CreatedAt, &deletedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			c.DeletedAt = &deletedAt.Time
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// FindCategoryBySlug finds a category by slug, including soft-deleted rows
func (s *Storage) FindCategoryBySlug(slug string) (*Category, error) {
	c := &Category{}
	var deletedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, workspace_id, name, slug, created_at, deleted_at
		FROM categories WHERE slug = ?
	`, slug).Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Slug, &c.CreatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return c, nil
}

// CreateCategory inserts a category. ErrConflict on slug collision.
func (s *Storage) CreateCategory(category *Category) error {
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO categories (id, workspace_id, name, slug, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, category.ID, category.WorkspaceID, category.Name, category.Slug, category.CreatedAt)
	return wrapConflict(err)
}

// RestoreCategory clears the soft-delete marker
func (s *Storage) RestoreCategory(id string) error {
	_, err := s.db.Exec(`UPDATE categories SET deleted_at = NULL WHERE id = ?`, id)
	return err
}

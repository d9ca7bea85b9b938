package importer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerline/budget-import-backend/internal/domain/matcher"
	"github.com/ledgerline/budget-import-backend/internal/infrastructure/storage"
)

// entityResolver resolves payee and category names to entity IDs during an
// import: fuzzy match against existing entities first, create on demand
// when allowed. It is shared by all row goroutines in a batch, so the
// entity lists and the create path are mutex-guarded; without that, 25
// rows naming the same new payee would race 25 creates.
type entityResolver struct {
	mu sync.Mutex

	repo        storage.Repository
	matcher     *matcher.Matcher
	logger      *slog.Logger
	workspaceID string

	payees     []matcher.Entity
	categories []matcher.Entity

	payeeAllowed    map[string]bool
	categoryAllowed map[string]bool

	PayeesCreated     int
	CategoriesCreated int
}

func newEntityResolver(repo storage.Repository, m *matcher.Matcher, logger *slog.Logger, workspaceID string, opts Options) (*entityResolver, error) {
	payees, err := repo.ListPayees(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading payees: %w", err)
	}
	categories, err := repo.ListCategories(workspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading categories: %w", err)
	}

	r := &entityResolver{
		repo:            repo,
		matcher:         m,
		logger:          logger,
		workspaceID:     workspaceID,
		payeeAllowed:    allowSet(opts.SelectedPayeeIDs),
		categoryAllowed: allowSet(opts.SelectedCategoryIDs),
	}
	for _, p := range payees {
		r.payees = append(r.payees, matcher.Entity{ID: p.ID, Name: p.Name})
	}
	for _, c := range categories {
		r.categories = append(r.categories, matcher.Entity{ID: c.ID, Name: c.Name})
	}
	return r, nil
}

func allowSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func filterEntities(entities []matcher.Entity, allowed map[string]bool) []matcher.Entity {
	if allowed == nil {
		return entities
	}
	var filtered []matcher.Entity
	for _, e := range entities {
		if allowed[e.ID] {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// ResolvePayee returns the entity ID for a payee name, matching first and
// creating when allowed. A non-empty warning means the row proceeds
// without a payee.
func (r *entityResolver) ResolvePayee(name string, create bool) (id string, warning string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if match := r.matcher.FindBestMatch(name, filterEntities(r.payees, r.payeeAllowed)); match != nil && match.Confidence.Accepted() {
		return match.Entity.ID, "", nil
	}
	if !create {
		return "", "", nil
	}

	id, createdNew, warning, err := r.createEntity(name, entityKindPayee)
	if err == nil && id != "" {
		r.payees = append(r.payees, matcher.Entity{ID: id, Name: name})
		if createdNew {
			r.PayeesCreated++
		}
	}
	return id, warning, err
}

// ResolveCategory is ResolvePayee for categories.
func (r *entityResolver) ResolveCategory(name string, create bool) (id string, warning string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if match := r.matcher.FindBestMatch(name, filterEntities(r.categories, r.categoryAllowed)); match != nil && match.Confidence.Accepted() {
		return match.Entity.ID, "", nil
	}
	if !create {
		return "", "", nil
	}

	id, createdNew, warning, err := r.createEntity(name, entityKindCategory)
	if err == nil && id != "" {
		r.categories = append(r.categories, matcher.Entity{ID: id, Name: name})
		if createdNew {
			r.CategoriesCreated++
		}
	}
	return id, warning, err
}

type entityKind int

const (
	entityKindPayee entityKind = iota
	entityKindCategory
)

// createEntity inserts a new entity optimistically and recovers from slug
// collisions: a soft-deleted entity in the same workspace is restored and
// reused, a live one is reused directly, and a cross-workspace collision
// skips the entity with a warning rather than leaking another workspace's
// data.
func (r *entityResolver) createEntity(name string, kind entityKind) (id string, createdNew bool, warning string, err error) {
	slug := storage.Slugify(name)
	if slug == "" {
		return "", false, fmt.Sprintf("cannot derive a slug from %q", name), nil
	}
	newID := uuid.NewString()

	var createErr error
	if kind == entityKindPayee {
		createErr = r.repo.CreatePayee(&storage.Payee{ID: newID, WorkspaceID: r.workspaceID, Name: name, Slug: slug})
	} else {
		createErr = r.repo.CreateCategory(&storage.Category{ID: newID, WorkspaceID: r.workspaceID, Name: name, Slug: slug})
	}
	if createErr == nil {
		return newID, true, "", nil
	}
	if !errors.Is(createErr, storage.ErrConflict) {
		return "", false, "", createErr
	}

	// Slug taken: find out by whom before deciding
	var (
		existingID, existingWorkspace string
		deleted                       bool
		findErr                       error
	)
	if kind == entityKindPayee {
		p, err := r.repo.FindPayeeBySlug(slug)
		if err != nil {
			findErr = err
		} else {
			existingID, existingWorkspace, deleted = p.ID, p.WorkspaceID, p.DeletedAt != nil
		}
	} else {
		c, err := r.repo.FindCategoryBySlug(slug)
		if err != nil {
			findErr = err
		} else {
			existingID, existingWorkspace, deleted = c.ID, c.WorkspaceID, c.DeletedAt != nil
		}
	}
	if findErr != nil {
		return "", false, "", fmt.Errorf("slug %q conflicted but owner lookup failed: %w", slug, findErr)
	}

	if existingWorkspace != r.workspaceID {
		r.logger.Warn("entity slug owned by another workspace, skipping",
			"slug", slug, "name", name)
		return "", false, fmt.Sprintf("name %q collides with an entity outside this workspace", name), nil
	}

	if deleted {
		var restoreErr error
		if kind == entityKindPayee {
			restoreErr = r.repo.RestorePayee(existingID)
		} else {
			restoreErr = r.repo.RestoreCategory(existingID)
		}
		if restoreErr != nil {
			return "", false, "", fmt.Errorf("restoring soft-deleted entity %q: %w", slug, restoreErr)
		}
		r.logger.Info("restored soft-deleted entity", "slug", slug, "name", name)
	}
	return existingID, false, "", nil
}

package services

import (
	"context"
	"errors"
	"log/slog"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

type CategoryStore interface {
	ledger.CategoryFinder
	ledger.CategorySaver
}

// CategoryResolver maps category titles to stored categories, creating the
// ones that do not exist yet. Uniqueness is left to the store: when a
// concurrent writer wins the insert, the resolver fetches the winner's row.
type CategoryResolver struct {
	store CategoryStore
}

func NewCategoryResolver(store CategoryStore) *CategoryResolver {
	return &CategoryResolver{store: store}
}

// ResolveOne returns the category titled title, creating it if absent.
func (r *CategoryResolver) ResolveOne(ctx context.Context, title string) (core.Category, error) {
	title = core.NormalizeTitle(title)
	if title == "" {
		return core.Category{}, &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory}
	}

	existing, ok, err := r.store.FindCategoryByTitle(ctx, title)
	if err != nil {
		return core.Category{}, err
	}
	if ok {
		return existing, nil
	}

	created := core.NewCategory(title)
	if err := r.store.SaveCategories(ctx, created); err != nil {
		if !errors.Is(err, core.ErrDuplicateCategory) {
			return core.Category{}, err
		}
		winner, ok, findErr := r.store.FindCategoryByTitle(ctx, title)
		if findErr != nil || !ok {
			return core.Category{}, err
		}
		return winner, nil
	}

	slog.InfoContext(ctx, "Category created", "id", created.ID, "title", created.Title)
	return created, nil
}

// ResolveBatch resolves every title with one lookup and at most one write.
// The result is keyed by trimmed title and holds an entry for each input.
func (r *CategoryResolver) ResolveBatch(ctx context.Context, titles []string) (map[string]core.Category, error) {
	unique := make([]string, 0, len(titles))
	seen := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		t = core.NormalizeTitle(t)
		if t == "" {
			return nil, &core.ValidationError{Field: "category", Err: core.ErrEmptyCategory}
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	resolved := make(map[string]core.Category, len(unique))
	if len(unique) == 0 {
		return resolved, nil
	}

	existing, err := r.store.FindCategoriesByTitles(ctx, unique)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		resolved[c.Title] = c
	}

	var missing []core.Category
	for _, t := range unique {
		if _, ok := resolved[t]; !ok {
			missing = append(missing, core.NewCategory(t))
		}
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	if err := r.store.SaveCategories(ctx, missing...); err != nil {
		if !errors.Is(err, core.ErrDuplicateCategory) {
			return nil, err
		}
		return r.refetch(ctx, unique, err)
	}
	for _, c := range missing {
		resolved[c.Title] = c
	}

	slog.InfoContext(ctx, "Categories resolved",
		"requested", len(titles),
		"distinct", len(unique),
		"created", len(missing))

	return resolved, nil
}

// refetch recovers from a lost insert race: it reloads titles and inserts
// the ones still missing once more. cause is returned if that retry also
// collides.
func (r *CategoryResolver) refetch(ctx context.Context, titles []string, cause error) (map[string]core.Category, error) {
	found, err := r.store.FindCategoriesByTitles(ctx, titles)
	if err != nil {
		return nil, cause
	}
	resolved := make(map[string]core.Category, len(titles))
	for _, c := range found {
		resolved[c.Title] = c
	}

	var missing []core.Category
	for _, t := range titles {
		if _, ok := resolved[t]; !ok {
			missing = append(missing, core.NewCategory(t))
		}
	}
	if len(missing) == 0 {
		return resolved, nil
	}
	if err := r.store.SaveCategories(ctx, missing...); err != nil {
		if errors.Is(err, core.ErrDuplicateCategory) {
			return nil, cause
		}
		return nil, err
	}
	for _, c := range missing {
		resolved[c.Title] = c
	}
	return resolved, nil
}

package services

import (
	"context"
	"errors"
	"testing"

	"gofinances/internal/core"
	"gofinances/internal/ledger/memory"
)

func TestResolveOneIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := NewCategoryResolver(store)

	first, err := r.ResolveOne(ctx, "Food")
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	second, err := r.ResolveOne(ctx, "  Food ")
	if err != nil {
		t.Fatalf("ResolveOne: %v", err)
	}
	if first.ID != second.ID || second.Title != "Food" {
		t.Fatalf("expected stable category, got %+v and %+v", first, second)
	}
	if cats, _ := store.Counts(); cats != 1 {
		t.Fatalf("expected one category row, got %d", cats)
	}
}

func TestResolveOneIsCaseSensitive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	r := NewCategoryResolver(store)

	a, _ := r.ResolveOne(ctx, "food")
	b, _ := r.ResolveOne(ctx, "Food")
	if a.ID == b.ID {
		t.Fatal("titles differing in case are distinct categories")
	}
}

func TestResolveOneRejectsBlank(t *testing.T) {
	_, err := NewCategoryResolver(memory.New()).ResolveOne(context.Background(), "   ")
	if !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestResolveOneAbsorbsLostRace(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	store := &racyStore{Store: inner, titles: []string{"Food"}}

	got, err := NewCategoryResolver(store).ResolveOne(ctx, "Food")
	if err != nil {
		t.Fatalf("ResolveOne should recover from duplicate: %v", err)
	}
	winner, _, _ := inner.FindCategoryByTitle(ctx, "Food")
	if got.ID != winner.ID {
		t.Fatalf("expected winner's id %q, got %q", winner.ID, got.ID)
	}
	if cats, _ := inner.Counts(); cats != 1 {
		t.Fatalf("expected a single category, got %d", cats)
	}
}

func TestResolveBatchCreatesOnlyMissing(t *testing.T) {
	ctx := context.Background()
	inner := memory.New("t")
	store := newSpyStore(inner)
	existing, _, _ := inner.FindCategoryByTitle(ctx, "t")

	got, err := NewCategoryResolver(store).ResolveBatch(ctx, []string{"t", "t", "t2"})
	if err != nil {
		t.Fatalf("ResolveBatch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 mappings, got %v", got)
	}
	if got["t"] != existing {
		t.Fatalf("existing category changed: %+v vs %+v", got["t"], existing)
	}
	stored, ok, _ := inner.FindCategoryByTitle(ctx, "t2")
	if !ok || got["t2"] != stored {
		t.Fatalf("t2 mapping %+v inconsistent with store %+v", got["t2"], stored)
	}
	if cats, _ := inner.Counts(); cats != 2 {
		t.Fatalf("expected exactly one new category, got %d total", cats)
	}
	if store.calls.findByTitles != 1 || store.calls.saveCategories != 1 {
		t.Fatalf("expected one lookup and one write, got %d and %d", store.calls.findByTitles, store.calls.saveCategories)
	}
}

func TestResolveBatchAllExisting(t *testing.T) {
	store := newSpyStore(memory.New("a", "b"))
	got, err := NewCategoryResolver(store).ResolveBatch(context.Background(), []string{"b", "a", "b"})
	if err != nil || len(got) != 2 {
		t.Fatalf("ResolveBatch = %v, %v", got, err)
	}
	if store.calls.saveCategories != 0 {
		t.Fatalf("no write expected, got %d", store.calls.saveCategories)
	}
}

func TestResolveBatchEmpty(t *testing.T) {
	store := newSpyStore(memory.New())
	got, err := NewCategoryResolver(store).ResolveBatch(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("ResolveBatch(nil) = %v, %v", got, err)
	}
	if store.calls.findByTitles != 0 {
		t.Fatal("empty batch must not query the store")
	}
}

func TestResolveBatchAbsorbsLostRace(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	store := &racyStore{Store: inner, titles: []string{"x"}}

	got, err := NewCategoryResolver(store).ResolveBatch(ctx, []string{"x", "y"})
	if err != nil {
		t.Fatalf("ResolveBatch should recover: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both titles, got %v", got)
	}
	x, _, _ := inner.FindCategoryByTitle(ctx, "x")
	if got["x"].ID != x.ID {
		t.Fatalf("x should resolve to the concurrent writer's row")
	}
}

func TestResolveBatchPropagatesStoreError(t *testing.T) {
	store := newSpyStore(memory.New())
	storeErr := &core.PersistenceError{Op: "save categories", Err: errors.New("locked")}
	store.saveCategoriesErr = storeErr

	_, err := NewCategoryResolver(store).ResolveBatch(context.Background(), []string{"a"})
	if err != storeErr {
		t.Fatalf("expected unmodified store error, got %v", err)
	}
}

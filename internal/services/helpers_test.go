package services

import (
	"context"
	"io"
	"strings"
	"sync"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

type callCounts struct {
	mu               sync.Mutex
	findByTitles     int
	saveCategories   int
	saveTransactions int
}

func (c *callCounts) inc(n *int) {
	c.mu.Lock()
	*n++
	c.mu.Unlock()
}

// spyStore counts calls and injects failures, inside transactions too.
type spyStore struct {
	ledger.Store
	calls               *callCounts
	saveCategoriesErr   error
	saveTransactionsErr error
}

func newSpyStore(inner ledger.Store) *spyStore {
	return &spyStore{Store: inner, calls: &callCounts{}}
}

func (s *spyStore) wrap(tx ledger.Store) *spyStore {
	return &spyStore{
		Store:               tx,
		calls:               s.calls,
		saveCategoriesErr:   s.saveCategoriesErr,
		saveTransactionsErr: s.saveTransactionsErr,
	}
}

func (s *spyStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	return s.Store.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		return fn(ctx, s.wrap(tx))
	})
}

func (s *spyStore) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	s.calls.inc(&s.calls.findByTitles)
	return s.Store.FindCategoriesByTitles(ctx, titles)
}

func (s *spyStore) SaveCategories(ctx context.Context, categories ...core.Category) error {
	s.calls.inc(&s.calls.saveCategories)
	if s.saveCategoriesErr != nil {
		return s.saveCategoriesErr
	}
	return s.Store.SaveCategories(ctx, categories...)
}

func (s *spyStore) SaveTransactions(ctx context.Context, transactions ...core.Transaction) error {
	s.calls.inc(&s.calls.saveTransactions)
	if s.saveTransactionsErr != nil {
		return s.saveTransactionsErr
	}
	return s.Store.SaveTransactions(ctx, transactions...)
}

// racyStore hides the given titles from the first lookup and inserts them
// right after, as a concurrent writer would.
type racyStore struct {
	ledger.Store
	once   sync.Once
	titles []string
}

func (s *racyStore) lostRace(ctx context.Context) bool {
	hidden := false
	s.once.Do(func() {
		hidden = true
		for _, t := range s.titles {
			_ = s.Store.SaveCategories(ctx, core.NewCategory(t))
		}
	})
	return hidden
}

func (s *racyStore) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	if s.lostRace(ctx) {
		return core.Category{}, false, nil
	}
	return s.Store.FindCategoryByTitle(ctx, title)
}

func (s *racyStore) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	if s.lostRace(ctx) {
		return nil, nil
	}
	return s.Store.FindCategoriesByTitles(ctx, titles)
}

// stringSource is an in-memory csvimport.Source.
type stringSource struct {
	name      string
	data      string
	removeErr error

	mu      sync.Mutex
	removed bool
}

func (s *stringSource) Name() string { return s.name }

func (s *stringSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.data)), nil
}

func (s *stringSource) Remove(ctx context.Context) error {
	if s.removeErr != nil {
		return s.removeErr
	}
	s.mu.Lock()
	s.removed = true
	s.mu.Unlock()
	return nil
}

func (s *stringSource) isRemoved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed
}

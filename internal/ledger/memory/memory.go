package memory

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

var errTxDone = errors.New("transaction already finished")

// Store keeps the ledger in process memory. InTx holds the lock for the whole
// scope and commits a staged copy, so concurrent scopes are serialized.
type Store struct {
	mu    sync.Mutex
	state state
}

var _ ledger.Store = (*Store)(nil)

type state struct {
	categories   []core.Category
	byTitle      map[string]int
	byID         map[string]int
	transactions []core.Transaction
}

func New(categories ...string) *Store {
	s := &Store{state: newState()}
	for _, title := range dedupe(categories) {
		_ = s.state.saveCategories(core.NewCategory(title))
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt when present.
func NewFromFiles(base string) *Store {
	return New(readLines(filepath.Join(base, "seed_categories.txt"))...)
}

func newState() state {
	return state{
		byTitle: map[string]int{},
		byID:    map[string]int{},
	}
}

func (st state) clone() state {
	c := state{
		categories:   append([]core.Category(nil), st.categories...),
		byTitle:      make(map[string]int, len(st.byTitle)),
		byID:         make(map[string]int, len(st.byID)),
		transactions: append([]core.Transaction(nil), st.transactions...),
	}
	for k, v := range st.byTitle {
		c.byTitle[k] = v
	}
	for k, v := range st.byID {
		c.byID[k] = v
	}
	return c
}

func (s *Store) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findCategoryByTitle(title)
}

func (s *Store) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findCategoriesByTitles(titles), nil
}

func (s *Store) FindCategoriesByIDs(ctx context.Context, ids []string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findCategoriesByIDs(ids), nil
}

func (s *Store) SaveCategories(ctx context.Context, categories ...core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.saveCategories(categories...)
}

func (s *Store) SumTransactions(ctx context.Context) (core.Money, core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	income, outcome := s.state.sum()
	return income, outcome, nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.state.transactions...), nil
}

func (s *Store) SaveTransactions(ctx context.Context, transactions ...core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.saveTransactions(transactions...)
}

// InTx runs fn against a staged copy of the store and publishes it on success.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	tx := &txStore{st: &staged}
	defer func() { tx.done = true }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.state = staged
	return nil
}

// ReadTx runs fn against the live state under the store lock.
func (s *Store) ReadTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Reader) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txStore{st: &s.state}
	defer func() { tx.done = true }()
	return fn(ctx, tx)
}

// Counts returns the number of stored categories and transactions.
func (s *Store) Counts() (categories, transactions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.categories), len(s.state.transactions)
}

// txStore operates on a staged state while the parent lock is held.
type txStore struct {
	st   *state
	done bool
}

func (t *txStore) FindCategoryByTitle(ctx context.Context, title string) (core.Category, bool, error) {
	if t.done {
		return core.Category{}, false, errTxDone
	}
	return t.st.findCategoryByTitle(title)
}

func (t *txStore) FindCategoriesByTitles(ctx context.Context, titles []string) ([]core.Category, error) {
	if t.done {
		return nil, errTxDone
	}
	return t.st.findCategoriesByTitles(titles), nil
}

func (t *txStore) FindCategoriesByIDs(ctx context.Context, ids []string) ([]core.Category, error) {
	if t.done {
		return nil, errTxDone
	}
	return t.st.findCategoriesByIDs(ids), nil
}

func (t *txStore) SaveCategories(ctx context.Context, categories ...core.Category) error {
	if t.done {
		return errTxDone
	}
	return t.st.saveCategories(categories...)
}

func (t *txStore) SumTransactions(ctx context.Context) (core.Money, core.Money, error) {
	if t.done {
		return core.Money{}, core.Money{}, errTxDone
	}
	income, outcome := t.st.sum()
	return income, outcome, nil
}

func (t *txStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if t.done {
		return nil, errTxDone
	}
	return append([]core.Transaction(nil), t.st.transactions...), nil
}

func (t *txStore) SaveTransactions(ctx context.Context, transactions ...core.Transaction) error {
	if t.done {
		return errTxDone
	}
	return t.st.saveTransactions(transactions...)
}

// InTx on an open transaction joins it.
func (t *txStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Store) error) error {
	if t.done {
		return errTxDone
	}
	return fn(ctx, t)
}

func (t *txStore) ReadTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Reader) error) error {
	if t.done {
		return errTxDone
	}
	return fn(ctx, t)
}

func (st *state) findCategoryByTitle(title string) (core.Category, bool, error) {
	i, ok := st.byTitle[title]
	if !ok {
		return core.Category{}, false, nil
	}
	return st.categories[i], true, nil
}

func (st *state) findCategoriesByTitles(titles []string) []core.Category {
	var out []core.Category
	seen := map[string]struct{}{}
	for _, title := range titles {
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		if i, ok := st.byTitle[title]; ok {
			out = append(out, st.categories[i])
		}
	}
	return out
}

func (st *state) findCategoriesByIDs(ids []string) []core.Category {
	var out []core.Category
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if i, ok := st.byID[id]; ok {
			out = append(out, st.categories[i])
		}
	}
	return out
}

// saveCategories is all-or-nothing, like a multi-row INSERT.
func (st *state) saveCategories(categories ...core.Category) error {
	batch := map[string]struct{}{}
	for _, c := range categories {
		if _, ok := st.byTitle[c.Title]; ok {
			return &core.PersistenceError{Op: "save categories", Err: fmt.Errorf("%w: %q", core.ErrDuplicateCategory, c.Title)}
		}
		if _, ok := batch[c.Title]; ok {
			return &core.PersistenceError{Op: "save categories", Err: fmt.Errorf("%w: %q", core.ErrDuplicateCategory, c.Title)}
		}
		if _, ok := st.byID[c.ID]; ok || c.ID == "" {
			return &core.PersistenceError{Op: "save categories", Err: fmt.Errorf("invalid category id %q", c.ID)}
		}
		batch[c.Title] = struct{}{}
	}
	for _, c := range categories {
		st.categories = append(st.categories, c)
		st.byTitle[c.Title] = len(st.categories) - 1
		st.byID[c.ID] = len(st.categories) - 1
	}
	return nil
}

func (st *state) saveTransactions(transactions ...core.Transaction) error {
	for _, t := range transactions {
		if _, ok := st.byID[t.CategoryID]; !ok {
			return &core.PersistenceError{Op: "save transactions", Err: fmt.Errorf("unknown category id %q", t.CategoryID)}
		}
		if err := t.Validate(); err != nil {
			return &core.PersistenceError{Op: "save transactions", Err: err}
		}
	}
	income, outcome := st.sum()
	if _, _, err := core.AddTotals(income, outcome, transactions...); err != nil {
		return &core.PersistenceError{Op: "save transactions", Err: err}
	}
	st.transactions = append(st.transactions, transactions...)
	return nil
}

func (st *state) sum() (income, outcome core.Money) {
	for _, t := range st.transactions {
		switch t.Type {
		case core.Income:
			income = income.Add(t.Value)
		case core.Outcome:
			outcome = outcome.Add(t.Value)
		}
	}
	return income, outcome
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = core.NormalizeTitle(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

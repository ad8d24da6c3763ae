package memory

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gofinances/internal/core"
	"gofinances/internal/ledger"
)

func TestSaveAndFindCategories(t *testing.T) {
	ctx := context.Background()
	s := New("Food", "Food", " Rent ")

	cats, txs := s.Counts()
	if cats != 2 || txs != 0 {
		t.Fatalf("unexpected counts: cats=%d txs=%d", cats, txs)
	}

	c, ok, err := s.FindCategoryByTitle(ctx, "Rent")
	if err != nil || !ok || c.Title != "Rent" {
		t.Fatalf("unexpected find: %+v ok=%v err=%v", c, ok, err)
	}
	if _, ok, _ := s.FindCategoryByTitle(ctx, "rent"); ok {
		t.Fatal("title lookup must be case-sensitive")
	}

	found, err := s.FindCategoriesByTitles(ctx, []string{"Food", "Missing", "Food"})
	if err != nil || len(found) != 1 || found[0].Title != "Food" {
		t.Fatalf("unexpected set filter result: %+v err=%v", found, err)
	}

	byID, err := s.FindCategoriesByIDs(ctx, []string{c.ID})
	if err != nil || len(byID) != 1 || byID[0] != c {
		t.Fatalf("unexpected id lookup: %+v err=%v", byID, err)
	}
}

func TestSaveCategoriesRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New("Food")

	err := s.SaveCategories(ctx, core.NewCategory("Books"), core.NewCategory("Food"))
	if !errors.Is(err, core.ErrDuplicateCategory) || !core.IsPersistence(err) {
		t.Fatalf("expected duplicate persistence error, got %v", err)
	}
	if cats, _ := s.Counts(); cats != 1 {
		t.Fatalf("failed batch must not be partially applied, got %d categories", cats)
	}

	err = s.SaveCategories(ctx, core.NewCategory("Books"), core.NewCategory("Books"))
	if !errors.Is(err, core.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate within batch to fail, got %v", err)
	}
}

func TestSaveTransactionsRequiresCategory(t *testing.T) {
	ctx := context.Background()
	s := New()

	orphan := core.NewTransaction("x", core.Money{Cents: 1}, core.Income, core.Category{ID: "nope"})
	if err := s.SaveTransactions(ctx, orphan); !core.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	cat := core.NewCategory("Salary")
	if err := s.SaveCategories(ctx, cat); err != nil {
		t.Fatalf("save category: %v", err)
	}
	err := s.SaveTransactions(ctx,
		core.NewTransaction("pay", core.Money{Cents: 1000}, core.Income, cat),
		core.NewTransaction("tax", core.Money{Cents: 300}, core.Outcome, cat),
	)
	if err != nil {
		t.Fatalf("save transactions: %v", err)
	}

	income, outcome, err := s.SumTransactions(ctx)
	if err != nil || income.Cents != 1000 || outcome.Cents != 300 {
		t.Fatalf("unexpected sums: %v %v err=%v", income, outcome, err)
	}

	list, _ := s.ListTransactions(ctx)
	if len(list) != 2 || list[0].Title != "pay" || list[1].Title != "tax" {
		t.Fatalf("expected insertion order, got %+v", list)
	}
}

func TestSaveTransactionsRejectsTotalOverflow(t *testing.T) {
	ctx := context.Background()
	s := New()
	cat := core.NewCategory("Windfall")
	if err := s.SaveCategories(ctx, cat); err != nil {
		t.Fatalf("save category: %v", err)
	}
	// Seed a total close to the int64 limit without going through validation.
	s.state.transactions = append(s.state.transactions,
		core.NewTransaction("seed", core.Money{Cents: math.MaxInt64 - 100}, core.Income, cat))

	err := s.SaveTransactions(ctx, core.NewTransaction("more", core.Money{Cents: 200}, core.Income, cat))
	if !errors.Is(err, core.ErrBalanceOverflow) || !core.IsPersistence(err) {
		t.Fatalf("expected overflow persistence error, got %v", err)
	}
	income, _, _ := s.SumTransactions(ctx)
	if income.Cents != math.MaxInt64-100 {
		t.Fatalf("rejected batch changed the income total: %v", income)
	}

	if err := s.SaveTransactions(ctx, core.NewTransaction("too big", core.Money{Cents: core.MaxAmountCents + 1}, core.Income, cat)); !core.IsPersistence(err) {
		t.Fatalf("amount above the ceiling must be rejected, got %v", err)
	}
}

func TestReadTx(t *testing.T) {
	ctx := context.Background()
	s := New("Food")
	food, _, _ := s.FindCategoryByTitle(ctx, "Food")
	if err := s.SaveTransactions(ctx, core.NewTransaction("lunch", core.Money{Cents: 800}, core.Outcome, food)); err != nil {
		t.Fatalf("save transactions: %v", err)
	}

	var leaked ledger.Reader
	err := s.ReadTx(ctx, func(ctx context.Context, tx ledger.Reader) error {
		leaked = tx
		_, outcome, err := tx.SumTransactions(ctx)
		if err != nil || outcome.Cents != 800 {
			t.Fatalf("unexpected outcome: %v err=%v", outcome, err)
		}
		list, err := tx.ListTransactions(ctx)
		if err != nil || len(list) != 1 {
			t.Fatalf("unexpected list: %+v err=%v", list, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTx: %v", err)
	}
	if _, err := leaked.ListTransactions(ctx); err == nil {
		t.Fatal("reader used after ReadTx returned should fail")
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		cat := core.NewCategory("Food")
		if err := tx.SaveCategories(ctx, cat); err != nil {
			return err
		}
		if err := tx.SaveTransactions(ctx, core.NewTransaction("x", core.Money{Cents: 5}, core.Income, cat)); err != nil {
			return err
		}
		if _, ok, _ := tx.FindCategoryByTitle(ctx, "Food"); !ok {
			t.Fatal("writes must be visible inside the transaction")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if cats, txs := s.Counts(); cats != 0 || txs != 0 {
		t.Fatalf("rollback left cats=%d txs=%d", cats, txs)
	}
}

func TestInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()

	var leaked ledger.Store
	err := s.InTx(ctx, func(ctx context.Context, tx ledger.Store) error {
		leaked = tx
		return tx.InTx(ctx, func(ctx context.Context, inner ledger.Store) error {
			return inner.SaveCategories(ctx, core.NewCategory("Food"))
		})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}
	if cats, _ := s.Counts(); cats != 1 {
		t.Fatalf("expected committed category, got %d", cats)
	}
	if err := leaked.SaveCategories(ctx, core.NewCategory("Late")); err == nil {
		t.Fatal("finished transaction must reject writes")
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	s := NewFromFiles(dir)
	if cats, _ := s.Counts(); cats != 0 {
		t.Fatalf("expected empty store without seed file, got %d", cats)
	}

	content := "# header\nFood\nRent\nFood\n\n"
	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFiles(dir)
	if cats, _ := s.Counts(); cats != 2 {
		t.Fatalf("expected 2 seeded categories, got %d", cats)
	}
}

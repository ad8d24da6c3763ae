package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in   string
		want TransactionType
		ok   bool
	}{
		{"income", Income, true},
		{" outcome ", Outcome, true},
		{"Income", "", false},
		{"", "", false},
		{"transfer", "", false},
	}
	for _, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidType) {
			t.Fatalf("%q expected ErrInvalidType, got %v", tc.in, err)
		}
	}
}

func TestNewCategoryTrimsAndAssignsID(t *testing.T) {
	a := NewCategory("  Food ")
	b := NewCategory("Food")
	if a.Title != "Food" {
		t.Fatalf("expected trimmed title, got %q", a.Title)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected distinct non-empty ids, got %q and %q", a.ID, b.ID)
	}
}

func TestTransactionValidate(t *testing.T) {
	cat := NewCategory("Food")
	good := NewTransaction("Lunch", Money{Cents: 100}, Outcome, cat)
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		NewTransaction(" ", Money{Cents: 1}, Income, cat),
		NewTransaction("a", Money{Cents: -1}, Income, cat),
		NewTransaction("a", Money{Cents: 1}, "refund", cat),
	}
	for i, tx := range bads {
		err := tx.Validate()
		if !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestBalanceApplyAndCovers(t *testing.T) {
	b := NewBalance(Money{}, Money{})
	if b != (Balance{}) {
		t.Fatalf("expected zero balance, got %+v", b)
	}

	cat := NewCategory("x")
	b = b.Apply(NewTransaction("salary", Money{Cents: 10000}, Income, cat))
	b = b.Apply(NewTransaction("rent", Money{Cents: 5000}, Outcome, cat))
	if b.Income.Cents != 10000 || b.Outcome.Cents != 5000 || b.Total.Cents != 5000 {
		t.Fatalf("unexpected balance %+v", b)
	}
	if !b.Covers(Money{Cents: 5000}) {
		t.Fatal("outcome equal to total should be covered")
	}
	if b.Covers(Money{Cents: 5001}) {
		t.Fatal("outcome above total should not be covered")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	err := error(&ValidationError{Field: "value", Err: ErrInsufficientBalance})
	if !errors.Is(err, ErrInsufficientBalance) || !IsValidation(err) {
		t.Fatalf("validation error should unwrap to its cause: %v", err)
	}

	perr := error(&ParseError{Line: 3, Field: "value", Err: ErrInvalidAmount})
	if perr.Error() != "line 3: value: invalid amount" {
		t.Fatalf("unexpected parse error text %q", perr.Error())
	}
	if !IsParse(perr) || IsPersistence(perr) {
		t.Fatal("parse error misclassified")
	}

	st := error(&PersistenceError{Op: "save categories", Err: ErrDuplicateCategory})
	if !errors.Is(st, ErrDuplicateCategory) || !IsPersistence(st) {
		t.Fatal("persistence error should unwrap")
	}
}

func TestAddTotals(t *testing.T) {
	job := NewCategory("Job")
	txs := []Transaction{
		NewTransaction("salary", Money{Cents: 10000}, Income, job),
		NewTransaction("rent", Money{Cents: 4000}, Outcome, job),
		NewTransaction("bonus", Money{Cents: 500}, Income, job),
	}

	income, outcome, err := AddTotals(Money{Cents: 100}, Money{}, txs...)
	if err != nil {
		t.Fatalf("AddTotals: %v", err)
	}
	if income.Cents != 10600 || outcome.Cents != 4000 {
		t.Fatalf("AddTotals = %v, %v", income, outcome)
	}

	big := NewTransaction("windfall", Money{Cents: MaxAmountCents}, Income, job)
	if _, _, err := AddTotals(Money{Cents: math.MaxInt64 - MaxAmountCents + 1}, Money{}, big); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
	if _, _, err := AddTotals(Money{}, Money{Cents: math.MaxInt64}, NewTransaction("x", Money{Cents: 1}, Outcome, job)); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("outcome overflow: expected ErrBalanceOverflow, got %v", err)
	}
}
